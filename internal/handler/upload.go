package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/templui/twinboard/internal/ctxkeys"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/render"
	"github.com/templui/twinboard/internal/service"
)

type UploadHandler struct {
	uploadService *service.UploadService
	partMaxBytes  int64
}

func NewUploadHandler(uploadService *service.UploadService, partMaxBytes int64) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		partMaxBytes:  partMaxBytes,
	}
}

// Init handles POST /upload/{kind}/init
func (h *UploadHandler) Init(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	var req model.UploadInitRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	plan, err := h.uploadService.Init(r.Context(), user.ID, kind, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, plan)
}

// PutPart handles PUT /upload/{kind}/{uploadId}/parts/{partNumber}
func (h *UploadHandler) PutPart(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	partNumber, err := strconv.Atoi(r.PathValue("partNumber"))
	if err != nil {
		render.Error(w, r, http.StatusBadRequest, "invalid_part", fmt.Sprintf("invalid part number %q", r.PathValue("partNumber")))
		return
	}

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.partMaxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Error(w, r, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("part exceeds %d bytes", tooLarge.Limit))
			return
		}
		render.Error(w, r, http.StatusBadRequest, "invalid_request", "failed to read part body")
		return
	}

	etag, err := h.uploadService.PutPart(r.Context(), user.ID, kind, r.PathValue("uploadId"), partNumber, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, model.PutPartResponse{OK: true, ETag: etag})
}

// Complete handles POST /upload/{kind}/{uploadId}/complete
func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	var req model.UploadCompleteRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	resp, err := h.uploadService.Complete(r.Context(), user.ID, kind, r.PathValue("uploadId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, resp)
}

// MediaURL handles GET /api/media/{uploadId}/url
func (h *UploadHandler) MediaURL(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	url, err := h.uploadService.MediaURL(r.Context(), user.ID, r.PathValue("uploadId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, map[string]string{"url": url})
}

func pathKind(w http.ResponseWriter, r *http.Request) (model.MediaKind, bool) {
	kind, err := model.ParseMediaKind(r.PathValue("kind"))
	if err != nil {
		render.Error(w, r, http.StatusBadRequest, "invalid_kind", err.Error())
		return "", false
	}
	return kind, true
}
