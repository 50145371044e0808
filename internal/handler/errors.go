package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/twinboard/internal/ctxkeys"
	"github.com/templui/twinboard/internal/render"
	"github.com/templui/twinboard/internal/repository"
	"github.com/templui/twinboard/internal/service"
	"github.com/templui/twinboard/internal/upload"
	"github.com/templui/twinboard/internal/validation"
)

const maxJSONBody = 64 << 10

var finalizeStatus = map[string]int{
	upload.CodeNotFound:     http.StatusNotFound,
	upload.CodeKindMismatch: http.StatusConflict,
	upload.CodeEmpty:        http.StatusUnprocessableEntity,
	upload.CodeIncomplete:   http.StatusUnprocessableEntity,
}

// writeError maps service errors onto {error, code} responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		finalizeErr *upload.FinalizeError
		violation   *validation.Violation
	)

	switch {
	case errors.Is(err, service.ErrDurationRejected):
		render.Error(w, r, http.StatusUnprocessableEntity, "duration_rejected", err.Error())
	case errors.As(err, &finalizeErr):
		status, ok := finalizeStatus[finalizeErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		render.Error(w, r, status, finalizeErr.Code, err.Error())
	case errors.As(err, &violation):
		render.Error(w, r, http.StatusBadRequest, violation.Reason, err.Error())
	case errors.Is(err, upload.ErrInvalidPlanRequest), errors.Is(err, service.ErrUploadIDMismatch):
		render.Error(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, upload.ErrInvalidPartNumber), errors.Is(err, service.ErrPartOutOfRange):
		render.Error(w, r, http.StatusBadRequest, "invalid_part", err.Error())
	case errors.Is(err, service.ErrArtifactTooLarge):
		render.Error(w, r, http.StatusRequestEntityTooLarge, "too_large", err.Error())
	case errors.Is(err, service.ErrInvalidPersonality):
		render.Error(w, r, http.StatusBadRequest, "invalid_personality", err.Error())
	case errors.Is(err, service.ErrConsentRequired):
		render.Error(w, r, http.StatusConflict, "consent_required", err.Error())
	case errors.Is(err, service.ErrMediaKindInvalid):
		render.Error(w, r, http.StatusConflict, upload.CodeKindMismatch, err.Error())
	case errors.Is(err, service.ErrVideoDisabled):
		render.Error(w, r, http.StatusConflict, "video_disabled", err.Error())
	case errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrMediaNotFound),
		errors.Is(err, repository.ErrJobNotFound):
		render.Error(w, r, http.StatusNotFound, upload.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrConsentUnavailable):
		slog.Error("consent document unavailable", "error", err)
		render.Error(w, r, http.StatusServiceUnavailable, "unavailable", "consent document unavailable")
	default:
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", ctxkeys.RequestID(r.Context()),
		)
		render.Error(w, r, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	render.Error(w, r, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
	return false
}
