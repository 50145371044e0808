package handler

import (
	"net/http"

	"github.com/templui/twinboard/internal/ctxkeys"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/render"
	"github.com/templui/twinboard/internal/service"
	"github.com/templui/twinboard/internal/validation"
)

type OnboardingHandler struct {
	profileService *service.ProfileService
	twinService    *service.TwinService
	consentService *service.ConsentService
	captureConfig  validation.CaptureConfig
}

func NewOnboardingHandler(profileService *service.ProfileService, twinService *service.TwinService, consentService *service.ConsentService, captureConfig validation.CaptureConfig) *OnboardingHandler {
	return &OnboardingHandler{
		profileService: profileService,
		twinService:    twinService,
		consentService: consentService,
		captureConfig:  captureConfig,
	}
}

// SavePersonality handles POST /api/onboarding/personality
func (h *OnboardingHandler) SavePersonality(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req model.SavePersonalityRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	profile, err := h.profileService.SavePersonality(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, model.SavePersonalityResponse{ProfileID: profile.ID})
}

// Commit handles POST /api/onboarding/commit
func (h *OnboardingHandler) Commit(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req model.CommitRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.ProfileID == "" {
		render.Error(w, r, http.StatusBadRequest, "invalid_request", "profileId is required")
		return
	}

	status, err := h.twinService.Commit(r.Context(), *user, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusAccepted, status)
}

// Job handles GET /api/onboarding/jobs/{id}
func (h *OnboardingHandler) Job(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	status, err := h.twinService.Job(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, status)
}

// Consent handles GET /api/onboarding/consent
func (h *OnboardingHandler) Consent(w http.ResponseWriter, r *http.Request) {
	doc, err := h.consentService.Current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, doc)
}

// Config handles GET /api/onboarding/config
func (h *OnboardingHandler) Config(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, h.captureConfig)
}
