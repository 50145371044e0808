package routes

import (
	"net/http"
	"time"

	"github.com/templui/twinboard/internal/app"
	"github.com/templui/twinboard/internal/handler"
	"github.com/templui/twinboard/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	uploads := handler.NewUploadHandler(app.UploadService, app.Cfg.UploadPartMaxBytes)
	onboarding := handler.NewOnboardingHandler(
		app.ProfileService,
		app.TwinService,
		app.ConsentService,
		app.Policy.Config(app.Cfg.VideoStepEnabled),
	)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /api/onboarding/consent", onboarding.Consent)
	mux.HandleFunc("GET /api/onboarding/config", onboarding.Config)

	// ============================================================================
	// UPLOAD PROTOCOL
	// ============================================================================

	initLimiter := middleware.RateLimit(app.Cfg.UploadInitRateLimit, time.Minute)
	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.Protect(h, middleware.RequireAuth)
	}

	mux.HandleFunc("POST /upload/{kind}/init", middleware.Protect(uploads.Init, middleware.RequireAuth, initLimiter))
	mux.HandleFunc("PUT /upload/{kind}/{uploadId}/parts/{partNumber}", auth(uploads.PutPart))
	mux.HandleFunc("POST /upload/{kind}/{uploadId}/complete", auth(uploads.Complete))
	mux.HandleFunc("GET /api/media/{uploadId}/url", auth(uploads.MediaURL))

	// ============================================================================
	// ONBOARDING
	// ============================================================================

	mux.HandleFunc("POST /api/onboarding/personality", auth(onboarding.SavePersonality))
	mux.HandleFunc("POST /api/onboarding/commit", auth(onboarding.Commit))
	mux.HandleFunc("GET /api/onboarding/jobs/{id}", auth(onboarding.Job))

	return middleware.Chain(mux,
		middleware.WithRequestID,
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService),
		middleware.CSRFProtection(app.Cfg.IsProduction()),
	)
}
