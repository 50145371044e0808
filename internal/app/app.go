package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/templui/twinboard/internal/config"
	"github.com/templui/twinboard/internal/db"
	"github.com/templui/twinboard/internal/media/ffprobe"
	"github.com/templui/twinboard/internal/repository"
	"github.com/templui/twinboard/internal/service"
	"github.com/templui/twinboard/internal/storage"
	"github.com/templui/twinboard/internal/upload"
	"github.com/templui/twinboard/internal/validation"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Policy         *validation.CapturePolicy
	UploadStore    upload.Store
	Reaper         *upload.Reaper
	AuthService    *service.AuthService
	UploadService  *service.UploadService
	ProfileService *service.ProfileService
	TwinService    *service.TwinService
	ConsentService *service.ConsentService
	EmailService   *service.EmailService
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Repositories
	profileRepository := repository.NewProfileRepository(database)
	mediaRepository := repository.NewMediaRepository(database)
	twinJobRepository := repository.NewTwinJobRepository(database)

	// Storage
	mediaStorage, err := storage.New(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Upload sessions
	var store upload.Store
	switch cfg.UploadSessionStore {
	case "db":
		store = upload.NewSQLStore(database)
	case "memory", "":
		store = upload.NewMemoryStore()
	default:
		database.Close()
		return nil, fmt.Errorf("unknown upload session store %q", cfg.UploadSessionStore)
	}
	planner := upload.NewPlanner(store, cfg.AppURL, cfg.UploadMaxParts)

	policy := validation.NewCapturePolicy(
		validation.CaptureConstraints{MinSeconds: cfg.VoiceMinSeconds, MaxSeconds: cfg.VoiceMaxSeconds, AllowedMimeTypes: cfg.VoiceMimeTypes},
		validation.CaptureConstraints{MinSeconds: cfg.VideoMinSeconds, MaxSeconds: cfg.VideoMaxSeconds, AllowedMimeTypes: cfg.VideoMimeTypes},
	)

	var prober service.DurationProber
	if cfg.UploadVerifyDuration {
		prober = ffprobe.Prober{Binary: cfg.FFprobeBinary}
	}

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	consentService := service.NewConsentService(cfg.ContentPath)
	uploadService := service.NewUploadService(planner, store, mediaStorage, mediaRepository, policy, prober, cfg.UploadMaxArtifactBytes)
	profileService := service.NewProfileService(profileRepository)
	twinService := service.NewTwinService(profileRepository, mediaRepository, twinJobRepository, consentService, emailService, cfg.VideoStepEnabled)

	return &App{
		Cfg:            cfg,
		DB:             database,
		Policy:         policy,
		UploadStore:    store,
		Reaper:         upload.NewReaper(store, cfg.UploadSessionTTL, cfg.UploadReapInterval),
		AuthService:    service.NewAuthService(cfg.JWTSecret),
		UploadService:  uploadService,
		ProfileService: profileService,
		TwinService:    twinService,
		ConsentService: consentService,
		EmailService:   emailService,
	}, nil
}

// Start runs background work until ctx is done.
func (a *App) Start(ctx context.Context) {
	slog.Info("upload reaper started", "ttl", a.Cfg.UploadSessionTTL, "interval", a.Cfg.UploadReapInterval, "store", a.Cfg.UploadSessionStore)
	go a.Reaper.Run(ctx)
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
