package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName     string
	AppEnv      string
	AppURL      string
	Port        string
	ContentPath string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Identity provider token verification
	JWTSecret string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string

	// Storage sink for finalized uploads: "s3" or "local"
	StorageDriver          string
	StorageLocalPath       string
	S3Region               string
	S3Bucket               string
	S3AccessKey            string
	S3SecretKey            string
	S3Endpoint             string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PresignExpiryPrivate time.Duration // Expiry for media playback links

	// Capture constraints (shared with clients through /api/onboarding/config)
	VoiceMinSeconds  float64
	VoiceMaxSeconds  float64
	VoiceMimeTypes   []string
	VideoMinSeconds  float64
	VideoMaxSeconds  float64
	VideoMimeTypes   []string
	VideoStepEnabled bool

	// Upload protocol
	UploadSessionStore     string // "memory" or "db"
	UploadSessionTTL       time.Duration
	UploadReapInterval     time.Duration
	UploadPartMaxBytes     int64
	UploadMaxArtifactBytes int64
	UploadMaxParts         int
	UploadVerifyDuration   bool
	UploadInitRateLimit    int
	FFprobeBinary          string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:     envString("APP_NAME", "Twinboard"),
		AppEnv:      envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:      envRequired("APP_URL"), // Required: base URL for upload targets
		Port:        envString("PORT", "8090"),
		ContentPath: envString("CONTENT_PATH", "content"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/twinboard.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Identity
		JWTSecret: envRequired("JWT_SECRET"),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		StorageDriver:          envString("STORAGE_DRIVER", "local"),
		StorageLocalPath:       envString("STORAGE_LOCAL_PATH", "./data/media"),
		S3Region:               envString("S3_REGION", ""),
		S3Bucket:               envString("S3_BUCKET", ""),
		S3AccessKey:            envString("S3_ACCESS_KEY", ""),
		S3SecretKey:            envString("S3_SECRET_KEY", ""),
		S3Endpoint:             envString("S3_ENDPOINT", ""),
		S3PresignExpiryPrivate: envDuration("S3_PRESIGN_EXPIRY_PRIVATE", 1*time.Hour),

		// Capture constraints
		VoiceMinSeconds:  envFloat("VOICE_MIN_SECONDS", 20),
		VoiceMaxSeconds:  envFloat("VOICE_MAX_SECONDS", 120),
		VoiceMimeTypes:   envList("VOICE_MIME_TYPES", []string{"audio/webm", "audio/ogg", "audio/mpeg", "audio/mp4", "audio/wav"}),
		VideoMinSeconds:  envFloat("VIDEO_MIN_SECONDS", 15),
		VideoMaxSeconds:  envFloat("VIDEO_MAX_SECONDS", 30),
		VideoMimeTypes:   envList("VIDEO_MIME_TYPES", []string{"video/webm", "video/mp4", "video/quicktime"}),
		VideoStepEnabled: envBool("VIDEO_STEP_ENABLED", true),

		// Upload protocol
		UploadSessionStore:     envString("UPLOAD_SESSION_STORE", "memory"),
		UploadSessionTTL:       envDuration("UPLOAD_SESSION_TTL", 1*time.Hour),
		UploadReapInterval:     envDuration("UPLOAD_REAP_INTERVAL", 5*time.Minute),
		UploadPartMaxBytes:     envInt64("UPLOAD_PART_MAX_BYTES", 8<<20),       // 8 MiB
		UploadMaxArtifactBytes: envInt64("UPLOAD_MAX_ARTIFACT_BYTES", 512<<20), // 512 MiB
		UploadMaxParts:         envInt("UPLOAD_MAX_PARTS", 10000),
		UploadVerifyDuration:   envBool("UPLOAD_VERIFY_DURATION", false),
		UploadInitRateLimit:    envInt("UPLOAD_INIT_RATE_LIMIT", 30), // per IP per minute
		FFprobeBinary:          envString("FFPROBE_BINARY", "ffprobe"),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to log instead of send and media to land on local disk.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.StorageDriver == "s3" && (cfg.S3Bucket == "" || cfg.S3Region == "") {
		slog.Error("s3 storage requires S3_BUCKET and S3_REGION")
		os.Exit(1)
	}
	if cfg.UploadSessionStore == "memory" {
		slog.Warn("upload sessions kept in process memory",
			"hint", "set UPLOAD_SESSION_STORE=db when running more than one instance")
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config invalid float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList reads a comma separated list.
func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
