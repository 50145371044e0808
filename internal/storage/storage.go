package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cfg "github.com/templui/twinboard/internal/config"
)

// Storage is the sink for finalized media.
type Storage interface {
	// Save stores body at path
	Save(ctx context.Context, path string, body io.Reader, contentType string) error

	// Delete removes the object at path
	Delete(ctx context.Context, path string) error

	// URL returns a time-limited link for playing back the object
	URL(ctx context.Context, path string) (string, error)
}

// New picks the sink configured by STORAGE_DRIVER.
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageDriver {
	case "s3":
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:        c.S3Region,
			Bucket:        c.S3Bucket,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Endpoint:      c.S3Endpoint,
			PresignExpiry: c.S3PresignExpiryPrivate,
		})
	case "local", "":
		slog.Info("initializing local storage", "path", c.StorageLocalPath)
		return NewLocalStorage(c.StorageLocalPath)
	}
	return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
}
