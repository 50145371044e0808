package model

import (
	"time"
)

// MediaFile is the persisted record of a finalized upload.
type MediaFile struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	UploadID        string    `db:"upload_id"`
	Kind            string    `db:"kind"`
	MimeType        string    `db:"mime_type"`
	Size            int64     `db:"size"`
	DurationSeconds float64   `db:"duration_seconds"` // 0 when the server did not probe the blob
	StoragePath     string    `db:"storage_path"`
	CreatedAt       time.Time `db:"created_at"`
}
