package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/twinboard/internal/model"
)

type MediaRepository interface {
	Create(file *model.MediaFile) error
	ByUploadID(uploadID string) (*model.MediaFile, error)
	ByUserID(userID string) ([]*model.MediaFile, error)
	Delete(id string) error
}

type mediaRepository struct {
	db *sqlx.DB
}

func NewMediaRepository(db *sqlx.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(file *model.MediaFile) error {
	if file.ID == "" {
		file.ID = uuid.New().String()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO media_files (id, user_id, upload_id, kind, mime_type, size, duration_seconds, storage_path, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(query,
		file.ID,
		file.UserID,
		file.UploadID,
		file.Kind,
		file.MimeType,
		file.Size,
		file.DurationSeconds,
		file.StoragePath,
		file.CreatedAt,
	)
	return err
}

func (r *mediaRepository) ByUploadID(uploadID string) (*model.MediaFile, error) {
	file := &model.MediaFile{}
	err := r.db.Get(file, `SELECT * FROM media_files WHERE upload_id = $1`, uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (r *mediaRepository) ByUserID(userID string) ([]*model.MediaFile, error) {
	var files []*model.MediaFile
	err := r.db.Select(&files, `SELECT * FROM media_files WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *mediaRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM media_files WHERE id = $1`, id)
	return err
}
