package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/twinboard/internal/model"
)

type TwinJobRepository interface {
	Create(job *model.TwinJob) error
	ByID(id string) (*model.TwinJob, error)
	UpdateStatus(id, status string) error
}

type twinJobRepository struct {
	db *sqlx.DB
}

func NewTwinJobRepository(db *sqlx.DB) TwinJobRepository {
	return &twinJobRepository{db: db}
}

func (r *twinJobRepository) Create(job *model.TwinJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}

	_, err := r.db.Exec(`
		INSERT INTO twin_jobs (id, user_id, profile_id, voice_upload_id, video_upload_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, job.ID, job.UserID, job.ProfileID, job.VoiceUploadID, job.VideoUploadID, job.Status, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *twinJobRepository) ByID(id string) (*model.TwinJob, error) {
	var job model.TwinJob
	err := r.db.Get(&job, `SELECT * FROM twin_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *twinJobRepository) UpdateStatus(id, status string) error {
	result, err := r.db.Exec(`UPDATE twin_jobs SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}
