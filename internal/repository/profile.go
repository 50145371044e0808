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

type ProfileRepository interface {
	ByID(id string) (*model.Profile, error)
	ByUserID(userID string) (*model.Profile, error)
	// Save inserts the user's profile or overwrites its personality fields.
	Save(profile *model.Profile) error
	UpdateStatus(id, status string) error
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByID(id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.Get(&profile, `SELECT * FROM profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) ByUserID(userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.Get(&profile, `SELECT * FROM profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Save(profile *model.Profile) error {
	now := time.Now().UTC()

	existing, err := r.ByUserID(profile.UserID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return err
	}

	if existing == nil {
		if profile.ID == "" {
			profile.ID = uuid.New().String()
		}
		if profile.Status == "" {
			profile.Status = model.ProfileStatusDraft
		}
		profile.CreatedAt = now
		profile.UpdatedAt = now

		_, err = r.db.Exec(`
			INSERT INTO profiles (id, user_id, display_name, bio, tone, traits, languages, consent_version, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, profile.ID, profile.UserID, profile.DisplayName, profile.Bio, profile.Tone,
			profile.Traits, profile.Languages, profile.ConsentVersion, profile.Status,
			profile.CreatedAt, profile.UpdatedAt)
		return err
	}

	profile.ID = existing.ID
	profile.Status = model.ProfileStatusDraft
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = now

	_, err = r.db.Exec(`
		UPDATE profiles
		SET display_name = $1, bio = $2, tone = $3, traits = $4, languages = $5,
		    consent_version = $6, status = $7, updated_at = $8
		WHERE id = $9
	`, profile.DisplayName, profile.Bio, profile.Tone, profile.Traits, profile.Languages,
		profile.ConsentVersion, profile.Status, profile.UpdatedAt, profile.ID)
	return err
}

func (r *profileRepository) UpdateStatus(id, status string) error {
	result, err := r.db.Exec(`
		UPDATE profiles
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}
