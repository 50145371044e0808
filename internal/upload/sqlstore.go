package upload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/twinboard/internal/model"
)

// SQLStore keeps sessions in the shared database so that every server
// instance sees the same uploads.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Open(ctx context.Context, session model.UploadSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.CreatedAt = session.CreatedAt.UTC()

	var exists int
	err := s.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM upload_sessions WHERE id = $1`, session.ID)
	if err != nil {
		return fmt.Errorf("failed to check upload session: %w", err)
	}
	if exists > 0 {
		return ErrSessionExists
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (id, kind, owner, mime_type, declared_size, expected_parts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, session.ID, string(session.Kind), session.Owner, session.MimeType, session.DeclaredSize, session.ExpectedParts, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to open upload session: %w", err)
	}
	return nil
}

func (s *SQLStore) Lookup(ctx context.Context, uploadID string) (model.UploadSession, error) {
	var session model.UploadSession
	err := s.db.GetContext(ctx, &session, `
		SELECT id, kind, owner, mime_type, declared_size, expected_parts, created_at
		FROM upload_sessions WHERE id = $1
	`, uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UploadSession{}, notFound(uploadID)
	}
	if err != nil {
		return model.UploadSession{}, fmt.Errorf("failed to load upload session: %w", err)
	}
	return session, nil
}

func (s *SQLStore) PutPart(ctx context.Context, uploadID string, partNumber int, content []byte) (string, error) {
	if partNumber < 1 {
		return "", ErrInvalidPartNumber
	}
	etag := ETag(content)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM upload_sessions WHERE id = $1`, uploadID)
	if err != nil {
		return "", fmt.Errorf("failed to check upload session: %w", err)
	}
	if exists == 0 {
		return "", notFound(uploadID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO upload_parts (upload_id, part_number, content, etag, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (upload_id, part_number)
		DO UPDATE SET content = excluded.content, etag = excluded.etag, updated_at = excluded.updated_at
	`, uploadID, partNumber, content, etag, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to store part %d: %w", partNumber, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit part %d: %w", partNumber, err)
	}
	return etag, nil
}

// Finalize reads and deletes the session in one transaction. When two
// instances race, only the one whose DELETE removes the row proceeds.
func (s *SQLStore) Finalize(ctx context.Context, uploadID string, kind model.MediaKind) (model.FinalizedBlob, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.FinalizedBlob{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var session model.UploadSession
	err = tx.GetContext(ctx, &session, `
		SELECT id, kind, owner, mime_type, declared_size, expected_parts, created_at
		FROM upload_sessions WHERE id = $1
	`, uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FinalizedBlob{}, notFound(uploadID)
	}
	if err != nil {
		return model.FinalizedBlob{}, fmt.Errorf("failed to load upload session: %w", err)
	}

	var parts []model.Part
	err = tx.SelectContext(ctx, &parts, `
		SELECT part_number, content, etag FROM upload_parts
		WHERE upload_id = $1 ORDER BY part_number ASC
	`, uploadID)
	if err != nil {
		return model.FinalizedBlob{}, fmt.Errorf("failed to load parts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM upload_parts WHERE upload_id = $1`, uploadID)
	if err != nil {
		return model.FinalizedBlob{}, fmt.Errorf("failed to delete parts: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = $1`, uploadID)
	if err != nil {
		return model.FinalizedBlob{}, fmt.Errorf("failed to delete upload session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return model.FinalizedBlob{}, err
	}
	if rows == 0 {
		return model.FinalizedBlob{}, notFound(uploadID)
	}

	if err := tx.Commit(); err != nil {
		return model.FinalizedBlob{}, fmt.Errorf("failed to commit finalize: %w", err)
	}

	return assemble(session, kind, parts)
}

func (s *SQLStore) Reap(ctx context.Context, olderThan time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM upload_sessions WHERE created_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reap upload sessions: %w", err)
	}
	// also sweeps parts written after their session was finalized
	_, err = tx.ExecContext(ctx, `DELETE FROM upload_parts WHERE upload_id NOT IN (SELECT id FROM upload_sessions)`)
	if err != nil {
		return 0, fmt.Errorf("failed to reap orphaned parts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}
