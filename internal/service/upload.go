package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/repository"
	"github.com/templui/twinboard/internal/storage"
	"github.com/templui/twinboard/internal/upload"
	"github.com/templui/twinboard/internal/validation"
)

var (
	ErrArtifactTooLarge = errors.New("artifact exceeds the maximum upload size")
	ErrPartOutOfRange   = errors.New("part number is outside the planned range")
	ErrUploadIDMismatch = errors.New("upload id in body does not match the url")
	ErrDurationRejected = errors.New("duration rejected")
)

// DurationProber measures finalized media. ffprobe.Prober satisfies it.
type DurationProber interface {
	ProbeDuration(ctx context.Context, data []byte) (float64, error)
}

type UploadService struct {
	planner          *upload.Planner
	store            upload.Store
	storage          storage.Storage
	mediaRepo        repository.MediaRepository
	policy           *validation.CapturePolicy
	prober           DurationProber
	maxArtifactBytes int64
}

// NewUploadService wires the chunked upload protocol to the media sink. A nil
// prober skips server-side duration verification.
func NewUploadService(planner *upload.Planner, store upload.Store, storage storage.Storage, mediaRepo repository.MediaRepository, policy *validation.CapturePolicy, prober DurationProber, maxArtifactBytes int64) *UploadService {
	return &UploadService{
		planner:          planner,
		store:            store,
		storage:          storage,
		mediaRepo:        mediaRepo,
		policy:           policy,
		prober:           prober,
		maxArtifactBytes: maxArtifactBytes,
	}
}

// Init opens a session for userID and returns its transfer plan.
func (s *UploadService) Init(ctx context.Context, userID string, kind model.MediaKind, req model.UploadInitRequest) (model.UploadPlan, error) {
	if s.maxArtifactBytes > 0 && req.Size > s.maxArtifactBytes {
		return model.UploadPlan{}, fmt.Errorf("%w: %d > %d bytes", ErrArtifactTooLarge, req.Size, s.maxArtifactBytes)
	}
	if req.Mime != "" && !s.policy.AllowsEncoding(kind, req.Mime) {
		return model.UploadPlan{}, &validation.Violation{Reason: validation.ReasonUnsupportedEncoding, Kind: kind, MimeType: req.Mime}
	}

	plan, err := s.planner.Plan(ctx, upload.PlanRequest{
		Kind:  kind,
		Owner: userID,
		Mime:  req.Mime,
		Size:  req.Size,
		Parts: req.Parts,
	})
	if err != nil {
		return model.UploadPlan{}, err
	}

	slog.Info("upload session opened",
		"upload_id", plan.UploadID,
		"user_id", userID,
		"kind", kind,
		"size", req.Size,
		"parts", plan.PartCount(),
	)
	return plan, nil
}

// PutPart stores one part of a session owned by userID. The part must be
// addressed under the kind the session was opened for.
func (s *UploadService) PutPart(ctx context.Context, userID string, kind model.MediaKind, uploadID string, partNumber int, content []byte) (string, error) {
	session, err := s.ownedSession(ctx, userID, uploadID)
	if err != nil {
		return "", err
	}
	if session.Kind != kind {
		return "", &upload.FinalizeError{Code: upload.CodeKindMismatch, UploadID: uploadID}
	}
	if session.ExpectedParts > 0 && partNumber > session.ExpectedParts {
		return "", fmt.Errorf("%w: part %d of %d", ErrPartOutOfRange, partNumber, session.ExpectedParts)
	}
	return s.store.PutPart(ctx, uploadID, partNumber, content)
}

// Complete finalizes the session, hands the blob to the storage sink and
// records it. Structural failures come back as *upload.FinalizeError.
func (s *UploadService) Complete(ctx context.Context, userID string, kind model.MediaKind, uploadID string, req model.UploadCompleteRequest) (model.UploadCompleteResponse, error) {
	if req.UploadID != "" && req.UploadID != uploadID {
		return model.UploadCompleteResponse{}, ErrUploadIDMismatch
	}
	if _, err := s.ownedSession(ctx, userID, uploadID); err != nil {
		return model.UploadCompleteResponse{}, err
	}

	blob, err := s.store.Finalize(ctx, uploadID, kind)
	if err != nil {
		return model.UploadCompleteResponse{}, err
	}
	if n := blob.Session.ExpectedParts; n > 0 && len(req.Parts) > 0 && len(req.Parts) != n {
		slog.Warn("client reported a different part count", "upload_id", uploadID, "reported", len(req.Parts), "expected", blob.Session.ExpectedParts)
	}

	var duration float64
	if s.prober != nil {
		duration, err = s.verify(ctx, kind, blob)
		if err != nil {
			slog.Warn("upload rejected on verification", "upload_id", uploadID, "kind", kind, "error", err)
			return model.UploadCompleteResponse{}, err
		}
	}

	storagePath := path.Join("uploads", userID, kind.String(), uploadID+model.ExtensionForMime(blob.Session.MimeType))
	err = s.storage.Save(ctx, storagePath, bytes.NewReader(blob.Bytes), blob.Session.MimeType)
	if err != nil {
		return model.UploadCompleteResponse{}, fmt.Errorf("failed to save media: %w", err)
	}

	media := &model.MediaFile{
		UserID:          userID,
		UploadID:        uploadID,
		Kind:            kind.String(),
		MimeType:        blob.Session.MimeType,
		Size:            blob.Size,
		DurationSeconds: duration,
		StoragePath:     storagePath,
		CreatedAt:       time.Now().UTC(),
	}
	err = s.mediaRepo.Create(media)
	if err != nil {
		// If DB insert fails, try to cleanup the stored blob
		delErr := s.storage.Delete(ctx, storagePath)
		if delErr != nil {
			slog.Error("failed to delete media from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return model.UploadCompleteResponse{}, fmt.Errorf("failed to create media record: %w", err)
	}

	slog.Info("upload finalized", "upload_id", uploadID, "user_id", userID, "kind", kind, "size", blob.Size, "path", storagePath)
	return model.UploadCompleteResponse{OK: true, UploadID: uploadID, Size: blob.Size}, nil
}

// MediaURL returns a playback link for a finalized upload owned by userID.
func (s *UploadService) MediaURL(ctx context.Context, userID, uploadID string) (string, error) {
	media, err := s.mediaRepo.ByUploadID(uploadID)
	if err != nil {
		return "", err
	}
	if media.UserID != userID {
		return "", repository.ErrMediaNotFound
	}
	return s.storage.URL(ctx, media.StoragePath)
}

// ownedSession hides sessions of other users behind not_found.
func (s *UploadService) ownedSession(ctx context.Context, userID, uploadID string) (model.UploadSession, error) {
	session, err := s.store.Lookup(ctx, uploadID)
	if err != nil {
		return model.UploadSession{}, err
	}
	if session.Owner != userID {
		return model.UploadSession{}, &upload.FinalizeError{Code: upload.CodeNotFound, UploadID: uploadID}
	}
	return session, nil
}

func (s *UploadService) verify(ctx context.Context, kind model.MediaKind, blob model.FinalizedBlob) (float64, error) {
	err := validation.ValidateMediaContent(kind, blob.Bytes)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDurationRejected, err)
	}
	duration, err := s.prober.ProbeDuration(ctx, blob.Bytes)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDurationRejected, err)
	}
	err = s.policy.Validate(kind, duration, blob.Session.MimeType)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDurationRejected, err)
	}
	return duration, nil
}
