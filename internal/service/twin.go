package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/repository"
)

var (
	ErrConsentRequired  = errors.New("consent to the current terms is required")
	ErrMediaKindInvalid = errors.New("upload does not hold the expected media kind")
	ErrVideoDisabled    = errors.New("video step is disabled")
)

// ConsentSource provides the consent document a commit must match.
type ConsentSource interface {
	Current() (model.ConsentDocument, error)
}

// TwinService turns a drafted profile plus finalized uploads into a twin job.
type TwinService struct {
	profileRepo      repository.ProfileRepository
	mediaRepo        repository.MediaRepository
	jobRepo          repository.TwinJobRepository
	consent          ConsentSource
	emailService     *EmailService
	videoStepEnabled bool
}

func NewTwinService(profileRepo repository.ProfileRepository, mediaRepo repository.MediaRepository, jobRepo repository.TwinJobRepository, consent ConsentSource, emailService *EmailService, videoStepEnabled bool) *TwinService {
	return &TwinService{
		profileRepo:      profileRepo,
		mediaRepo:        mediaRepo,
		jobRepo:          jobRepo,
		consent:          consent,
		emailService:     emailService,
		videoStepEnabled: videoStepEnabled,
	}
}

// Commit queues a twin job for the caller's profile.
func (s *TwinService) Commit(ctx context.Context, user model.User, req model.CommitRequest) (model.JobStatus, error) {
	profile, err := s.profileRepo.ByID(req.ProfileID)
	if err != nil {
		return model.JobStatus{}, err
	}
	if profile.UserID != user.ID {
		return model.JobStatus{}, repository.ErrProfileNotFound
	}

	doc, err := s.consent.Current()
	if err != nil {
		return model.JobStatus{}, err
	}
	if profile.ConsentVersion != doc.Version {
		return model.JobStatus{}, fmt.Errorf("%w: profile has %q, current is %q", ErrConsentRequired, profile.ConsentVersion, doc.Version)
	}

	if req.VideoUploadID != "" && !s.videoStepEnabled {
		return model.JobStatus{}, ErrVideoDisabled
	}
	err = s.checkMedia(user.ID, req.VoiceUploadID, model.MediaKindVoice)
	if err != nil {
		return model.JobStatus{}, err
	}
	err = s.checkMedia(user.ID, req.VideoUploadID, model.MediaKindVideo)
	if err != nil {
		return model.JobStatus{}, err
	}

	job := &model.TwinJob{
		UserID:        user.ID,
		ProfileID:     profile.ID,
		VoiceUploadID: req.VoiceUploadID,
		VideoUploadID: req.VideoUploadID,
	}
	err = s.jobRepo.Create(job)
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("failed to create twin job: %w", err)
	}

	err = s.profileRepo.UpdateStatus(profile.ID, model.ProfileStatusCommitted)
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("failed to mark profile committed: %w", err)
	}

	slog.Info("twin job queued", "job_id", job.ID, "user_id", user.ID, "profile_id", profile.ID)

	if user.Email != "" {
		err = s.emailService.SendTwinQueuedEmail(ctx, user.Email, profile.DisplayName, job.ID)
		if err != nil {
			slog.Error("failed to send twin queued email", "error", err, "job_id", job.ID)
		}
	}

	return model.JobStatus{JobID: job.ID, Status: job.Status}, nil
}

// Job returns the status of a job owned by userID.
func (s *TwinService) Job(ctx context.Context, userID, jobID string) (model.JobStatus, error) {
	job, err := s.jobRepo.ByID(jobID)
	if err != nil {
		return model.JobStatus{}, err
	}
	if job.UserID != userID {
		return model.JobStatus{}, repository.ErrJobNotFound
	}
	return model.JobStatus{JobID: job.ID, Status: job.Status}, nil
}

func (s *TwinService) checkMedia(userID, uploadID string, kind model.MediaKind) error {
	if uploadID == "" {
		return nil
	}
	media, err := s.mediaRepo.ByUploadID(uploadID)
	if err != nil {
		return fmt.Errorf("%s upload %s: %w", kind, uploadID, err)
	}
	if media.UserID != userID {
		return fmt.Errorf("%s upload %s: %w", kind, uploadID, repository.ErrMediaNotFound)
	}
	if media.Kind != kind.String() {
		return fmt.Errorf("%w: %s upload %s holds %s", ErrMediaKindInvalid, kind, uploadID, media.Kind)
	}
	return nil
}
