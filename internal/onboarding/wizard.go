package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/templui/twinboard/internal/model"
)

var (
	ErrBusy            = errors.New("wizard is busy")
	ErrNotAtReview     = errors.New("commit is only allowed at the review step")
	ErrConsentRequired = errors.New("consent has not been given")
	ErrAbandoned       = errors.New("draft was abandoned")
)

// ProfileSaver persists the personality step and returns the profile id.
type ProfileSaver interface {
	SavePersonality(ctx context.Context, req model.SavePersonalityRequest) (string, error)
}

// Uploader transfers one validated artifact.
type Uploader interface {
	Upload(ctx context.Context, artifact *model.MediaArtifact, kind model.MediaKind) (model.UploadReceipt, error)
}

// Committer finalizes the twin and returns the job it queued.
type Committer interface {
	Commit(ctx context.Context, req model.CommitRequest) (model.JobStatus, error)
}

// Wizard owns one draft and serializes transitions on it.
type Wizard struct {
	machine   *Machine
	profiles  ProfileSaver
	uploader  Uploader
	committer Committer

	mu    sync.Mutex
	draft Draft
	epoch uint64
}

func NewWizard(machine *Machine, profiles ProfileSaver, uploader Uploader, committer Committer) *Wizard {
	return &Wizard{
		machine:   machine,
		profiles:  profiles,
		uploader:  uploader,
		committer: committer,
		draft:     NewDraft(),
	}
}

func (w *Wizard) Machine() *Machine { return w.machine }

// Draft returns a snapshot of the current draft.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Dispatch applies a to the draft. Only the busy flag and error bookkeeping
// are accepted while busy.
func (w *Wizard) Dispatch(a Action) (Draft, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft.Busy {
		switch a.(type) {
		case SetBusy, Fail, ResetError:
		default:
			return w.draft, ErrBusy
		}
	}

	next, err := w.machine.Apply(w.draft, a)
	if err != nil {
		return w.draft, err
	}
	w.draft = next
	return w.draft, nil
}

// Abandon discards the draft. A commit still in flight finishes on the
// server but its outcome no longer touches the wizard.
func (w *Wizard) Abandon() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	w.draft = NewDraft()
}

// Commit runs the review step: save personality, upload voice, upload video,
// commit. A failure leaves the draft and its artifacts in place with Error set,
// so calling Commit again retries the whole sequence with fresh upload sessions.
func (w *Wizard) Commit(ctx context.Context) (model.JobStatus, error) {
	w.mu.Lock()
	switch {
	case w.draft.Busy:
		w.mu.Unlock()
		return model.JobStatus{}, ErrBusy
	case w.draft.Step != StepReview:
		w.mu.Unlock()
		return model.JobStatus{}, ErrNotAtReview
	case !w.draft.Consent:
		w.mu.Unlock()
		return model.JobStatus{}, ErrConsentRequired
	}
	next, err := w.apply(w.draft, ResetError{}, SetBusy{Busy: true})
	if err != nil {
		w.mu.Unlock()
		return model.JobStatus{}, err
	}
	w.draft = next
	snapshot := w.draft
	epoch := w.epoch
	w.mu.Unlock()

	status, err := w.run(ctx, snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()

	if epoch != w.epoch {
		if err != nil {
			return model.JobStatus{}, err
		}
		return status, ErrAbandoned
	}
	if err != nil {
		if next, aerr := w.apply(w.draft, SetBusy{Busy: false}, Fail{Message: err.Error()}); aerr == nil {
			w.draft = next
		}
		slog.Warn("onboarding commit failed", "error", err)
		return model.JobStatus{}, err
	}

	slog.Info("onboarding committed", "job_id", status.JobID, "status", status.Status)
	w.draft = NewDraft()
	return status, nil
}

func (w *Wizard) run(ctx context.Context, d Draft) (model.JobStatus, error) {
	profileID, err := w.profiles.SavePersonality(ctx, model.SavePersonalityRequest{
		Personality:    d.Personality,
		ConsentVersion: d.ConsentVersion,
	})
	if err != nil {
		return model.JobStatus{}, err
	}

	req := model.CommitRequest{ProfileID: profileID}

	if d.VoiceSample != nil {
		receipt, err := w.uploader.Upload(ctx, d.VoiceSample, model.MediaKindVoice)
		if err != nil {
			return model.JobStatus{}, err
		}
		req.VoiceUploadID = receipt.UploadID
	}

	if d.VideoSample != nil && w.machine.VideoEnabled() {
		receipt, err := w.uploader.Upload(ctx, d.VideoSample, model.MediaKindVideo)
		if err != nil {
			return model.JobStatus{}, err
		}
		req.VideoUploadID = receipt.UploadID
	}

	return w.committer.Commit(ctx, req)
}

// apply runs actions in order through the machine.
func (w *Wizard) apply(d Draft, actions ...Action) (Draft, error) {
	for _, a := range actions {
		var err error
		d, err = w.machine.Apply(d, a)
		if err != nil {
			return d, err
		}
	}
	return d, nil
}
