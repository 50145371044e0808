package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/repository"
	"github.com/templui/twinboard/internal/testsupport"
)

type staticConsent struct {
	doc model.ConsentDocument
	err error
}

func (c staticConsent) Current() (model.ConsentDocument, error) {
	return c.doc, c.err
}

type twinFixture struct {
	svc      *TwinService
	profiles repository.ProfileRepository
	media    repository.MediaRepository
	jobs     repository.TwinJobRepository
}

func newTwinFixture(t *testing.T, videoEnabled bool) *twinFixture {
	t.Helper()
	db := testsupport.NewSQLite(t)
	f := &twinFixture{
		profiles: repository.NewProfileRepository(db),
		media:    repository.NewMediaRepository(db),
		jobs:     repository.NewTwinJobRepository(db),
	}
	email := NewEmailService("", "noreply@example.com", "http://localhost", "Twinboard", true)
	f.svc = NewTwinService(f.profiles, f.media, f.jobs, staticConsent{doc: model.ConsentDocument{Version: "v2"}}, email, videoEnabled)
	return f
}

func (f *twinFixture) profile(t *testing.T, userID, consent string) *model.Profile {
	t.Helper()
	p := &model.Profile{UserID: userID, DisplayName: "Ada", ConsentVersion: consent}
	require.NoError(t, f.profiles.Save(p))
	return p
}

func (f *twinFixture) upload(t *testing.T, userID, uploadID string, kind model.MediaKind) {
	t.Helper()
	require.NoError(t, f.media.Create(&model.MediaFile{
		UserID: userID, UploadID: uploadID, Kind: kind.String(), MimeType: "audio/webm", Size: 10, StoragePath: "x",
	}))
}

func TestTwinService_Commit(t *testing.T) {
	f := newTwinFixture(t, true)
	ctx := context.Background()
	user := model.User{ID: "u1", Email: "u1@example.com"}

	p := f.profile(t, "u1", "v2")
	f.upload(t, "u1", "voice-1", model.MediaKindVoice)
	f.upload(t, "u1", "video-1", model.MediaKindVideo)

	status, err := f.svc.Commit(ctx, user, model.CommitRequest{ProfileID: p.ID, VoiceUploadID: "voice-1", VideoUploadID: "video-1"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, status.Status)

	job, err := f.jobs.ByID(status.JobID)
	require.NoError(t, err)
	assert.Equal(t, "voice-1", job.VoiceUploadID)
	assert.Equal(t, "video-1", job.VideoUploadID)

	got, err := f.profiles.ByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileStatusCommitted, got.Status)

	looked, err := f.svc.Job(ctx, "u1", status.JobID)
	require.NoError(t, err)
	assert.Equal(t, status, looked)

	_, err = f.svc.Job(ctx, "u2", status.JobID)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestTwinService_CommitGuards(t *testing.T) {
	f := newTwinFixture(t, false)
	ctx := context.Background()
	user := model.User{ID: "u1"}

	stale := f.profile(t, "u1", "v1")
	_, err := f.svc.Commit(ctx, user, model.CommitRequest{ProfileID: stale.ID})
	assert.ErrorIs(t, err, ErrConsentRequired)

	current := f.profile(t, "u1", "v2")
	foreign := f.profile(t, "u2", "v2")
	f.upload(t, "u2", "voice-u2", model.MediaKindVoice)
	f.upload(t, "u1", "video-as-voice", model.MediaKindVideo)

	tests := []struct {
		name string
		user model.User
		req  model.CommitRequest
		want error
	}{
		{"foreign profile", user, model.CommitRequest{ProfileID: foreign.ID}, repository.ErrProfileNotFound},
		{"missing profile", user, model.CommitRequest{ProfileID: "nope"}, repository.ErrProfileNotFound},
		{"foreign upload", user, model.CommitRequest{ProfileID: current.ID, VoiceUploadID: "voice-u2"}, repository.ErrMediaNotFound},
		{"missing upload", user, model.CommitRequest{ProfileID: current.ID, VoiceUploadID: "nope"}, repository.ErrMediaNotFound},
		{"wrong kind", user, model.CommitRequest{ProfileID: current.ID, VoiceUploadID: "video-as-voice"}, ErrMediaKindInvalid},
		{"video disabled", user, model.CommitRequest{ProfileID: current.ID, VideoUploadID: "video-as-voice"}, ErrVideoDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Commit(ctx, tt.user, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTwinService_ConsentUnavailable(t *testing.T) {
	f := newTwinFixture(t, true)
	f.svc.consent = staticConsent{err: ErrConsentUnavailable}
	p := f.profile(t, "u1", "v2")

	_, err := f.svc.Commit(context.Background(), model.User{ID: "u1"}, model.CommitRequest{ProfileID: p.ID})
	assert.ErrorIs(t, err, ErrConsentUnavailable)
}

func TestConsentService(t *testing.T) {
	dir := t.TempDir()
	svc := NewConsentService(dir)

	_, err := svc.Current()
	assert.ErrorIs(t, err, ErrConsentUnavailable)

	path := filepath.Join(dir, "consent.md")
	require.NoError(t, os.WriteFile(path, []byte("---\ntitle: Twin Consent\nversion: \"2026-01\"\n---\n\nI *agree*.\n"), 0o644))

	doc, err := svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "2026-01", doc.Version)
	assert.Equal(t, "Twin Consent", doc.Title)
	assert.Contains(t, doc.HTML, "<em>agree</em>")

	require.NoError(t, os.WriteFile(path, []byte("No frontmatter here.\n"), 0o644))
	require.NoError(t, os.Chtimes(path, doc2026(), doc2026()))

	doc, err = svc.Current()
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", doc.Version)
	assert.Equal(t, "Digital Twin Consent", doc.Title)
}

func doc2026() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestProfileService_SavePersonality(t *testing.T) {
	svc := NewProfileService(repository.NewProfileRepository(testsupport.NewSQLite(t)))

	p, err := svc.SavePersonality(context.Background(), "u1", model.SavePersonalityRequest{
		Personality:    model.Personality{DisplayName: " Ada ", Languages: model.StringList{"de-de"}},
		ConsentVersion: "v2",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, model.StringList{"de-DE"}, p.Languages)
	assert.Equal(t, "v2", p.ConsentVersion)

	_, err = svc.SavePersonality(context.Background(), "u1", model.SavePersonalityRequest{})
	assert.ErrorIs(t, err, ErrInvalidPersonality)

	_, err = svc.SavePersonality(context.Background(), "u1", model.SavePersonalityRequest{
		Personality: model.Personality{DisplayName: "Ada", Languages: model.StringList{"not a language!"}},
	})
	assert.ErrorIs(t, err, ErrInvalidPersonality)
	assert.False(t, errors.Is(err, ErrConsentRequired))
}
