package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/twinboard/internal/apiclient"
	"github.com/templui/twinboard/internal/app"
	"github.com/templui/twinboard/internal/config"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/onboarding"
	"github.com/templui/twinboard/internal/transfer"
	"github.com/templui/twinboard/internal/upload"
	"github.com/templui/twinboard/internal/validation"
)

const consentDoc = `---
title: Digital Twin Consent
version: "2026-01"
---

I agree that my **voice** and likeness may be used to build my twin.
`

type testServer struct {
	*httptest.Server
	app        *app.App
	storageDir string
	token      string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	contentDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "consent.md"), []byte(consentDoc), 0o644))
	storageDir := t.TempDir()

	cfg := &config.Config{
		AppName:                "Twinboard",
		AppEnv:                 "development",
		ContentPath:            contentDir,
		DBDriver:               "sqlite",
		DBConnection:           "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
		JWTSecret:              "test-secret",
		StorageDriver:          "local",
		StorageLocalPath:       storageDir,
		VoiceMinSeconds:        20,
		VoiceMaxSeconds:        120,
		VoiceMimeTypes:         validation.VoiceConstraints.AllowedMimeTypes,
		VideoMinSeconds:        15,
		VideoMaxSeconds:        30,
		VideoMimeTypes:         validation.VideoConstraints.AllowedMimeTypes,
		VideoStepEnabled:       true,
		UploadSessionStore:     "memory",
		UploadSessionTTL:       time.Hour,
		UploadReapInterval:     time.Minute,
		UploadPartMaxBytes:     1 << 10,
		UploadMaxArtifactBytes: 1 << 20,
		UploadMaxParts:         100,
	}

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	server := httptest.NewServer(SetupRoutes(a))
	t.Cleanup(server.Close)

	return &testServer{
		Server:     server,
		app:        a,
		storageDir: storageDir,
		token:      tokenFor(t, a, "u1"),
	}
}

func tokenFor(t *testing.T, a *app.App, userID string) string {
	t.Helper()
	token, err := a.AuthService.GenerateJWT(&model.User{ID: userID, Email: userID + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return token
}

// call sends a request with the bearer token and returns status and body.
func (s *testServer) call(t *testing.T, method, path, token string, body []byte) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (s *testServer) initUpload(t *testing.T, kind string, req model.UploadInitRequest) model.UploadPlan {
	t.Helper()

	body, _ := json.Marshal(req)
	status, out := s.call(t, http.MethodPost, "/upload/"+kind+"/init", s.token, body)
	require.Equal(t, http.StatusOK, status, string(out))

	var plan model.UploadPlan
	require.NoError(t, json.Unmarshal(out, &plan))
	return plan
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e.Code
}

func TestUploadProtocol_OutOfOrderParts(t *testing.T) {
	s := newTestServer(t)

	plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 2_000_000, Parts: 3})
	require.Len(t, plan.Parts, 3)
	for i, p := range plan.Parts {
		assert.Equal(t, i+1, p.PartNumber)
		assert.Equal(t, "/upload/voice/"+plan.UploadID+"/parts/"+strconv.Itoa(i+1), p.URL)
	}

	parts := map[int][]byte{
		1: bytes.Repeat([]byte("A"), 300),
		2: bytes.Repeat([]byte("B"), 300),
		3: bytes.Repeat([]byte("C"), 100),
	}
	for _, n := range []int{2, 1, 3} {
		status, out := s.call(t, http.MethodPut, plan.Parts[n-1].URL, s.token, parts[n])
		require.Equal(t, http.StatusOK, status, string(out))

		var put model.PutPartResponse
		require.NoError(t, json.Unmarshal(out, &put))
		assert.True(t, put.OK)
		assert.Equal(t, upload.ETag(parts[n]), put.ETag)
	}

	body, _ := json.Marshal(model.UploadCompleteRequest{UploadID: plan.UploadID})
	status, out := s.call(t, http.MethodPost, plan.CompleteURL, s.token, body)
	require.Equal(t, http.StatusOK, status, string(out))

	var done model.UploadCompleteResponse
	require.NoError(t, json.Unmarshal(out, &done))
	assert.True(t, done.OK)
	assert.Equal(t, plan.UploadID, done.UploadID)
	assert.EqualValues(t, 700, done.Size)

	want := append(append(append([]byte{}, parts[1]...), parts[2]...), parts[3]...)
	stored, err := os.ReadFile(filepath.Join(s.storageDir, "uploads", "u1", "voice", plan.UploadID+".webm"))
	require.NoError(t, err)
	assert.Equal(t, want, stored)

	media, err := s.app.UploadService.MediaURL(context.Background(), "u1", plan.UploadID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(media, "file://"), media)

	// The session is retired once finalized.
	status, out = s.call(t, http.MethodPost, plan.CompleteURL, s.token, body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, upload.CodeNotFound, errorCode(t, out))
}

func TestUploadProtocol_FinalizeErrors(t *testing.T) {
	s := newTestServer(t)

	t.Run("unknown session", func(t *testing.T) {
		status, out := s.call(t, http.MethodPost, "/upload/voice/0123456789abcdef0123456789abcdef/complete", s.token, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, upload.CodeNotFound, errorCode(t, out))
	})

	t.Run("kind mismatch", func(t *testing.T) {
		plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 10})
		status, _ := s.call(t, http.MethodPut, plan.UploadURL, s.token, []byte("0123456789"))
		require.Equal(t, http.StatusOK, status)

		status, out := s.call(t, http.MethodPost, "/upload/video/"+plan.UploadID+"/complete", s.token, nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, upload.CodeKindMismatch, errorCode(t, out))
	})

	t.Run("part under another kind", func(t *testing.T) {
		plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 10})
		status, out := s.call(t, http.MethodPut, "/upload/video/"+plan.UploadID+"/parts/1", s.token, []byte("0123456789"))
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, upload.CodeKindMismatch, errorCode(t, out))

		status, out = s.call(t, http.MethodPost, plan.CompleteURL, s.token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, upload.CodeEmpty, errorCode(t, out))
	})

	t.Run("empty", func(t *testing.T) {
		plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 10})
		status, out := s.call(t, http.MethodPost, plan.CompleteURL, s.token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, upload.CodeEmpty, errorCode(t, out))
	})

	t.Run("incomplete", func(t *testing.T) {
		plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 30, Parts: 3})
		for _, n := range []int{1, 3} {
			status, _ := s.call(t, http.MethodPut, plan.Parts[n-1].URL, s.token, []byte("0123456789"))
			require.Equal(t, http.StatusOK, status)
		}
		status, out := s.call(t, http.MethodPost, plan.CompleteURL, s.token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, upload.CodeIncomplete, errorCode(t, out))
		assert.Contains(t, string(out), "missing parts 2")
	})

	t.Run("other user's session", func(t *testing.T) {
		plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 10})
		other := tokenFor(t, s.app, "u2")

		status, out := s.call(t, http.MethodPut, plan.UploadURL, other, []byte("x"))
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, upload.CodeNotFound, errorCode(t, out))

		status, _ = s.call(t, http.MethodPost, plan.CompleteURL, other, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestUploadProtocol_RequestValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing mime", "/upload/voice/init", `{"size":10}`, http.StatusBadRequest, "invalid_request"},
		{"zero size", "/upload/voice/init", `{"mime":"audio/webm","size":0}`, http.StatusBadRequest, "invalid_request"},
		{"unsupported encoding", "/upload/voice/init", `{"mime":"video/mp4","size":10}`, http.StatusBadRequest, validation.ReasonUnsupportedEncoding},
		{"too large", "/upload/voice/init", `{"mime":"audio/webm","size":2097152}`, http.StatusRequestEntityTooLarge, "too_large"},
		{"unknown kind", "/upload/avatar/init", `{"mime":"audio/webm","size":10}`, http.StatusBadRequest, "invalid_kind"},
		{"bad json", "/upload/voice/init", `{`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := s.call(t, http.MethodPost, tt.path, s.token, []byte(tt.body))
			assert.Equal(t, tt.status, status, string(out))
			assert.Equal(t, tt.code, errorCode(t, out))
		})
	}

	plan := s.initUpload(t, "voice", model.UploadInitRequest{Mime: "audio/webm", Size: 4096, Parts: 2})

	status, out := s.call(t, http.MethodPut, "/upload/voice/"+plan.UploadID+"/parts/3", s.token, []byte("x"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_part", errorCode(t, out))

	status, out = s.call(t, http.MethodPut, "/upload/voice/"+plan.UploadID+"/parts/0", s.token, []byte("x"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_part", errorCode(t, out))

	status, out = s.call(t, http.MethodPut, plan.Parts[0].URL, s.token, bytes.Repeat([]byte("x"), 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "too_large", errorCode(t, out))

	status, out = s.call(t, http.MethodPost, "/upload/voice/init", "", []byte(`{"mime":"audio/webm","size":10}`))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, out))

	status, _ = s.call(t, http.MethodPost, "/upload/voice/init", "not-a-jwt", []byte(`{"mime":"audio/webm","size":10}`))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestOnboarding_WizardCommitsThroughAPI(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	client := apiclient.NewClient(s.URL, s.token, 5*time.Second)

	doc, err := client.Consent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01", doc.Version)
	assert.Equal(t, "Digital Twin Consent", doc.Title)
	assert.Contains(t, doc.HTML, "<strong>voice</strong>")

	cfg, err := client.CaptureConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.VideoStepEnabled)
	assert.Equal(t, 20.0, cfg.Voice.MinSeconds)

	wizard := onboarding.NewWizard(
		onboarding.NewMachine(cfg.VideoStepEnabled),
		client,
		transfer.New(client, transfer.WithChunkSize(256)),
		client,
	)

	voice := &model.MediaArtifact{
		Kind:            model.MediaKindVoice,
		Bytes:           bytes.Repeat([]byte{0x1a, 0x45, 0xdf, 0xa3}, 200),
		DurationSeconds: 25,
		MimeType:        "audio/webm;codecs=opus",
		FileName:        "voice.webm",
	}
	actions := []onboarding.Action{
		onboarding.AcceptConsent{Version: doc.Version},
		onboarding.Next{},
		onboarding.SetPersonality{Personality: model.Personality{DisplayName: "  Ada ", Traits: model.StringList{"Curious", "curious"}, Languages: model.StringList{"EN-us"}}},
		onboarding.Next{},
		onboarding.SetVoiceSample{Artifact: voice},
		onboarding.Next{},
		onboarding.Next{},
	}
	for _, a := range actions {
		_, err := wizard.Dispatch(a)
		require.NoError(t, err)
	}
	require.Equal(t, onboarding.StepReview, wizard.Draft().Step)

	status, err := wizard.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, status.Status)
	assert.Equal(t, onboarding.NewDraft(), wizard.Draft())

	job, err := client.Job(ctx, status.JobID)
	require.NoError(t, err)
	assert.Equal(t, status, job)

	profile, err := s.app.ProfileService.ByUserID("u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.DisplayName)
	assert.Equal(t, model.StringList{"curious"}, profile.Traits)
	assert.Equal(t, model.StringList{"en-US"}, profile.Languages)
	assert.Equal(t, model.ProfileStatusCommitted, profile.Status)

	// Another user cannot read the job.
	_, err = apiclient.NewClient(s.URL, tokenFor(t, s.app, "u2"), time.Second).Job(ctx, status.JobID)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestOnboarding_CommitRequiresCurrentConsent(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	client := apiclient.NewClient(s.URL, s.token, 5*time.Second)

	profileID, err := client.SavePersonality(ctx, model.SavePersonalityRequest{
		Personality:    model.Personality{DisplayName: "Ada"},
		ConsentVersion: "2025-06",
	})
	require.NoError(t, err)

	_, err = client.Commit(ctx, model.CommitRequest{ProfileID: profileID})
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "consent_required", apiErr.Code)

	_, err = client.SavePersonality(ctx, model.SavePersonalityRequest{Personality: model.Personality{DisplayName: " "}})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_personality", apiErr.Code)
}

func TestOnboarding_CommitRejectsForeignMedia(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	// u2 finalizes a voice upload
	other := apiclient.NewClient(s.URL, tokenFor(t, s.app, "u2"), 5*time.Second)
	receipt, err := transfer.New(other).Upload(ctx, &model.MediaArtifact{Kind: model.MediaKindVoice, Bytes: []byte("voice"), MimeType: "audio/webm"}, model.MediaKindVoice)
	require.NoError(t, err)

	client := apiclient.NewClient(s.URL, s.token, 5*time.Second)
	profileID, err := client.SavePersonality(ctx, model.SavePersonalityRequest{
		Personality:    model.Personality{DisplayName: "Ada"},
		ConsentVersion: "2026-01",
	})
	require.NoError(t, err)

	_, err = client.Commit(ctx, model.CommitRequest{ProfileID: profileID, VoiceUploadID: receipt.UploadID})
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, upload.CodeNotFound, apiErr.Code)
}

func TestCookieAuthRequiresCSRFHeader(t *testing.T) {
	s := newTestServer(t)
	jar := &http.Cookie{Name: "auth_token", Value: s.token}

	get, err := http.NewRequest(http.MethodGet, s.URL+"/api/onboarding/jobs/none", nil)
	require.NoError(t, err)
	get.AddCookie(jar)
	resp, err := http.DefaultClient.Do(get)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var csrf *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "csrf_token" {
			csrf = c
		}
	}
	require.NotNil(t, csrf)

	post := func(header string) int {
		req, err := http.NewRequest(http.MethodPost, s.URL+"/upload/voice/init", strings.NewReader(`{"mime":"audio/webm","size":10}`))
		require.NoError(t, err)
		req.AddCookie(jar)
		req.AddCookie(csrf)
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusForbidden, post(""))
	assert.Equal(t, http.StatusForbidden, post("wrong"))
	assert.Equal(t, http.StatusOK, post(csrf.Value))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	status, out := s.call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(out))
}
