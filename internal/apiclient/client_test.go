package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/upload"
)

func TestClientInitSendsTokenAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload/voice/init", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req model.UploadInitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.UploadInitRequest{Mime: "audio/webm", Size: 2_000_000, Parts: 3}, req)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"uploadId":"abc","parts":[{"partNumber":1,"url":"/upload/voice/abc/parts/1"},{"partNumber":2,"url":"/upload/voice/abc/parts/2"}],"completeUrl":"/upload/voice/abc/complete"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", time.Second)
	plan, err := client.Init(context.Background(), model.MediaKindVoice, model.UploadInitRequest{Mime: "audio/webm", Size: 2_000_000, Parts: 3})
	require.NoError(t, err)
	assert.Equal(t, "abc", plan.UploadID)
	assert.True(t, plan.IsMultipart())
	assert.Equal(t, 2, plan.PartCount())
}

func TestClientPutResolvesRelativeURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/upload/voice/abc/parts/2", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "chunk", string(body))
		fmt.Fprintf(w, `{"ok":true,"etag":%q}`, upload.ETag(body))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	etag, err := client.Put(context.Background(), "/upload/voice/abc/parts/2", []byte("chunk"))
	require.NoError(t, err)
	assert.Equal(t, upload.ETag([]byte("chunk")), etag)
}

func TestClientErrorCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"session is voice, completed as video","code":"kind_mismatch"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.Complete(context.Background(), server.URL+"/upload/video/abc/complete", model.UploadCompleteRequest{UploadID: "abc"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, upload.CodeKindMismatch, apiErr.Code)
	assert.ErrorIs(t, err, upload.ErrKindMismatch)
	assert.NotErrorIs(t, err, upload.ErrNotFound)
}

func TestClientPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", time.Second).Job(context.Background(), "j1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Empty(t, apiErr.Code)
}

func TestClientOnboardingCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/onboarding/personality", func(w http.ResponseWriter, r *http.Request) {
		var req model.SavePersonalityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ada", req.DisplayName)
		assert.Equal(t, "2026-01", req.ConsentVersion)
		fmt.Fprint(w, `{"profileId":"p1"}`)
	})
	mux.HandleFunc("POST /api/onboarding/commit", func(w http.ResponseWriter, r *http.Request) {
		var req model.CommitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "p1", req.ProfileID)
		assert.Equal(t, "v1", req.VoiceUploadID)
		fmt.Fprint(w, `{"jobId":"j1","status":"queued"}`)
	})
	mux.HandleFunc("GET /api/onboarding/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"jobId":%q,"status":"processing"}`, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/onboarding/config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"voice":{"minSeconds":20,"maxSeconds":120,"allowedMimeTypes":["audio/webm"]},"video":{"minSeconds":15,"maxSeconds":30,"allowedMimeTypes":["video/webm"]},"videoStepEnabled":false}`)
	})
	mux.HandleFunc("GET /api/onboarding/consent", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"2026-01","title":"Consent","html":"<p>ok</p>"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx := context.Background()
	client := NewClient(server.URL, "tok", time.Second)

	profileID, err := client.SavePersonality(ctx, model.SavePersonalityRequest{
		Personality:    model.Personality{DisplayName: "Ada"},
		ConsentVersion: "2026-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", profileID)

	status, err := client.Commit(ctx, model.CommitRequest{ProfileID: "p1", VoiceUploadID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatus{JobID: "j1", Status: model.JobStatusQueued}, status)

	status, err = client.Job(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, status.Status)

	cfg, err := client.CaptureConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.Voice.MinSeconds)
	assert.False(t, cfg.VideoStepEnabled)

	doc, err := client.Consent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01", doc.Version)
}
