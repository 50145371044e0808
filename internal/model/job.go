package model

import (
	"time"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusReady      = "ready"
	JobStatusFailed     = "failed"
)

// TwinJob tracks the build of a committed twin profile.
type TwinJob struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	ProfileID     string    `db:"profile_id"`
	VoiceUploadID string    `db:"voice_upload_id"`
	VideoUploadID string    `db:"video_upload_id"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// CommitRequest is the body of POST /api/onboarding/commit.
type CommitRequest struct {
	ProfileID     string `json:"profileId"`
	VoiceUploadID string `json:"voiceUploadId,omitempty"`
	VideoUploadID string `json:"videoUploadId,omitempty"`
}

// JobStatus is returned by the commit call and the job lookup.
type JobStatus struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type SavePersonalityResponse struct {
	ProfileID string `json:"profileId"`
}
