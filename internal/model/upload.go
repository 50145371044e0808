package model

import "time"

// UploadSession is server-side bookkeeping for one in-flight chunked upload.
type UploadSession struct {
	ID            string    `db:"id"`
	Kind          MediaKind `db:"kind"`
	Owner         string    `db:"owner"`
	MimeType      string    `db:"mime_type"`
	DeclaredSize  int64     `db:"declared_size"`
	ExpectedParts int       `db:"expected_parts"` // 0 means no fixed total
	CreatedAt     time.Time `db:"created_at"`
}

// Part is one contiguous byte range of an artifact, numbered from 1.
type Part struct {
	PartNumber int    `db:"part_number"`
	Content    []byte `db:"content"`
	ETag       string `db:"etag"`
}

// FinalizedBlob is the concatenation of a session's parts in part order.
type FinalizedBlob struct {
	Session UploadSession
	Bytes   []byte
	Size    int64
}

// UploadInitRequest is the body of POST /upload/{kind}/init.
type UploadInitRequest struct {
	Mime  string `json:"mime"`
	Size  int64  `json:"size"`
	Parts int    `json:"parts,omitempty"`
}

// PlanPart is one transfer target of a multipart plan.
type PlanPart struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
}

// UploadPlan is either single-shot (UploadURL set) or multipart (Parts set).
type UploadPlan struct {
	UploadID    string     `json:"uploadId"`
	UploadURL   string     `json:"uploadUrl,omitempty"`
	Parts       []PlanPart `json:"parts,omitempty"`
	CompleteURL string     `json:"completeUrl"`
}

func (p UploadPlan) IsMultipart() bool {
	return len(p.Parts) > 0
}

// PartCount returns the number of transfer targets in the plan.
func (p UploadPlan) PartCount() int {
	if p.IsMultipart() {
		return len(p.Parts)
	}
	return 1
}

// PartETag is what the client reports per part at completion.
type PartETag struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

type PutPartResponse struct {
	OK   bool   `json:"ok"`
	ETag string `json:"etag"`
}

// UploadCompleteRequest is the body of POST /upload/{kind}/{id}/complete.
type UploadCompleteRequest struct {
	UploadID string     `json:"uploadId"`
	Parts    []PartETag `json:"parts,omitempty"`
}

type UploadCompleteResponse struct {
	OK       bool   `json:"ok"`
	UploadID string `json:"uploadId"`
	Size     int64  `json:"size"`
}

// UploadReceipt is what the coordinator hands back after a completed upload.
type UploadReceipt struct {
	UploadID string
	Kind     MediaKind
	Size     int64
	Parts    []PartETag
}
