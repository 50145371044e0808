package upload

import (
	"errors"
	"fmt"
)

const (
	CodeNotFound     = "not_found"
	CodeKindMismatch = "kind_mismatch"
	CodeEmpty        = "empty"
	CodeIncomplete   = "incomplete"
)

// FinalizeError is a structural session error. Use errors.Is against the
// sentinels below to classify it.
type FinalizeError struct {
	Code     string
	UploadID string
	Detail   string
}

func (e *FinalizeError) Error() string {
	msg := "upload session " + e.Code
	if e.UploadID != "" {
		msg = fmt.Sprintf("upload session %s: %s", e.UploadID, e.Code)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is matches on Code only, so errors.Is(err, ErrNotFound) holds for any upload ID.
func (e *FinalizeError) Is(target error) bool {
	t, ok := target.(*FinalizeError)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound     = &FinalizeError{Code: CodeNotFound}
	ErrKindMismatch = &FinalizeError{Code: CodeKindMismatch}
	ErrEmpty        = &FinalizeError{Code: CodeEmpty}
	ErrIncomplete   = &FinalizeError{Code: CodeIncomplete}

	ErrInvalidPlanRequest = errors.New("invalid upload plan request")
	ErrInvalidPartNumber  = errors.New("part number must be at least 1")
	ErrSessionExists      = errors.New("upload session already exists")
)

func notFound(id string) error {
	return &FinalizeError{Code: CodeNotFound, UploadID: id}
}
