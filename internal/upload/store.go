package upload

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/templui/twinboard/internal/model"
)

// Store is the keyed registry of in-flight uploads.
//
// A session never survives its one Finalize call: Finalize removes it whether
// it succeeds or fails with a structural error.
type Store interface {
	Open(ctx context.Context, session model.UploadSession) error
	Lookup(ctx context.Context, uploadID string) (model.UploadSession, error)
	// PutPart stores content at partNumber, replacing any earlier content for
	// the same number, and returns the part's etag.
	PutPart(ctx context.Context, uploadID string, partNumber int, content []byte) (string, error)
	Finalize(ctx context.Context, uploadID string, kind model.MediaKind) (model.FinalizedBlob, error)
	// Reap removes sessions created before olderThan and returns how many went.
	Reap(ctx context.Context, olderThan time.Time) (int, error)
}

// assemble runs the post-removal checks shared by every Store implementation.
func assemble(session model.UploadSession, kind model.MediaKind, parts []model.Part) (model.FinalizedBlob, error) {
	if session.Kind != kind {
		return model.FinalizedBlob{}, &FinalizeError{
			Code:     CodeKindMismatch,
			UploadID: session.ID,
			Detail:   "session is " + string(session.Kind) + ", completed as " + string(kind),
		}
	}
	if len(parts) == 0 {
		return model.FinalizedBlob{}, &FinalizeError{Code: CodeEmpty, UploadID: session.ID}
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})

	if session.ExpectedParts > 0 {
		if missing := missingParts(parts, session.ExpectedParts); len(missing) > 0 {
			return model.FinalizedBlob{}, &FinalizeError{
				Code:     CodeIncomplete,
				UploadID: session.ID,
				Detail:   formatMissing(missing),
			}
		}
	}

	var size int64
	for _, p := range parts {
		size += int64(len(p.Content))
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p.Content...)
	}

	return model.FinalizedBlob{Session: session, Bytes: out, Size: size}, nil
}

// missingParts expects parts sorted ascending.
func missingParts(parts []model.Part, expected int) []int {
	var missing []int
	i := 0
	for n := 1; n <= expected; n++ {
		for i < len(parts) && parts[i].PartNumber < n {
			i++
		}
		if i >= len(parts) || parts[i].PartNumber != n {
			missing = append(missing, n)
		}
	}
	return missing
}

func formatMissing(missing []int) string {
	const shown = 10
	var b strings.Builder
	b.WriteString("missing parts ")
	for i, n := range missing {
		if i == shown {
			fmt.Fprintf(&b, " and %d more", len(missing)-shown)
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
