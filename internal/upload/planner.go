package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/templui/twinboard/internal/model"
)

const (
	// DefaultMaxParts caps multipart plans.
	DefaultMaxParts = 10000
	minMultipart    = 2
)

// PlanRequest carries the init call's hints plus the caller identity.
type PlanRequest struct {
	Kind  model.MediaKind
	Owner string
	Mime  string
	Size  int64
	Parts int
}

// Planner decides between single-shot and multipart transfer and opens the
// matching session in the store.
type Planner struct {
	store    Store
	baseURL  string
	maxParts int
	now      func() time.Time
}

func NewPlanner(store Store, baseURL string, maxParts int) *Planner {
	if maxParts < minMultipart {
		maxParts = DefaultMaxParts
	}
	return &Planner{
		store:    store,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxParts: maxParts,
		now:      time.Now,
	}
}

func (p *Planner) Plan(ctx context.Context, req PlanRequest) (model.UploadPlan, error) {
	if strings.TrimSpace(req.Mime) == "" {
		return model.UploadPlan{}, fmt.Errorf("%w: mime is required", ErrInvalidPlanRequest)
	}
	if req.Size <= 0 {
		return model.UploadPlan{}, fmt.Errorf("%w: size must be positive", ErrInvalidPlanRequest)
	}

	uploadID, err := NewUploadID()
	if err != nil {
		return model.UploadPlan{}, err
	}

	count := 1
	if req.Parts > 1 {
		count = min(max(req.Parts, minMultipart), p.maxParts)
	}

	err = p.store.Open(ctx, model.UploadSession{
		ID:            uploadID,
		Kind:          req.Kind,
		Owner:         req.Owner,
		MimeType:      req.Mime,
		DeclaredSize:  req.Size,
		ExpectedParts: count,
		CreatedAt:     p.now(),
	})
	if err != nil {
		return model.UploadPlan{}, fmt.Errorf("failed to open upload session: %w", err)
	}

	plan := model.UploadPlan{
		UploadID:    uploadID,
		CompleteURL: p.CompleteURL(req.Kind, uploadID),
	}
	if count == 1 {
		plan.UploadURL = p.PartURL(req.Kind, uploadID, 1)
		return plan, nil
	}

	plan.Parts = make([]model.PlanPart, count)
	for i := range plan.Parts {
		n := i + 1
		plan.Parts[i] = model.PlanPart{PartNumber: n, URL: p.PartURL(req.Kind, uploadID, n)}
	}
	return plan, nil
}

func (p *Planner) PartURL(kind model.MediaKind, uploadID string, partNumber int) string {
	return fmt.Sprintf("%s/upload/%s/%s/parts/%d", p.baseURL, kind, uploadID, partNumber)
}

func (p *Planner) CompleteURL(kind model.MediaKind, uploadID string) string {
	return fmt.Sprintf("%s/upload/%s/%s/complete", p.baseURL, kind, uploadID)
}

// NewUploadID returns an opaque 128-bit random token.
func NewUploadID() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate upload id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
