package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/twinboard/internal/model"
)

const (
	DefaultChunkSize      int64 = 6 << 20
	DefaultRequestTimeout       = 2 * time.Minute
)

const (
	StageInit     = "init"
	StagePart     = "part"
	StageComplete = "complete"
)

var ErrEmptyArtifact = errors.New("artifact has no bytes")

// Transport is the client side of the chunked upload protocol.
type Transport interface {
	Init(ctx context.Context, kind model.MediaKind, req model.UploadInitRequest) (model.UploadPlan, error)
	// Put sends one part to url and returns the etag the server assigned.
	Put(ctx context.Context, url string, content []byte) (string, error)
	Complete(ctx context.Context, url string, req model.UploadCompleteRequest) (model.UploadCompleteResponse, error)
}

// UploadError tells which step of an upload failed. PartNumber is set for
// the part stage only.
type UploadError struct {
	Stage      string
	UploadID   string
	PartNumber int
	Err        error
}

func (e *UploadError) Error() string {
	if e.Stage == StagePart {
		return fmt.Sprintf("upload part %d failed: %v", e.PartNumber, e.Err)
	}
	return fmt.Sprintf("upload %s failed: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Coordinator moves one validated artifact to the server: init, the parts in
// order, then completion. It never completes after a failed part.
type Coordinator struct {
	transport      Transport
	chunkSize      int64
	requestTimeout time.Duration
	partRetries    int
	progress       func(sent, total int64)
}

type Option func(*Coordinator)

func WithChunkSize(n int64) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithPartRetries re-sends a failed part up to n more times before giving up.
func WithPartRetries(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.partRetries = n
		}
	}
}

// WithProgress registers a callback invoked after every transferred part.
func WithProgress(fn func(sent, total int64)) Option {
	return func(c *Coordinator) {
		c.progress = fn
	}
}

func New(transport Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:      transport,
		chunkSize:      DefaultChunkSize,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PartCount is ceil(size / chunk size).
func (c *Coordinator) PartCount(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + c.chunkSize - 1) / c.chunkSize)
}

func (c *Coordinator) Upload(ctx context.Context, artifact *model.MediaArtifact, kind model.MediaKind) (model.UploadReceipt, error) {
	size := artifact.Size()
	if size == 0 {
		return model.UploadReceipt{}, &UploadError{Stage: StageInit, Err: ErrEmptyArtifact}
	}

	var plan model.UploadPlan
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		plan, err = c.transport.Init(ctx, kind, model.UploadInitRequest{
			Mime:  artifact.MimeType,
			Size:  size,
			Parts: c.PartCount(size),
		})
		return err
	})
	if err != nil {
		return model.UploadReceipt{}, &UploadError{Stage: StageInit, Err: err}
	}

	targets := plan.Parts
	if !plan.IsMultipart() {
		targets = []model.PlanPart{{PartNumber: 1, URL: plan.UploadURL}}
	}

	// the server may clamp the part count below what was asked for
	chunk := c.chunkSize
	if n := int64(len(targets)); n*chunk < size {
		chunk = (size + n - 1) / n
	}

	etags := make([]model.PartETag, 0, len(targets))
	var sent int64
	for i, target := range targets {
		start := int64(i) * chunk
		if start >= size {
			return model.UploadReceipt{}, &UploadError{
				Stage:      StagePart,
				UploadID:   plan.UploadID,
				PartNumber: target.PartNumber,
				Err:        fmt.Errorf("plan has %d parts for %d bytes", len(targets), size),
			}
		}
		end := min(start+chunk, size)

		etag, err := c.putPart(ctx, plan.UploadID, target, artifact.Bytes[start:end])
		if err != nil {
			return model.UploadReceipt{}, &UploadError{Stage: StagePart, UploadID: plan.UploadID, PartNumber: target.PartNumber, Err: err}
		}
		etags = append(etags, model.PartETag{PartNumber: target.PartNumber, ETag: etag})

		sent += end - start
		if c.progress != nil {
			c.progress(sent, size)
		}
	}

	var resp model.UploadCompleteResponse
	err = c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.transport.Complete(ctx, plan.CompleteURL, model.UploadCompleteRequest{UploadID: plan.UploadID, Parts: etags})
		return err
	})
	if err != nil {
		return model.UploadReceipt{}, &UploadError{Stage: StageComplete, UploadID: plan.UploadID, Err: err}
	}

	if resp.Size == 0 {
		resp.Size = size
	}
	slog.Info("upload completed", "kind", kind, "upload_id", plan.UploadID, "parts", len(etags), "size", resp.Size)

	return model.UploadReceipt{UploadID: plan.UploadID, Kind: kind, Size: resp.Size, Parts: etags}, nil
}

func (c *Coordinator) putPart(ctx context.Context, uploadID string, target model.PlanPart, content []byte) (string, error) {
	var etag string
	var err error
	for attempt := 0; attempt <= c.partRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying upload part", "upload_id", uploadID, "part", target.PartNumber, "attempt", attempt, "error", err)
		}
		err = c.call(ctx, func(ctx context.Context) error {
			var putErr error
			etag, putErr = c.transport.Put(ctx, target.URL, content)
			return putErr
		})
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	return etag, err
}

// call bounds fn by the per-request timeout.
func (c *Coordinator) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	return fn(ctx)
}
