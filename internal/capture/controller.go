package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/validation"
)

type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateRecording            State = "recording"
	StateStopping             State = "stopping"
	StateValidated            State = "validated"
	StateRejected             State = "rejected"
	StateFilePicked           State = "file_picked"
	StateMetadataPending      State = "metadata_pending"
)

// Rejection reasons that are not policy violations.
const (
	ReasonPermissionDenied = "permission_denied"
	ReasonProbeFailed      = "probe_failed"
	ReasonDeviceError      = "device_error"
)

var (
	ErrCaptureActive    = errors.New("capture already in progress")
	ErrNotRecording     = errors.New("no capture in progress")
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrStaleProbe       = errors.New("probe result superseded by a newer attempt")
	ErrCaptureReset     = errors.New("capture was reset")
)

// Chunk is one slice of encoded media from a device, with the input peak
// level (0..1) observed while it was produced.
type Chunk struct {
	Data  []byte
	Level float64
}

// Stream is a live recording. Chunks is closed once Stop has drained the device.
type Stream interface {
	Chunks() <-chan Chunk
	MimeType() string
	Stop() error
}

// Device grants access to a microphone or camera. Open returns
// ErrPermissionDenied when the user or platform refuses access.
type Device interface {
	Open(ctx context.Context, kind model.MediaKind) (Stream, error)
}

// Prober reports the duration of an encoded media file.
type Prober interface {
	ProbeDuration(ctx context.Context, data []byte) (float64, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// File is a user-picked media file, the fallback when live capture is unavailable.
type File struct {
	Name     string
	MimeType string
	Bytes    []byte
}

type recording struct {
	stream  Stream
	started time.Time
	chunks  [][]byte
	done    chan struct{}
}

// Controller drives one media kind from device or file to a validated artifact.
// Build one per kind; a single controller runs at most one capture at a time.
type Controller struct {
	kind   model.MediaKind
	policy *validation.CapturePolicy
	device Device
	prober Prober
	clock  Clock

	mu         sync.Mutex
	state      State
	reason     string
	lastErr    string
	level      float64
	rec        *recording
	artifact   *model.MediaArtifact
	generation uint64
}

type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewController(kind model.MediaKind, policy *validation.CapturePolicy, device Device, prober Prober, opts ...Option) *Controller {
	c := &Controller{
		kind:   kind,
		policy: policy,
		device: device,
		prober: prober,
		clock:  systemClock{},
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Kind() model.MediaKind { return c.kind }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason is set when the controller is rejected.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// LastError is the user-facing message of the most recent failed attempt.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Level is the peak input level last reported while recording.
func (c *Controller) Level() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return 0
	}
	return c.level
}

// Artifact returns the validated sample, or nil.
func (c *Controller) Artifact() *model.MediaArtifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

func (c *Controller) busy() bool {
	switch c.state {
	case StateRequestingPermission, StateRecording, StateStopping:
		return true
	}
	return false
}

func (c *Controller) StartCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return ErrCaptureActive
	}
	c.generation++
	gen := c.generation
	c.state = StateRequestingPermission
	c.reason, c.lastErr = "", ""
	c.artifact = nil
	c.mu.Unlock()

	stream, err := c.device.Open(ctx, c.kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		if stream != nil {
			_ = stream.Stop()
		}
		return ErrCaptureReset
	}
	if err != nil {
		c.state = StateRejected
		c.reason = ReasonDeviceError
		if errors.Is(err, ErrPermissionDenied) {
			c.reason = ReasonPermissionDenied
		}
		c.lastErr = err.Error()
		slog.Warn("capture device unavailable", "kind", c.kind, "reason", c.reason, "error", err)
		return err
	}

	rec := &recording{stream: stream, started: c.clock.Now(), done: make(chan struct{})}
	c.rec = rec
	c.level = 0
	c.state = StateRecording
	go c.pump(rec)

	slog.Debug("capture started", "kind", c.kind, "mime", stream.MimeType())
	return nil
}

func (c *Controller) pump(rec *recording) {
	defer close(rec.done)
	for chunk := range rec.stream.Chunks() {
		c.mu.Lock()
		rec.chunks = append(rec.chunks, chunk.Data)
		if c.rec == rec {
			c.level = chunk.Level
		}
		c.mu.Unlock()
	}
}

// StopCapture ends the recording and validates it. A policy violation
// discards the sample, returns the controller to idle and is returned as a
// *validation.Violation.
func (c *Controller) StopCapture(ctx context.Context) (*model.MediaArtifact, error) {
	c.mu.Lock()
	if c.state != StateRecording || c.rec == nil {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	rec := c.rec
	c.state = StateStopping
	elapsed := c.clock.Now().Sub(rec.started)
	c.mu.Unlock()

	stopErr := rec.stream.Stop()
	select {
	case <-rec.done:
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		// the device did not drain in time, detach it so the controller can start over
		if c.rec == rec {
			c.generation++
			c.rec = nil
			c.level = 0
			c.state = StateRejected
			c.reason = ReasonDeviceError
			c.lastErr = fmt.Sprintf("device did not stop: %v", ctx.Err())
			slog.Warn("capture stop abandoned", "kind", c.kind, "error", ctx.Err())
		}
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec != rec {
		return nil, ErrCaptureReset
	}
	c.rec = nil
	c.level = 0

	if stopErr != nil {
		c.state = StateRejected
		c.reason = ReasonDeviceError
		c.lastErr = stopErr.Error()
		return nil, fmt.Errorf("stop capture: %w", stopErr)
	}

	artifact := &model.MediaArtifact{
		Kind:            c.kind,
		Bytes:           bytes.Join(rec.chunks, nil),
		DurationSeconds: elapsed.Seconds(),
		FileName:        fmt.Sprintf("%s-%d%s", c.kind, rec.started.Unix(), model.ExtensionForMime(rec.stream.MimeType())),
		MimeType:        rec.stream.MimeType(),
	}
	return c.applyLocked(artifact)
}

// AcceptFile validates a picked file using the prober for its duration.
// When Reset or another attempt supersedes this one while the probe runs,
// ErrStaleProbe is returned and the controller is left untouched.
func (c *Controller) AcceptFile(ctx context.Context, f File) (*model.MediaArtifact, error) {
	c.mu.Lock()
	if c.busy() {
		c.mu.Unlock()
		return nil, ErrCaptureActive
	}
	c.generation++
	gen := c.generation
	c.state = StateFilePicked
	c.reason, c.lastErr = "", ""
	c.artifact = nil
	c.state = StateMetadataPending
	c.mu.Unlock()

	duration, err := c.prober.ProbeDuration(ctx, f.Bytes)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return nil, ErrStaleProbe
	}
	if err != nil {
		c.state = StateRejected
		c.reason = ReasonProbeFailed
		c.lastErr = "could not read media duration"
		return nil, fmt.Errorf("probe %s: %w", f.Name, err)
	}

	return c.applyLocked(&model.MediaArtifact{
		Kind:            c.kind,
		Bytes:           f.Bytes,
		DurationSeconds: duration,
		FileName:        f.Name,
		MimeType:        f.MimeType,
	})
}

func (c *Controller) applyLocked(artifact *model.MediaArtifact) (*model.MediaArtifact, error) {
	err := c.policy.Validate(c.kind, artifact.DurationSeconds, artifact.MimeType)
	if err != nil {
		c.state = StateIdle
		c.artifact = nil
		c.lastErr = err.Error()
		slog.Info("capture rejected", "kind", c.kind, "duration", artifact.DurationSeconds, "error", err)
		return nil, err
	}
	c.state = StateValidated
	c.artifact = artifact
	return artifact, nil
}

// Reset returns to idle, drops any artifact, stops a running recording and
// invalidates in-flight probes.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	rec := c.rec
	c.rec = nil
	c.state = StateIdle
	c.reason, c.lastErr = "", ""
	c.level = 0
	c.artifact = nil
	c.mu.Unlock()

	if rec != nil {
		_ = rec.stream.Stop()
	}
}
