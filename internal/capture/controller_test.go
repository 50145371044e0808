package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/validation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStream struct {
	chunks chan Chunk
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan Chunk, 8)}
}

func (s *fakeStream) Chunks() <-chan Chunk { return s.chunks }
func (s *fakeStream) MimeType() string     { return "audio/webm;codecs=opus" }
func (s *fakeStream) Stop() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

type fakeDevice struct {
	stream *fakeStream
	err    error
}

func (d *fakeDevice) Open(ctx context.Context, kind model.MediaKind) (Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakeProber struct {
	duration float64
	err      error
	release  chan struct{}
}

func (p *fakeProber) ProbeDuration(ctx context.Context, data []byte) (float64, error) {
	if p.release != nil {
		<-p.release
	}
	return p.duration, p.err
}

func newVoiceController(device Device, prober Prober, clock Clock) *Controller {
	return NewController(model.MediaKindVoice, validation.DefaultCapturePolicy(), device, prober, WithClock(clock))
}

func TestController_RecordTooShort(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	stream := newFakeStream()
	c := newVoiceController(&fakeDevice{stream: stream}, &fakeProber{}, clock)

	require.NoError(t, c.StartCapture(context.Background()))
	assert.Equal(t, StateRecording, c.State())

	stream.chunks <- Chunk{Data: []byte("abc"), Level: 0.4}
	clock.Advance(10 * time.Second)

	artifact, err := c.StopCapture(context.Background())
	assert.Nil(t, artifact)

	var v *validation.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, validation.ReasonTooShort, v.Reason)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Artifact())
	assert.Contains(t, c.LastError(), "10.0s")
	assert.Contains(t, c.LastError(), "20s")
}

func TestController_RecordValidated(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	stream := newFakeStream()
	c := newVoiceController(&fakeDevice{stream: stream}, &fakeProber{}, clock)

	require.NoError(t, c.StartCapture(context.Background()))
	stream.chunks <- Chunk{Data: []byte("hello "), Level: 0.5}
	stream.chunks <- Chunk{Data: []byte("world"), Level: 0.7}
	require.Eventually(t, func() bool { return c.Level() == 0.7 }, time.Second, time.Millisecond)
	clock.Advance(30 * time.Second)

	artifact, err := c.StopCapture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), artifact.Bytes)
	assert.Equal(t, 30.0, artifact.DurationSeconds)
	assert.Equal(t, "audio/webm;codecs=opus", artifact.MimeType)
	assert.Equal(t, StateValidated, c.State())
	assert.Same(t, artifact, c.Artifact())
	assert.Zero(t, c.Level())
}

func TestController_SecondStartWhileRecording(t *testing.T) {
	c := newVoiceController(&fakeDevice{stream: newFakeStream()}, &fakeProber{}, &fakeClock{})

	require.NoError(t, c.StartCapture(context.Background()))
	assert.ErrorIs(t, c.StartCapture(context.Background()), ErrCaptureActive)
	_, err := c.AcceptFile(context.Background(), File{Name: "x.webm", MimeType: "audio/webm"})
	assert.ErrorIs(t, err, ErrCaptureActive)
}

func TestController_StopWithoutStart(t *testing.T) {
	c := newVoiceController(&fakeDevice{stream: newFakeStream()}, &fakeProber{}, &fakeClock{})

	_, err := c.StopCapture(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestController_PermissionDenied(t *testing.T) {
	c := newVoiceController(&fakeDevice{err: ErrPermissionDenied}, &fakeProber{duration: 25}, &fakeClock{})

	err := c.StartCapture(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateRejected, c.State())
	assert.Equal(t, ReasonPermissionDenied, c.Reason())

	artifact, err := c.AcceptFile(context.Background(), File{Name: "sample.ogg", MimeType: "audio/ogg", Bytes: []byte("OggS")})
	require.NoError(t, err)
	assert.Equal(t, StateValidated, c.State())
	assert.Equal(t, "sample.ogg", artifact.FileName)
	assert.Equal(t, 25.0, artifact.DurationSeconds)
}

func TestController_AcceptFileViolations(t *testing.T) {
	c := newVoiceController(&fakeDevice{}, &fakeProber{duration: 500}, &fakeClock{})

	_, err := c.AcceptFile(context.Background(), File{Name: "long.webm", MimeType: "audio/webm"})
	var v *validation.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, validation.ReasonTooLong, v.Reason)
	assert.Equal(t, StateIdle, c.State())

	_, err = c.AcceptFile(context.Background(), File{Name: "clip.txt", MimeType: "text/plain"})
	require.ErrorAs(t, err, &v)
	assert.Equal(t, validation.ReasonUnsupportedEncoding, v.Reason)
}

func TestController_ProbeFailure(t *testing.T) {
	c := newVoiceController(&fakeDevice{}, &fakeProber{err: errors.New("moov atom not found")}, &fakeClock{})

	_, err := c.AcceptFile(context.Background(), File{Name: "bad.mp4", MimeType: "audio/mp4"})
	require.Error(t, err)
	assert.Equal(t, StateRejected, c.State())
	assert.Equal(t, ReasonProbeFailed, c.Reason())
	assert.Nil(t, c.Artifact())
}

func TestController_StaleProbeAfterReset(t *testing.T) {
	prober := &fakeProber{duration: 40, release: make(chan struct{})}
	c := newVoiceController(&fakeDevice{}, prober, &fakeClock{})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.AcceptFile(context.Background(), File{Name: "a.webm", MimeType: "audio/webm"})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return c.State() == StateMetadataPending }, time.Second, time.Millisecond)
	c.Reset()
	close(prober.release)

	assert.ErrorIs(t, <-errCh, ErrStaleProbe)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Artifact())
}

func TestController_ResetDuringRecording(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	stream := newFakeStream()
	c := newVoiceController(&fakeDevice{stream: stream}, &fakeProber{}, clock)

	require.NoError(t, c.StartCapture(context.Background()))
	c.Reset()
	assert.Equal(t, StateIdle, c.State())

	_, err := c.StopCapture(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

// stuckStream ignores Stop and never closes its chunk channel.
type stuckStream struct{ chunks chan Chunk }

func (s *stuckStream) Chunks() <-chan Chunk { return s.chunks }
func (s *stuckStream) MimeType() string     { return "audio/webm" }
func (s *stuckStream) Stop() error          { return nil }

type sequenceDevice struct {
	mu      sync.Mutex
	streams []Stream
}

func (d *sequenceDevice) Open(ctx context.Context, kind model.MediaKind) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.streams[0]
	d.streams = d.streams[1:]
	return s, nil
}

func TestController_StopTimesOutOnStuckDevice(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	healthy := newFakeStream()
	device := &sequenceDevice{streams: []Stream{&stuckStream{chunks: make(chan Chunk)}, healthy}}
	c := newVoiceController(device, &fakeProber{}, clock)

	require.NoError(t, c.StartCapture(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	artifact, err := c.StopCapture(ctx)
	assert.Nil(t, artifact)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateRejected, c.State())
	assert.Equal(t, ReasonDeviceError, c.Reason())
	assert.Contains(t, c.LastError(), "device did not stop")

	_, err = c.StopCapture(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, c.StartCapture(context.Background()))
	assert.Equal(t, StateRecording, c.State())
	healthy.chunks <- Chunk{Data: []byte("take two"), Level: 0.3}
	clock.Advance(25 * time.Second)

	artifact, err = c.StopCapture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("take two"), artifact.Bytes)
	assert.Equal(t, StateValidated, c.State())
}
