package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/templui/twinboard/internal/model"
)

const (
	defaultChunkBytes = 32 << 10
	peakLevelKey      = "lavfi.astats.Overall.Peak_level="
	stderrTailLines   = 20
)

// permissionMarkers are ffmpeg stderr fragments that mean the OS refused the device.
var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"not authorized",
	"access denied",
}

// FFmpegDevice records through an ffmpeg child process that writes WebM to stdout.
//
// The *InputFormat and *Input fields are passed as ffmpeg "-f" and "-i"
// arguments, e.g. "pulse"/"default" on Linux or "avfoundation"/":0" on macOS.
type FFmpegDevice struct {
	Binary           string
	AudioInputFormat string
	AudioInput       string
	VideoInputFormat string
	VideoInput       string
	ChunkBytes       int
}

func (d *FFmpegDevice) binary() string {
	if b := strings.TrimSpace(d.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func (d *FFmpegDevice) args(kind model.MediaKind) ([]string, string, error) {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	meter := "astats=metadata=1:reset=1,ametadata=print:key=lavfi.astats.Overall.Peak_level:file=/dev/stderr"

	switch kind {
	case model.MediaKindVoice:
		if d.AudioInputFormat == "" || d.AudioInput == "" {
			return nil, "", errors.New("ffmpeg device: audio input not configured")
		}
		args = append(args,
			"-f", d.AudioInputFormat, "-i", d.AudioInput,
			"-af", meter,
			"-c:a", "libopus", "-f", "webm", "pipe:1")
		return args, "audio/webm;codecs=opus", nil
	case model.MediaKindVideo:
		if d.VideoInputFormat == "" || d.VideoInput == "" {
			return nil, "", errors.New("ffmpeg device: video input not configured")
		}
		args = append(args, "-f", d.VideoInputFormat, "-i", d.VideoInput)
		if d.AudioInputFormat != "" && d.AudioInput != "" {
			args = append(args, "-f", d.AudioInputFormat, "-i", d.AudioInput, "-af", meter, "-c:a", "libopus")
		}
		args = append(args, "-c:v", "libvpx", "-deadline", "realtime", "-f", "webm", "pipe:1")
		return args, "video/webm;codecs=vp8,opus", nil
	}
	return nil, "", fmt.Errorf("ffmpeg device: unsupported kind %q", kind)
}

// Open starts ffmpeg and blocks until the first encoded bytes arrive. If ffmpeg
// exits first, its stderr decides between ErrPermissionDenied and a plain error.
func (d *FFmpegDevice) Open(ctx context.Context, kind model.MediaKind) (Stream, error) {
	args, mimeType, err := d.args(kind)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(d.binary(), args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cmd:      cmd,
		mimeType: mimeType,
		chunks:   make(chan Chunk, 16),
		stdoutCh: make(chan struct{}),
		stderrCh: make(chan struct{}),
	}
	go s.readStderr(stderr)

	chunkBytes := d.ChunkBytes
	if chunkBytes <= 0 {
		chunkBytes = defaultChunkBytes
	}

	first := make(chan error, 1)
	var head []byte
	go func() {
		buf := make([]byte, chunkBytes)
		n, err := stdout.Read(buf)
		head = buf[:n]
		first <- err
	}()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-first
		_ = cmd.Wait()
		return nil, ctx.Err()
	case err := <-first:
		if len(head) == 0 && err != nil {
			<-s.stderrCh
			waitErr := cmd.Wait()
			tail := s.stderrTail()
			if isPermissionError(tail) {
				return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, tail)
			}
			return nil, fmt.Errorf("ffmpeg exited before recording: %v: %s", waitErr, tail)
		}
	}

	go s.readStdout(stdout, head, chunkBytes)
	return s, nil
}

type ffmpegStream struct {
	cmd      *exec.Cmd
	mimeType string
	chunks   chan Chunk
	stdoutCh chan struct{}
	stderrCh chan struct{}

	mu      sync.Mutex
	level   float64
	tail    []string
	once    sync.Once
	stopErr error
}

func (s *ffmpegStream) Chunks() <-chan Chunk { return s.chunks }

func (s *ffmpegStream) MimeType() string { return s.mimeType }

// Stop asks ffmpeg to finish the container and waits for it to exit.
// It is safe to call more than once.
func (s *ffmpegStream) Stop() error {
	s.once.Do(func() {
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.stdoutCh
		<-s.stderrCh
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		// ffmpeg exits non-zero after an interrupt even when the output is complete
		if err != nil && !errors.As(err, &exitErr) {
			s.stopErr = fmt.Errorf("ffmpeg wait: %w", err)
		}
	})
	return s.stopErr
}

func (s *ffmpegStream) readStdout(r io.Reader, head []byte, chunkBytes int) {
	defer close(s.stdoutCh)
	defer close(s.chunks)
	s.chunks <- Chunk{Data: head, Level: s.currentLevel()}
	for {
		buf := make([]byte, chunkBytes)
		n, err := r.Read(buf)
		if n > 0 {
			s.chunks <- Chunk{Data: buf[:n], Level: s.currentLevel()}
		}
		if err != nil {
			return
		}
	}
}

func (s *ffmpegStream) readStderr(r io.Reader) {
	defer close(s.stderrCh)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, peakLevelKey); ok {
			s.setLevel(v)
			continue
		}
		if line == "" || strings.HasPrefix(line, "frame:") {
			continue
		}
		s.mu.Lock()
		s.tail = append(s.tail, line)
		if len(s.tail) > stderrTailLines {
			s.tail = s.tail[1:]
		}
		s.mu.Unlock()
	}
}

// setLevel converts ffmpeg's peak dBFS reading into a 0..1 amplitude.
func (s *ffmpegStream) setLevel(raw string) {
	db, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return
	}
	level := 0.0
	if !math.IsInf(db, -1) {
		level = math.Min(1, math.Pow(10, db/20))
	}
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

func (s *ffmpegStream) currentLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *ffmpegStream) stderrTail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.tail, "; ")
}

func isPermissionError(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
