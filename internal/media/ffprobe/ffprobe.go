package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return Parse(output)
}

// Parse decodes raw ffprobe JSON output.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// InspectBytes spools data to a temporary file and inspects it.
func InspectBytes(ctx context.Context, binary string, data []byte) (Result, error) {
	f, err := os.CreateTemp("", "twinboard-probe-*")
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe spool: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("ffprobe spool: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("ffprobe spool: %w", err)
	}
	return Inspect(ctx, binary, f.Name())
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			count++
		}
	}
	return count
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds. Browser-recorded
// WebM often omits the container duration, so the longest stream duration is
// used as a fallback. Returns 0 when neither is available.
func (r Result) DurationSeconds() float64 {
	d := parseFloat(r.Format.Duration)
	if d > 0 {
		return d
	}
	longest := 0.0
	for _, s := range r.Streams {
		if sd := parseFloat(s.Duration); sd > longest {
			longest = sd
		}
	}
	if longest > 0 {
		return longest
	}
	return d
}

// Prober adapts Inspect to the capture controller and upload service.
type Prober struct {
	Binary string
}

// ProbeDuration returns the duration of the media in data, in seconds.
func (p Prober) ProbeDuration(ctx context.Context, data []byte) (float64, error) {
	res, err := InspectBytes(ctx, p.Binary, data)
	if err != nil {
		return 0, err
	}
	d := res.DurationSeconds()
	if math.IsNaN(d) || d <= 0 {
		return 0, errors.New("ffprobe: duration unavailable")
	}
	return d, nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
