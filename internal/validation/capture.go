package validation

import (
	"fmt"
	"math"
	"mime"
	"strings"

	"github.com/templui/twinboard/internal/model"
)

const (
	ReasonTooShort            = "too_short"
	ReasonTooLong             = "too_long"
	ReasonUnsupportedEncoding = "unsupported_encoding"
)

// CaptureConstraints defines the accepted encodings and duration window for one media kind.
type CaptureConstraints struct {
	MinSeconds       float64  `json:"minSeconds"`
	MaxSeconds       float64  `json:"maxSeconds"`
	AllowedMimeTypes []string `json:"allowedMimeTypes"`
}

var (
	// VoiceConstraints are the defaults for the voice step
	VoiceConstraints = CaptureConstraints{
		MinSeconds:       20,
		MaxSeconds:       120,
		AllowedMimeTypes: []string{"audio/webm", "audio/ogg", "audio/mpeg", "audio/mp4", "audio/wav"},
	}

	// VideoConstraints are the defaults for the optional video step
	VideoConstraints = CaptureConstraints{
		MinSeconds:       15,
		MaxSeconds:       30,
		AllowedMimeTypes: []string{"video/webm", "video/mp4", "video/quicktime"},
	}
)

// Violation explains why a sample was refused.
type Violation struct {
	Reason   string
	Kind     model.MediaKind
	Duration float64
	Min      float64
	Max      float64
	MimeType string
}

func (v *Violation) Error() string {
	switch v.Reason {
	case ReasonTooShort:
		return fmt.Sprintf("%s sample too short: %.1fs recorded, at least %.0fs required", v.Kind, v.Duration, v.Min)
	case ReasonTooLong:
		return fmt.Sprintf("%s sample too long: %.1fs recorded, at most %.0fs allowed", v.Kind, v.Duration, v.Max)
	case ReasonUnsupportedEncoding:
		return fmt.Sprintf("%s sample uses unsupported encoding %q", v.Kind, v.MimeType)
	}
	return fmt.Sprintf("%s sample rejected: %s", v.Kind, v.Reason)
}

// CapturePolicy validates samples against per-kind constraints. It has no side effects.
type CapturePolicy struct {
	constraints map[model.MediaKind]CaptureConstraints
}

func NewCapturePolicy(voice, video CaptureConstraints) *CapturePolicy {
	return &CapturePolicy{
		constraints: map[model.MediaKind]CaptureConstraints{
			model.MediaKindVoice: voice,
			model.MediaKindVideo: video,
		},
	}
}

// DefaultCapturePolicy uses VoiceConstraints and VideoConstraints.
func DefaultCapturePolicy() *CapturePolicy {
	return NewCapturePolicy(VoiceConstraints, VideoConstraints)
}

// Constraints returns the constraint set for kind.
func (p *CapturePolicy) Constraints(kind model.MediaKind) (CaptureConstraints, bool) {
	c, ok := p.constraints[kind]
	return c, ok
}

// AllowsEncoding reports whether mimeType is on the allow-list for kind.
// Parameters such as ";codecs=opus" are ignored.
func (p *CapturePolicy) AllowsEncoding(kind model.MediaKind, mimeType string) bool {
	c, ok := p.constraints[kind]
	if !ok {
		return false
	}
	base := baseMimeType(mimeType)
	if base == "" {
		return false
	}
	for _, allowed := range c.AllowedMimeTypes {
		if strings.EqualFold(allowed, base) {
			return true
		}
	}
	return false
}

// Validate returns nil when min(kind) <= durationSeconds <= max(kind) and the
// encoding is allowed, otherwise a *Violation.
func (p *CapturePolicy) Validate(kind model.MediaKind, durationSeconds float64, mimeType string) error {
	c, ok := p.constraints[kind]
	if !ok {
		return fmt.Errorf("no capture constraints for kind %q", kind)
	}

	if !p.AllowsEncoding(kind, mimeType) {
		return &Violation{Reason: ReasonUnsupportedEncoding, Kind: kind, Duration: durationSeconds, Min: c.MinSeconds, Max: c.MaxSeconds, MimeType: mimeType}
	}
	if math.IsNaN(durationSeconds) || durationSeconds < c.MinSeconds {
		return &Violation{Reason: ReasonTooShort, Kind: kind, Duration: durationSeconds, Min: c.MinSeconds, Max: c.MaxSeconds, MimeType: mimeType}
	}
	if durationSeconds > c.MaxSeconds {
		return &Violation{Reason: ReasonTooLong, Kind: kind, Duration: durationSeconds, Min: c.MinSeconds, Max: c.MaxSeconds, MimeType: mimeType}
	}
	return nil
}

func baseMimeType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		// fall back to everything before the first parameter
		mediaType, _, _ = strings.Cut(v, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// CaptureConfig is the policy as published to clients.
type CaptureConfig struct {
	Voice            CaptureConstraints `json:"voice"`
	Video            CaptureConstraints `json:"video"`
	VideoStepEnabled bool               `json:"videoStepEnabled"`
}

// Config publishes the policy's constraints.
func (p *CapturePolicy) Config(videoStepEnabled bool) CaptureConfig {
	return CaptureConfig{
		Voice:            p.constraints[model.MediaKindVoice],
		Video:            p.constraints[model.MediaKindVideo],
		VideoStepEnabled: videoStepEnabled,
	}
}
