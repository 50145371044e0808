package validation

import (
	"fmt"
	"net/http"

	"github.com/templui/twinboard/internal/model"
)

// sniffedFamilies maps http.DetectContentType results onto the media kinds they
// can carry. WebM and MP4 containers sniff the same for audio-only and video files.
var sniffedFamilies = map[string][]model.MediaKind{
	"video/webm":      {model.MediaKindVoice, model.MediaKindVideo},
	"video/mp4":       {model.MediaKindVoice, model.MediaKindVideo},
	"application/ogg": {model.MediaKindVoice},
	"audio/ogg":       {model.MediaKindVoice},
	"audio/mpeg":      {model.MediaKindVoice},
	"audio/wave":      {model.MediaKindVoice},
	"audio/aiff":      {model.MediaKindVoice},
	"video/avi":       {model.MediaKindVideo},
}

// ValidateMediaContent checks the leading bytes of a finalized blob.
// The declared Content-Type from the client is not trusted; the magic
// numbers must describe a container that can hold the given kind.
func ValidateMediaContent(kind model.MediaKind, head []byte) error {
	// http.DetectContentType reads max 512 bytes to determine MIME type
	if len(head) > 512 {
		head = head[:512]
	}
	detectedType := http.DetectContentType(head)

	for _, k := range sniffedFamilies[detectedType] {
		if k == kind {
			return nil
		}
	}
	return fmt.Errorf("invalid %s content (detected: %s)", kind, detectedType)
}
