package model

import (
	"fmt"
	"mime"
	"strings"
)

// MediaKind identifies which wizard step a sample belongs to.
type MediaKind string

const (
	MediaKindVoice MediaKind = "voice"
	MediaKindVideo MediaKind = "video"
)

// ParseMediaKind accepts "voice" or "video" in any case.
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case MediaKindVoice:
		return MediaKindVoice, nil
	case MediaKindVideo:
		return MediaKindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

func (k MediaKind) String() string {
	return string(k)
}

// MediaArtifact is a validated in-memory sample ready for transfer.
// Treat it as immutable once the capture controller has exposed it.
type MediaArtifact struct {
	Kind            MediaKind
	Bytes           []byte
	DurationSeconds float64
	FileName        string
	MimeType        string
}

func (a *MediaArtifact) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Bytes))
}

var mimeExtensions = map[string]string{
	"audio/webm":      ".webm",
	"video/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"audio/wav":       ".wav",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
}

// ExtensionForMime maps a capture MIME type to a file extension. Unknown
// types map to "".
func ExtensionForMime(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		base, _, _ = strings.Cut(mimeType, ";")
	}
	return mimeExtensions[strings.ToLower(strings.TrimSpace(base))]
}

// MimeForExtension is the reverse of ExtensionForMime for the given kind.
// Unknown extensions map to "".
func MimeForExtension(kind MediaKind, ext string) string {
	ext = strings.ToLower(ext)
	prefix := "audio/"
	if kind == MediaKindVideo {
		prefix = "video/"
	}
	for mimeType, e := range mimeExtensions {
		if e == ext && strings.HasPrefix(mimeType, prefix) {
			return mimeType
		}
	}
	return ""
}
