package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed client_sample.toml
var SampleClientConfig string

// ClientConfig is the twinctl configuration file.
type ClientConfig struct {
	ServerURL string  `toml:"server_url"`
	Token     string  `toml:"token"`
	Upload    Upload  `toml:"upload"`
	Capture   Capture `toml:"capture"`
}

type Upload struct {
	ChunkSize      int64 `toml:"chunk_size"`
	RequestTimeout int   `toml:"request_timeout"` // seconds
	PartRetries    int   `toml:"part_retries"`
}

// Capture configures local recording through ffmpeg.
type Capture struct {
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	FFprobeBinary    string `toml:"ffprobe_binary"`
	AudioInputFormat string `toml:"audio_input_format"`
	AudioInput       string `toml:"audio_input"`
	VideoInputFormat string `toml:"video_input_format"`
	VideoInput       string `toml:"video_input"`
}

func DefaultClient() ClientConfig {
	return ClientConfig{
		ServerURL: "http://localhost:8090",
		Upload: Upload{
			ChunkSize:      6 << 20,
			RequestTimeout: 120,
		},
		Capture: Capture{
			FFmpegBinary:     "ffmpeg",
			FFprobeBinary:    "ffprobe",
			AudioInputFormat: "pulse",
			AudioInput:       "default",
			VideoInputFormat: "v4l2",
			VideoInput:       "/dev/video0",
		},
	}
}

// DefaultClientPath returns ~/.config/twinctl/config.toml.
func DefaultClientPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "twinctl", "config.toml"), nil
}

// LoadClient reads path, or the default location when path is empty. A missing
// file yields the defaults. It returns the resolved path and whether it existed.
func LoadClient(path string) (*ClientConfig, string, bool, error) {
	cfg := DefaultClient()

	resolved := strings.TrimSpace(path)
	var err error
	if resolved == "" {
		resolved, err = DefaultClientPath()
	} else {
		resolved, err = ExpandPath(resolved)
	}
	if err != nil {
		return nil, "", false, err
	}

	exists := true
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if token := strings.TrimSpace(os.Getenv("TWINCTL_TOKEN")); token != "" {
		cfg.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// CreateClientSample writes the sample client configuration to path.
func CreateClientSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(SampleClientConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

func (c *ClientConfig) Validate() error {
	c.ServerURL = strings.TrimSuffix(strings.TrimSpace(c.ServerURL), "/")
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url: %q is not an http(s) URL", c.ServerURL)
	}
	if c.Upload.ChunkSize <= 0 {
		return fmt.Errorf("upload.chunk_size must be positive")
	}
	if c.Upload.RequestTimeout < 0 {
		return fmt.Errorf("upload.request_timeout must not be negative")
	}
	if c.Upload.PartRetries < 0 {
		return fmt.Errorf("upload.part_retries must not be negative")
	}
	return nil
}

func (c *ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Upload.RequestTimeout) * time.Second
}
