package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/templui/twinboard/internal/apiclient"
	"github.com/templui/twinboard/internal/capture"
	"github.com/templui/twinboard/internal/config"
	"github.com/templui/twinboard/internal/media/ffprobe"
	"github.com/templui/twinboard/internal/transfer"
	"github.com/templui/twinboard/internal/validation"
)

type rootFlags struct {
	config  string
	server  string
	token   string
	verbose bool
}

type commandContext struct {
	flags *rootFlags

	// overridable in tests
	prober capture.Prober
	device capture.Device

	configOnce sync.Once
	config     *config.ClientConfig
	configPath string
	configErr  error
}

type contextOption func(*commandContext)

func withProber(p capture.Prober) contextOption {
	return func(c *commandContext) { c.prober = p }
}

func withDevice(d capture.Device) contextOption {
	return func(c *commandContext) { c.device = d }
}

func newCommandContext(flags *rootFlags, opts ...contextOption) *commandContext {
	c := &commandContext{flags: flags}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *commandContext) ensureConfig() (*config.ClientConfig, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.LoadClient(c.flags.config)
		if err != nil {
			c.configErr = err
			return
		}
		if server := strings.TrimSpace(c.flags.server); server != "" {
			cfg.ServerURL = server
			if err := cfg.Validate(); err != nil {
				c.configErr = fmt.Errorf("--server: %w", err)
				return
			}
		}
		if token := strings.TrimSpace(c.flags.token); token != "" {
			cfg.Token = token
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) client() (*apiclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("no token configured (set token in %s, TWINCTL_TOKEN or --token)", c.configPath)
	}
	// Per-request deadlines come from the coordinator's request timeout.
	return apiclient.NewClient(cfg.ServerURL, cfg.Token, 0), nil
}

func (c *commandContext) coordinator(client *apiclient.Client, progress func(sent, total int64)) *transfer.Coordinator {
	cfg := c.config
	opts := []transfer.Option{
		transfer.WithChunkSize(cfg.Upload.ChunkSize),
		transfer.WithPartRetries(cfg.Upload.PartRetries),
		transfer.WithRequestTimeout(cfg.RequestTimeout()),
	}
	if progress != nil {
		opts = append(opts, transfer.WithProgress(progress))
	}
	return transfer.New(client, opts...)
}

func (c *commandContext) mediaProber() capture.Prober {
	if c.prober != nil {
		return c.prober
	}
	return ffprobe.Prober{Binary: c.config.Capture.FFprobeBinary}
}

func (c *commandContext) captureDevice() capture.Device {
	if c.device != nil {
		return c.device
	}
	cc := c.config.Capture
	return &capture.FFmpegDevice{
		Binary:           cc.FFmpegBinary,
		AudioInputFormat: cc.AudioInputFormat,
		AudioInput:       cc.AudioInput,
		VideoInputFormat: cc.VideoInputFormat,
		VideoInput:       cc.VideoInput,
	}
}

// capturePolicy mirrors the server's constraints so samples are rejected
// before they are uploaded.
func capturePolicy(ctx context.Context, client *apiclient.Client) (*validation.CapturePolicy, validation.CaptureConfig, error) {
	cc, err := client.CaptureConfig(ctx)
	if err != nil {
		return nil, validation.CaptureConfig{}, fmt.Errorf("fetch capture config: %w", err)
	}
	return validation.NewCapturePolicy(cc.Voice, cc.Video), cc, nil
}
