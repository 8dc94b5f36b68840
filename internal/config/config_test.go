package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Storage: StorageConfig{BaseDir: "./data", OutputDir: "stream", PlanDir: "plans"},
		Library: LibraryConfig{PollInterval: 10 * time.Second},
		Encode: EncodeConfig{
			CRF:           23,
			Preset:        "veryfast",
			GOPSize:       60,
			MaxHeight:     720,
			AudioBitrate:  "128k",
			SampleRate:    44100,
			AudioChannels: 2,
		},
		Segment:  SegmentConfig{Duration: 4 * time.Second, Retention: 6},
		Pipeline: PipelineConfig{VideoPort: 12000, AudioPort: 12002},
		Resolver: ResolverConfig{FormatPrefs: []string{"best"}},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 10*time.Second, cfg.Library.PollInterval)
	assert.False(t, cfg.Library.Recursive)
	assert.False(t, cfg.Library.Shuffle)

	assert.Equal(t, "./data", cfg.Storage.BaseDir)
	assert.Equal(t, "stream", cfg.Storage.OutputDir)
	assert.Equal(t, "plans", cfg.Storage.PlanDir)

	assert.Equal(t, 23, cfg.Encode.CRF)
	assert.Equal(t, "veryfast", cfg.Encode.Preset)
	assert.Equal(t, 60, cfg.Encode.GOPSize)
	assert.Equal(t, 720, cfg.Encode.MaxHeight)
	assert.Equal(t, "128k", cfg.Encode.AudioBitrate)
	assert.Equal(t, 44100, cfg.Encode.SampleRate)
	assert.Equal(t, 2, cfg.Encode.AudioChannels)

	assert.Equal(t, 4*time.Second, cfg.Segment.Duration)
	assert.Equal(t, 6, cfg.Segment.Retention)

	assert.False(t, cfg.Pipeline.Split)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.RestartDelay)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.GracePeriod)
	assert.Equal(t, 12000, cfg.Pipeline.VideoPort)
	assert.Equal(t, 12002, cfg.Pipeline.AudioPort)

	assert.Equal(t, "yt-dlp", cfg.Resolver.Tool)
	assert.Equal(t, []string{"bestaudio[ext=m4a]", "bestaudio", "best"}, cfg.Resolver.FormatPrefs)
	assert.Equal(t, 15*time.Second, cfg.Resolver.Backoff)

	assert.False(t, cfg.Status.Enabled)
	assert.Equal(t, "127.0.0.1:9180", cfg.Status.Address())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
library:
  video_dir: /media/video
  audio_dir: /media/audio
  poll_interval: 30s
  shuffle: true
pipeline:
  split: true
  restart_delay: 2s
encode:
  crf: 28
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/media/video", cfg.Library.VideoDir)
	assert.Equal(t, "/media/audio", cfg.Library.AudioDir)
	assert.Equal(t, 30*time.Second, cfg.Library.PollInterval)
	assert.True(t, cfg.Library.Shuffle)
	assert.True(t, cfg.Pipeline.Split)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.RestartDelay)
	assert.Equal(t, 28, cfg.Encode.CRF)
	// Untouched keys keep defaults.
	assert.Equal(t, "veryfast", cfg.Encode.Preset)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOOPCAST_LIBRARY_VIDEO_DIR", "/env/video")
	t.Setenv("LOOPCAST_ENCODE_CRF", "30")
	t.Setenv("LOOPCAST_PIPELINE_SPLIT", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/video", cfg.Library.VideoDir)
	assert.Equal(t, 30, cfg.Encode.CRF)
	assert.True(t, cfg.Pipeline.Split)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing base dir", func(c *Config) { c.Storage.BaseDir = "" }, "base_dir"},
		{"crf too high", func(c *Config) { c.Encode.CRF = 52 }, "crf"},
		{"crf negative", func(c *Config) { c.Encode.CRF = -1 }, "crf"},
		{"zero gop", func(c *Config) { c.Encode.GOPSize = 0 }, "gop_size"},
		{"zero channels", func(c *Config) { c.Encode.AudioChannels = 0 }, "audio_channels"},
		{"zero segment duration", func(c *Config) { c.Segment.Duration = 0 }, "duration"},
		{"zero retention", func(c *Config) { c.Segment.Retention = 0 }, "retention"},
		{"zero poll interval", func(c *Config) { c.Library.PollInterval = 0 }, "poll_interval"},
		{"bad video port", func(c *Config) { c.Pipeline.VideoPort = 0 }, "video_port"},
		{"port collision", func(c *Config) { c.Pipeline.AudioPort = c.Pipeline.VideoPort }, "must differ"},
		{"no format prefs", func(c *Config) { c.Resolver.FormatPrefs = nil }, "format_prefs"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStorageConfig_Paths(t *testing.T) {
	c := StorageConfig{BaseDir: "/var/lib/loopcast", OutputDir: "stream", PlanDir: "plans"}
	assert.Equal(t, "/var/lib/loopcast/stream", c.OutputPath())
	assert.Equal(t, "/var/lib/loopcast/plans", c.PlanPath())
	assert.Equal(t, "/var/lib/loopcast/plans/video.plan", c.VideoPlanFile())
	assert.Equal(t, "/var/lib/loopcast/plans/audio.plan", c.AudioPlanFile())

	abs := StorageConfig{BaseDir: "/var/lib/loopcast", OutputDir: "/srv/hls", PlanDir: "/etc/plans"}
	assert.Equal(t, "/srv/hls", abs.OutputPath())
	assert.Equal(t, "/etc/plans", abs.PlanPath())
}
