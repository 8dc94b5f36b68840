// Package config provides configuration management for loopcast using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultPollInterval    = 10 * time.Second
	defaultRestartDelay    = 5 * time.Second
	defaultGracePeriod     = 5 * time.Second
	defaultCRF             = 23
	defaultPreset          = "veryfast"
	defaultGOPSize         = 60
	defaultMaxHeight       = 720
	defaultSegmentDuration = 4 * time.Second
	defaultSegmentCount    = 6
	defaultAudioBitrate    = "128k"
	defaultSampleRate      = 44100
	defaultAudioChannels   = 2
	defaultVideoPort       = 12000
	defaultAudioPort       = 12002
	defaultResolverBackoff = 15 * time.Second
	defaultStatusPort      = 9180
)

// Config holds all configuration for the application.
type Config struct {
	Library  LibraryConfig  `mapstructure:"library"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Encode   EncodeConfig   `mapstructure:"encode"`
	Segment  SegmentConfig  `mapstructure:"segment"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LibraryConfig holds media library scanning configuration.
type LibraryConfig struct {
	VideoDir     string        `mapstructure:"video_dir"`
	AudioDir     string        `mapstructure:"audio_dir"`
	Recursive    bool          `mapstructure:"recursive"`
	Shuffle      bool          `mapstructure:"shuffle"`
	RandomStart  bool          `mapstructure:"random_start"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// StorageConfig holds filesystem layout configuration.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	OutputDir string `mapstructure:"output_dir"` // relative to BaseDir unless absolute
	PlanDir   string `mapstructure:"plan_dir"`   // relative to BaseDir unless absolute
}

// EncodeConfig holds the fixed encode parameters handed to the transcode
// engine. These map directly onto ffmpeg flags.
type EncodeConfig struct {
	CRF           int    `mapstructure:"crf"`
	Preset        string `mapstructure:"preset"`
	GOPSize       int    `mapstructure:"gop_size"`
	MaxHeight     int    `mapstructure:"max_height"`
	AudioBitrate  string `mapstructure:"audio_bitrate"`
	SampleRate    int    `mapstructure:"sample_rate"`
	AudioChannels int    `mapstructure:"audio_channels"`
}

// SegmentConfig holds HLS segmenter configuration.
type SegmentConfig struct {
	Duration  time.Duration `mapstructure:"duration"`
	Retention int           `mapstructure:"retention"` // segments kept in the index
}

// PipelineConfig holds subprocess pipeline configuration.
type PipelineConfig struct {
	Split        bool          `mapstructure:"split"` // feeder+muxer topology instead of one process
	RestartDelay time.Duration `mapstructure:"restart_delay"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	VideoPort    int           `mapstructure:"video_port"` // loopback transport for the video feeder
	AudioPort    int           `mapstructure:"audio_port"` // loopback transport for the audio feeder
	ListenAddr   string        `mapstructure:"listen_addr"`
}

// ResolverConfig holds external audio resolution configuration.
type ResolverConfig struct {
	Tool        string        `mapstructure:"tool"`
	FormatPrefs []string      `mapstructure:"format_prefs"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// StatusConfig holds the operator status endpoint configuration.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with LOOPCAST_ and use underscores
// for nesting. Example: LOOPCAST_LIBRARY_POLL_INTERVAL=5s.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/loopcast")
		v.AddConfigPath("$HOME/.loopcast")
	}

	v.SetEnvPrefix("LOOPCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Library defaults
	v.SetDefault("library.video_dir", "")
	v.SetDefault("library.audio_dir", "")
	v.SetDefault("library.recursive", false)
	v.SetDefault("library.shuffle", false)
	v.SetDefault("library.random_start", false)
	v.SetDefault("library.poll_interval", defaultPollInterval)

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.output_dir", "stream")
	v.SetDefault("storage.plan_dir", "plans")

	// Encode defaults
	v.SetDefault("encode.crf", defaultCRF)
	v.SetDefault("encode.preset", defaultPreset)
	v.SetDefault("encode.gop_size", defaultGOPSize)
	v.SetDefault("encode.max_height", defaultMaxHeight)
	v.SetDefault("encode.audio_bitrate", defaultAudioBitrate)
	v.SetDefault("encode.sample_rate", defaultSampleRate)
	v.SetDefault("encode.audio_channels", defaultAudioChannels)

	// Segment defaults
	v.SetDefault("segment.duration", defaultSegmentDuration)
	v.SetDefault("segment.retention", defaultSegmentCount)

	// Pipeline defaults
	v.SetDefault("pipeline.split", false)
	v.SetDefault("pipeline.restart_delay", defaultRestartDelay)
	v.SetDefault("pipeline.grace_period", defaultGracePeriod)
	v.SetDefault("pipeline.video_port", defaultVideoPort)
	v.SetDefault("pipeline.audio_port", defaultAudioPort)
	v.SetDefault("pipeline.listen_addr", "")

	// Resolver defaults
	v.SetDefault("resolver.tool", "yt-dlp")
	v.SetDefault("resolver.format_prefs", []string{"bestaudio[ext=m4a]", "bestaudio", "best"})
	v.SetDefault("resolver.backoff", defaultResolverBackoff)

	// Status defaults
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.host", "127.0.0.1")
	v.SetDefault("status.port", defaultStatusPort)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	if c.Encode.CRF < 0 || c.Encode.CRF > 51 {
		return fmt.Errorf("encode.crf must be between 0 and 51")
	}
	if c.Encode.GOPSize < 1 {
		return fmt.Errorf("encode.gop_size must be at least 1")
	}
	if c.Encode.AudioChannels < 1 {
		return fmt.Errorf("encode.audio_channels must be at least 1")
	}

	if c.Segment.Duration <= 0 {
		return fmt.Errorf("segment.duration must be positive")
	}
	if c.Segment.Retention < 1 {
		return fmt.Errorf("segment.retention must be at least 1")
	}

	if c.Library.PollInterval <= 0 {
		return fmt.Errorf("library.poll_interval must be positive")
	}

	if c.Pipeline.VideoPort < 1 || c.Pipeline.VideoPort > maxPort {
		return fmt.Errorf("pipeline.video_port must be between 1 and %d", maxPort)
	}
	if c.Pipeline.AudioPort < 1 || c.Pipeline.AudioPort > maxPort {
		return fmt.Errorf("pipeline.audio_port must be between 1 and %d", maxPort)
	}
	if c.Pipeline.VideoPort == c.Pipeline.AudioPort {
		return fmt.Errorf("pipeline.video_port and pipeline.audio_port must differ")
	}

	if len(c.Resolver.FormatPrefs) == 0 {
		return fmt.Errorf("resolver.format_prefs must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// OutputPath returns the full path to the stream output directory.
func (c *StorageConfig) OutputPath() string {
	if filepath.IsAbs(c.OutputDir) {
		return c.OutputDir
	}
	return filepath.Join(c.BaseDir, c.OutputDir)
}

// PlanPath returns the full path to the playback plan directory.
func (c *StorageConfig) PlanPath() string {
	if filepath.IsAbs(c.PlanDir) {
		return c.PlanDir
	}
	return filepath.Join(c.BaseDir, c.PlanDir)
}

// VideoPlanFile returns the path of the persisted video playback plan.
func (c *StorageConfig) VideoPlanFile() string {
	return filepath.Join(c.PlanPath(), "video.plan")
}

// AudioPlanFile returns the path of the persisted audio playback plan.
func (c *StorageConfig) AudioPlanFile() string {
	return filepath.Join(c.PlanPath(), "audio.plan")
}

// Address returns the status endpoint address in host:port format.
func (c *StatusConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
