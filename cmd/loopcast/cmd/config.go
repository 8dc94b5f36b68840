package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/loopcast/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long:  "Loads configuration from defaults, config file, and environment,\nthen prints the merged result. Useful as a starting template.",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(configToMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "# loopcast configuration")
	fmt.Fprintln(cmd.OutOrStdout(), "# Values reflect defaults, config file, and LOOPCAST_* environment overrides.")
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// configToMap renders the config as ordered maps with durations as strings,
// so the YAML output is readable and round-trips through Load.
func configToMap(cfg *config.Config) map[string]any {
	dur := func(d time.Duration) string { return d.String() }

	return map[string]any{
		"library": map[string]any{
			"video_dir":     cfg.Library.VideoDir,
			"audio_dir":     cfg.Library.AudioDir,
			"recursive":     cfg.Library.Recursive,
			"shuffle":       cfg.Library.Shuffle,
			"random_start":  cfg.Library.RandomStart,
			"poll_interval": dur(cfg.Library.PollInterval),
		},
		"storage": map[string]any{
			"base_dir":   cfg.Storage.BaseDir,
			"output_dir": cfg.Storage.OutputDir,
			"plan_dir":   cfg.Storage.PlanDir,
		},
		"encode": map[string]any{
			"crf":            cfg.Encode.CRF,
			"preset":         cfg.Encode.Preset,
			"gop_size":       cfg.Encode.GOPSize,
			"max_height":     cfg.Encode.MaxHeight,
			"audio_bitrate":  cfg.Encode.AudioBitrate,
			"sample_rate":    cfg.Encode.SampleRate,
			"audio_channels": cfg.Encode.AudioChannels,
		},
		"segment": map[string]any{
			"duration":  dur(cfg.Segment.Duration),
			"retention": cfg.Segment.Retention,
		},
		"pipeline": map[string]any{
			"split":         cfg.Pipeline.Split,
			"restart_delay": dur(cfg.Pipeline.RestartDelay),
			"grace_period":  dur(cfg.Pipeline.GracePeriod),
			"video_port":    cfg.Pipeline.VideoPort,
			"audio_port":    cfg.Pipeline.AudioPort,
			"listen_addr":   cfg.Pipeline.ListenAddr,
		},
		"resolver": map[string]any{
			"tool":         cfg.Resolver.Tool,
			"format_prefs": cfg.Resolver.FormatPrefs,
			"backoff":      dur(cfg.Resolver.Backoff),
		},
		"status": map[string]any{
			"enabled": cfg.Status.Enabled,
			"host":    cfg.Status.Host,
			"port":    cfg.Status.Port,
		},
		"logging": map[string]any{
			"level":       cfg.Logging.Level,
			"format":      cfg.Logging.Format,
			"add_source":  cfg.Logging.AddSource,
			"time_format": cfg.Logging.TimeFormat,
		},
	}
}
