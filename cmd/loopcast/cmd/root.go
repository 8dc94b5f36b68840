// Package cmd implements the loopcast command line interface.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/loopcast/internal/config"
	"github.com/jmylchreest/loopcast/internal/ffmpeg"
	"github.com/jmylchreest/loopcast/internal/observability"
	"github.com/jmylchreest/loopcast/internal/playlist"
	"github.com/jmylchreest/loopcast/internal/version"
)

// ErrUsage marks command line errors so the process exits with code 2.
var ErrUsage = errors.New("usage error")

var (
	// cfgFile holds the config file path from the CLI flag.
	cfgFile string

	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "loopcast",
	Short: "Perpetual live channel streamer",
	Long: "loopcast turns a directory of media files into a perpetual live stream.\n" +
		"It builds looping playlists, supervises ffmpeg, and restarts the pipeline\n" +
		"whenever the library changes on disk.",
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns any error encountered.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ffmpeg.ErrBinaryNotFound):
		return 127
	case errors.Is(err, ErrUsage):
		return 2
	case errors.Is(err, playlist.ErrEmptyLibrary):
		return 1
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	mustBindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %s", ErrUsage, err)
	})
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func initConfig() {
	viper.SetEnvPrefix("LOOPCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func initLogging() {
	level := viper.GetString("logging.level")
	if level == "" {
		level = "info"
	}
	format := viper.GetString("logging.format")
	if format == "" {
		format = "text"
	}
	logger = observability.NewLogger(config.LoggingConfig{
		Level:      level,
		Format:     format,
		TimeFormat: viper.GetString("logging.time_format"),
	})
	observability.SetDefault(logger)
}

// loadConfig loads and validates configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
