package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/loopcast/internal/ffmpeg"
	"github.com/jmylchreest/loopcast/internal/library"
	"github.com/jmylchreest/loopcast/internal/observability"
	"github.com/jmylchreest/loopcast/internal/playlist"
	"github.com/jmylchreest/loopcast/internal/resolver"
	"github.com/jmylchreest/loopcast/internal/supervisor"
	"github.com/jmylchreest/loopcast/internal/watcher"
)

var radioCmd = &cobra.Command{
	Use:   "radio <audio-url>",
	Short: "Stream a local video library over a live remote audio source",
	Long: "Loops the configured video directory while taking audio from a live\n" +
		"remote stream. The stream URL is resolved through an external tool\n" +
		"before every pipeline start, so expiring media URLs are refreshed on\n" +
		"each restart.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return fmt.Errorf("%w: at most one audio source URL is accepted", ErrUsage)
		}
		return nil
	},
	RunE: runRadio,
}

func init() {
	radioCmd.Flags().String("video-dir", "", "directory of video files (overrides config)")
	radioCmd.Flags().Bool("shuffle", false, "shuffle plan order on every rebuild")
	radioCmd.Flags().Bool("recursive", false, "scan the video directory recursively")
	radioCmd.Flags().String("output-dir", "", "stream output directory (overrides config)")
	radioCmd.Flags().String("source-url", "", "audio source URL (alternative to the positional argument)")
	radioCmd.Flags().StringSlice("format-prefs", nil, "ordered resolver format preferences (overrides config)")
	rootCmd.AddCommand(radioCmd)
}

func runRadio(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStreamFlags(cmd, cfg)
	if prefs, _ := cmd.Flags().GetStringSlice("format-prefs"); len(prefs) > 0 {
		cfg.Resolver.FormatPrefs = prefs
	}

	sourceURL, _ := cmd.Flags().GetString("source-url")
	if len(args) == 1 {
		sourceURL = args[0]
	}
	if sourceURL == "" {
		return fmt.Errorf("%w: an audio source URL is required", ErrUsage)
	}

	if cfg.Library.VideoDir == "" {
		return fmt.Errorf("%w: --video-dir is required", ErrUsage)
	}

	ffmpegPath, err := ffmpeg.FindFFmpeg()
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(cfg.Resolver.Tool); err != nil {
		return fmt.Errorf("%w: resolver tool %q not found in PATH", ffmpeg.ErrBinaryNotFound, cfg.Resolver.Tool)
	}
	log := observability.WithComponent(logger, "radio")
	if ver, verr := ffmpeg.Version(cmd.Context(), ffmpegPath); verr == nil {
		log.Info("using ffmpeg", "path", ffmpegPath, "version", ver, "resolver", cfg.Resolver.Tool)
	} else {
		log.Info("using ffmpeg", "path", ffmpegPath, "resolver", cfg.Resolver.Tool)
	}

	builder := playlist.NewBuilder(cfg.Library.VideoDir, "").WithLogger(logger)
	builder.Recursive = cfg.Library.Recursive
	builder.Shuffle = cfg.Library.Shuffle
	builder.RandomStart = cfg.Library.RandomStart

	videoPlan := cfg.Storage.VideoPlanFile()
	rebuild := func() error { return builder.BuildVideo(videoPlan) }

	if err := prepareDirs(cfg, log); err != nil {
		return err
	}
	if err := rebuild(); err != nil {
		return err
	}

	audio := resolver.New(cfg.Resolver.Tool, sourceURL, cfg.Resolver.FormatPrefs, cfg.Resolver.Backoff).
		WithLogger(logger)

	pipe := supervisor.NewRadioPipeline(pipelineOptions(cfg, ffmpegPath, videoPlan, ""))
	sup := supervisor.New(pipe, cfg.Pipeline.RestartDelay, cfg.Pipeline.GracePeriod).
		WithLogger(logger).
		WithAudioSource(audio)

	detector := library.NewDetector(cfg.Library.Recursive, cfg.Library.VideoDir)
	w := watcher.New(cfg.Library.PollInterval, detector, watcher.BuilderFunc(rebuild), sup).WithLogger(logger)
	if err := w.Prime(); err != nil {
		return fmt.Errorf("priming change detector: %w", err)
	}

	return runPipeline(cmd, cfg, sup, w, log)
}
