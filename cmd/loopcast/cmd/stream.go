package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/loopcast/internal/config"
	"github.com/jmylchreest/loopcast/internal/ffmpeg"
	"github.com/jmylchreest/loopcast/internal/library"
	"github.com/jmylchreest/loopcast/internal/observability"
	"github.com/jmylchreest/loopcast/internal/playlist"
	"github.com/jmylchreest/loopcast/internal/startup"
	"github.com/jmylchreest/loopcast/internal/status"
	"github.com/jmylchreest/loopcast/internal/supervisor"
	"github.com/jmylchreest/loopcast/internal/watcher"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream a local video and audio library as a perpetual channel",
	Long: "Scans the configured video and audio directories, writes looping\n" +
		"playback plans, and keeps an ffmpeg pipeline producing the output\n" +
		"stream until interrupted. The library is polled for changes and the\n" +
		"pipeline restarted with fresh plans when it drifts.",
	RunE: runStream,
}

func init() {
	streamCmd.Flags().String("video-dir", "", "directory of video files (overrides config)")
	streamCmd.Flags().String("audio-dir", "", "directory of audio files (overrides config)")
	streamCmd.Flags().Bool("split", false, "run separate feeder processes per track with a copy muxer")
	streamCmd.Flags().Bool("shuffle", false, "shuffle plan order on every rebuild")
	streamCmd.Flags().Bool("recursive", false, "scan library directories recursively")
	streamCmd.Flags().String("output-dir", "", "stream output directory (overrides config)")
	streamCmd.Flags().String("listen", "", "serve MPEG-TS on this address instead of writing HLS")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStreamFlags(cmd, cfg)

	if cfg.Library.VideoDir == "" || cfg.Library.AudioDir == "" {
		return fmt.Errorf("%w: --video-dir and --audio-dir are required", ErrUsage)
	}

	ffmpegPath, err := ffmpeg.FindFFmpeg()
	if err != nil {
		return err
	}
	log := observability.WithComponent(logger, "stream")
	if ver, verr := ffmpeg.Version(cmd.Context(), ffmpegPath); verr == nil {
		log.Info("using ffmpeg", "path", ffmpegPath, "version", ver)
	} else {
		log.Info("using ffmpeg", "path", ffmpegPath)
	}

	builder := playlist.NewBuilder(cfg.Library.VideoDir, cfg.Library.AudioDir).WithLogger(logger)
	builder.Recursive = cfg.Library.Recursive
	builder.Shuffle = cfg.Library.Shuffle
	builder.RandomStart = cfg.Library.RandomStart

	videoPlan := cfg.Storage.VideoPlanFile()
	audioPlan := cfg.Storage.AudioPlanFile()
	rebuild := func() error { return builder.Build(videoPlan, audioPlan) }

	if err := prepareDirs(cfg, log); err != nil {
		return err
	}
	if err := rebuild(); err != nil {
		return err
	}

	pipe := buildPipeline(cfg, ffmpegPath, videoPlan, audioPlan)
	sup := supervisor.New(pipe, cfg.Pipeline.RestartDelay, cfg.Pipeline.GracePeriod).WithLogger(logger)

	detector := library.NewDetector(cfg.Library.Recursive, cfg.Library.VideoDir, cfg.Library.AudioDir)
	w := watcher.New(cfg.Library.PollInterval, detector, watcher.BuilderFunc(rebuild), sup).WithLogger(logger)
	if err := w.Prime(); err != nil {
		return fmt.Errorf("priming change detector: %w", err)
	}

	return runPipeline(cmd, cfg, sup, w, log)
}

// applyStreamFlags folds explicit command line flags over loaded config.
func applyStreamFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("video-dir"); v != "" {
		cfg.Library.VideoDir = v
	}
	if v, _ := cmd.Flags().GetString("audio-dir"); v != "" {
		cfg.Library.AudioDir = v
	}
	if cmd.Flags().Changed("split") {
		cfg.Pipeline.Split, _ = cmd.Flags().GetBool("split")
	}
	if cmd.Flags().Changed("shuffle") {
		cfg.Library.Shuffle, _ = cmd.Flags().GetBool("shuffle")
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Library.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.Storage.OutputDir = v
	}
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		cfg.Pipeline.ListenAddr = f.Value.String()
	}
}

func prepareDirs(cfg *config.Config, log *slog.Logger) error {
	if err := startup.EnsurePlanDir(cfg.Storage.PlanPath()); err != nil {
		return fmt.Errorf("preparing plan directory: %w", err)
	}
	removed, err := startup.CleanupOutputDir(log, cfg.Storage.OutputPath())
	if err != nil {
		return fmt.Errorf("preparing output directory: %w", err)
	}
	if removed > 0 {
		log.Info("removed stale output files", "count", removed)
	}
	return nil
}

func pipelineOptions(cfg *config.Config, ffmpegPath, videoPlan, audioPlan string) supervisor.Options {
	return supervisor.Options{
		FFmpegPath: ffmpegPath,
		VideoPlan:  videoPlan,
		AudioPlan:  audioPlan,
		OutputDir:  cfg.Storage.OutputPath(),
		ListenAddr: cfg.Pipeline.ListenAddr,
		Encode:     cfg.Encode,
		Segment:    cfg.Segment,
		VideoPort:  cfg.Pipeline.VideoPort,
		AudioPort:  cfg.Pipeline.AudioPort,
	}
}

func buildPipeline(cfg *config.Config, ffmpegPath, videoPlan, audioPlan string) supervisor.Pipeline {
	opts := pipelineOptions(cfg, ffmpegPath, videoPlan, audioPlan)
	if cfg.Pipeline.Split {
		return supervisor.NewSplitPipeline(opts)
	}
	return supervisor.NewSinglePipeline(opts)
}

// runPipeline runs the supervisor in the foreground with the watcher and
// optional status endpoint alongside, until a signal stops everything.
func runPipeline(cmd *cobra.Command, cfg *config.Config, sup *supervisor.Supervisor, w *watcher.Watcher, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := w.Run(ctx); err != nil {
			log.Error("watcher stopped", "error", err)
		}
	}()

	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status.Address(), sup, log)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Error("status endpoint stopped", "error", err)
			}
		}()
		log.Info("status endpoint listening", "addr", cfg.Status.Address())
	}

	err := sup.Run(ctx)
	stop()
	<-watcherDone
	if err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
