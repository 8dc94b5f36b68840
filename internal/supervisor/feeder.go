package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/loopcast/internal/ffmpeg"
	"github.com/jmylchreest/loopcast/internal/playlist"
)

// planRetryDelay is how long a feeder waits before re-reading a plan file
// that was missing or torn mid-rewrite.
const planRetryDelay = time.Second

// Feeder loops a playback plan forever, transcoding one item at a time to a
// local intermediate transport. A failure on one item is logged and skipped;
// it never terminates the feeder. Only context cancellation stops the loop.
type Feeder struct {
	Role     Role
	PlanFile string
	// Command builds the transcode command for one plan item.
	Command func(item string) *ffmpeg.Command

	logger *slog.Logger
}

// NewFeeder creates a feeder for the given role and persisted plan.
func NewFeeder(role Role, planFile string, command func(string) *ffmpeg.Command) *Feeder {
	return &Feeder{
		Role:     role,
		PlanFile: planFile,
		Command:  command,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (f *Feeder) WithLogger(logger *slog.Logger) *Feeder {
	f.logger = logger.With(slog.String("role", string(f.Role)))
	return f
}

// Run iterates the plan until ctx is cancelled. The plan file is re-read at
// the top of each pass so a restart picks up a rewritten plan without the
// builder being re-invoked mid-generation.
func (f *Feeder) Run(ctx context.Context) {
	for ctx.Err() == nil {
		entries, err := playlist.ReadPlan(f.PlanFile)
		if err != nil {
			// The plan may be mid-rewrite; re-read after a short delay.
			f.logger.Warn("plan unreadable, retrying",
				slog.String("plan", f.PlanFile),
				slog.String("error", err.Error()),
			)
			if !sleepCtx(ctx, planRetryDelay) {
				return
			}
			continue
		}

		for _, item := range entries {
			if ctx.Err() != nil {
				return
			}
			f.playItem(ctx, item)
		}
	}
}

// playItem transcodes one item, swallowing its failure. A single unreadable
// or malformed media file must never stop the channel.
func (f *Feeder) playItem(ctx context.Context, item string) {
	cmd := f.Command(item)

	f.logger.Debug("feeding item", slog.String("item", item))
	if err := cmd.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("item transcode failed, skipping",
			slog.String("item", item),
			slog.String("error", err.Error()),
			slog.String("stderr", cmd.LastStderrLine()),
		)
	}
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
