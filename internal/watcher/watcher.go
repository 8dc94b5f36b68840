// Package watcher runs the top-level control loop: it polls the library
// signature and pipeline liveness on a fixed interval and triggers plan
// rebuilds and pipeline restarts.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/loopcast/internal/library"
	"github.com/jmylchreest/loopcast/internal/supervisor"
)

// PlanBuilder regenerates the persisted playback plans.
type PlanBuilder interface {
	Build() error
}

// Pipeline is the supervised pipeline the watcher restarts. Restart must
// order teardown strictly before rebuild before spawn.
type Pipeline interface {
	State() supervisor.State
	Restart(ctx context.Context, rebuild func() error) error
}

// BuilderFunc adapts a function to PlanBuilder.
type BuilderFunc func() error

// Build implements PlanBuilder.
func (f BuilderFunc) Build() error { return f() }

// Watcher polls for library changes and pipeline death.
type Watcher struct {
	interval time.Duration
	detector *library.Detector
	builder  PlanBuilder
	pipeline Pipeline
	logger   *slog.Logger

	lastSig library.Signature
}

// New creates a Watcher.
func New(interval time.Duration, detector *library.Detector, builder PlanBuilder, pipeline Pipeline) *Watcher {
	return &Watcher{
		interval: interval,
		detector: detector,
		builder:  builder,
		pipeline: pipeline,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Prime records the current library signature as the baseline without
// triggering a restart. Call it after the initial plan build so the first
// poll doesn't see a spurious change.
func (w *Watcher) Prime() error {
	sig, err := w.detector.Compute()
	if err != nil {
		return err
	}
	w.lastSig = sig
	return nil
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick performs one polling cycle.
func (w *Watcher) tick(ctx context.Context) {
	// Pipeline down outside the supervisor's own recovery window means a
	// failed rebuild left the channel stopped; rebuild and restart now.
	if w.pipeline.State() == supervisor.StateStopped {
		w.logger.Warn("pipeline is down, rebuilding and restarting")
		w.restart(ctx)
		return
	}

	sig, err := w.detector.Compute()
	if err != nil {
		w.logger.Error("library signature computation failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if sig.Equal(w.lastSig) {
		return
	}

	w.logger.Info("library change detected, restarting pipeline",
		slog.String("signature", sig.String()),
	)
	// Store the signature observed at decision time, not a re-measured
	// one, so edits landing mid-restart surface on the next poll.
	w.lastSig = sig
	w.restart(ctx)
}

// restart tears down the pipeline, rebuilds the plans, and spawns a new
// generation. An EmptyLibrary build failure leaves the pipeline down; the
// next tick retries.
func (w *Watcher) restart(ctx context.Context) {
	if err := w.pipeline.Restart(ctx, w.builder.Build); err != nil {
		w.logger.Error("pipeline restart failed",
			slog.String("error", err.Error()),
		)
	}
}
