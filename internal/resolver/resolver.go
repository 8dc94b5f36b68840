// Package resolver obtains playable URLs for an external live audio source
// by driving a yt-dlp style extraction tool.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrResolutionFailed is returned when every configured format preference
// fails to yield a playable URL. It is transient: the caller waits the
// configured backoff and retries, without bound.
var ErrResolutionFailed = errors.New("audio source resolution failed for all format preferences")

// Handle is a time-limited playable URL for the external audio source.
// Handles are single-use per pipeline generation: once the muxer exits the
// handle is assumed stale and must be re-resolved, never reused.
type Handle struct {
	URL        string
	Preference string
	ResolvedAt time.Time
}

// Runner executes the external resolution tool. It exists so tests can
// substitute a stub for the real subprocess.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs the tool via os/exec.
type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Resolver resolves the external audio source URL by trying an ordered list
// of format preferences, most specific first, ending in a generic fallback.
type Resolver struct {
	Tool        string
	SourceURL   string
	Preferences []string
	Backoff     time.Duration

	runner Runner
	logger *slog.Logger
}

// New creates a Resolver using the given extraction tool and source URL.
func New(tool, sourceURL string, preferences []string, backoff time.Duration) *Resolver {
	return &Resolver{
		Tool:        tool,
		SourceURL:   sourceURL,
		Preferences: preferences,
		Backoff:     backoff,
		runner:      execRunner{},
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = logger
	return r
}

// WithRunner overrides the subprocess runner.
func (r *Resolver) WithRunner(runner Runner) *Resolver {
	r.runner = runner
	return r
}

// Resolve attempts each format preference in declared order and returns the
// first that yields a non-empty URL. Failure of one preference is not
// fatal; it just advances to the next. If all preferences fail the result
// is ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context) (*Handle, error) {
	for _, pref := range r.Preferences {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, err := r.runner.Output(ctx, r.Tool, "-g", "-f", pref, r.SourceURL)
		if err != nil {
			r.logger.Warn("format preference failed",
				slog.String("preference", pref),
				slog.String("error", err.Error()),
			)
			continue
		}

		url := firstLine(string(out))
		if url == "" {
			r.logger.Warn("format preference yielded no URL",
				slog.String("preference", pref),
			)
			continue
		}

		r.logger.Info("audio source resolved",
			slog.String("preference", pref),
		)
		return &Handle{URL: url, Preference: pref, ResolvedAt: time.Now()}, nil
	}

	return nil, fmt.Errorf("%w: source %s", ErrResolutionFailed, r.SourceURL)
}

// ResolveWithRetry calls Resolve until it succeeds, sleeping the configured
// backoff between whole-resolver attempts. Retries are unbounded; this is a
// perpetual channel and resolution failure is expected to be transient.
// Only context cancellation ends the loop.
func (r *Resolver) ResolveWithRetry(ctx context.Context) (*Handle, error) {
	attempt := 0
	for {
		attempt++
		handle, err := r.Resolve(ctx)
		if err == nil {
			return handle, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.logger.Warn("resolution attempt failed, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", r.Backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.Backoff):
		}
	}
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
