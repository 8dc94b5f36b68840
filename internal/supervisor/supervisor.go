package supervisor

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/loopcast/internal/resolver"
)

// generation is one set of pipeline subprocesses. At most one generation is
// ever active; a restart fully tears the previous one down before the next
// is spawned.
type generation struct {
	id       ulid.ULID
	cancel   context.CancelFunc
	primary  *process
	feederWG sync.WaitGroup
}

// restartRequest asks the run loop to tear down, rebuild, and respawn.
type restartRequest struct {
	rebuild func() error // runs strictly between teardown and spawn; may be nil
	done    chan error
}

// Supervisor drives the pipeline lifecycle. Crash recovery is internal and
// unbounded: the channel never gives up on its own, and only context
// cancellation ends Run.
type Supervisor struct {
	pipeline     Pipeline
	audioSource  *resolver.Resolver // non-nil only in external-audio mode
	restartDelay time.Duration
	gracePeriod  time.Duration
	logger       *slog.Logger

	restartCh chan restartRequest
	entropy   *ulid.MonotonicEntropy

	mu           sync.RWMutex
	state        State
	gen          *generation
	genID        string
	restartCount int
	startedAt    time.Time
}

// New creates a Supervisor for the given pipeline topology.
func New(pipeline Pipeline, restartDelay, gracePeriod time.Duration) *Supervisor {
	return &Supervisor{
		pipeline:     pipeline,
		restartDelay: restartDelay,
		gracePeriod:  gracePeriod,
		logger:       slog.Default(),
		restartCh:    make(chan restartRequest),
		entropy:      ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		state:        StateStopped,
	}
}

// WithLogger sets the logger.
func (s *Supervisor) WithLogger(logger *slog.Logger) *Supervisor {
	s.logger = logger
	return s
}

// WithAudioSource enables external-audio mode: a fresh handle is resolved
// before every generation, and a primary exit is treated as SourceExpired.
func (s *Supervisor) WithAudioSource(r *resolver.Resolver) *Supervisor {
	s.audioSource = r
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Alive reports whether the current generation's primary process is live.
func (s *Supervisor) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen != nil && s.gen.primary.Alive()
}

// Generation returns the active generation's ID, or "".
func (s *Supervisor) Generation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.genID
}

// RestartCount returns how many generations have been spawned after the first.
func (s *Supervisor) RestartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restartCount
}

// StartedAt returns when Run began, or the zero time.
func (s *Supervisor) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Restart asks the run loop to stop the current generation, run rebuild
// (typically the playlist builder), and spawn a new generation. The
// teardown-build-spawn ordering is strict. A rebuild failure leaves the
// supervisor Stopped until the next Restart; it never spawns against a
// failed build.
func (s *Supervisor) Restart(ctx context.Context, rebuild func() error) error {
	req := restartRequest{rebuild: rebuild, done: make(chan error, 1)}
	select {
	case s.restartCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the state machine until ctx is cancelled. Transient failures
// self-heal with the configured restart delay; the only way the run ends is
// the explicit stop carried by ctx.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	first := true
	for {
		if ctx.Err() != nil {
			s.setState(StateStopped)
			return nil
		}

		// Resolved handles are single-use per generation: never reused
		// across restarts because the upstream URL is time-limited.
		var handle *resolver.Handle
		if s.audioSource != nil {
			var err error
			handle, err = s.audioSource.ResolveWithRetry(ctx)
			if err != nil {
				s.setState(StateStopped)
				return nil // only cancellation escapes ResolveWithRetry
			}
		}

		s.setState(StateStarting)
		gen, err := s.startGeneration(ctx, handle)
		if err != nil {
			s.logger.Error("pipeline start failed",
				slog.String("error", err.Error()),
			)
			s.setState(StateCrashed)
			if !sleepCtx(ctx, s.restartDelay) {
				s.setState(StateStopped)
				return nil
			}
			continue
		}

		if !first {
			s.mu.Lock()
			s.restartCount++
			s.mu.Unlock()
		}
		first = false
		s.setGeneration(gen)
		s.setState(StateRunning)
		s.logger.Info("pipeline running",
			slog.String("generation", gen.id.String()),
			slog.Int("primary_pid", gen.primary.pid),
		)

		select {
		case <-ctx.Done():
			s.teardown(gen, StateStoppedByRequest)
			s.setState(StateStopped)
			return nil

		case req := <-s.restartCh:
			s.teardown(gen, StateStoppedByRequest)
			if !s.completeRestart(ctx, req) {
				s.setState(StateStopped)
				if !s.awaitRestart(ctx) {
					return nil
				}
			}

		case <-gen.primary.Done():
			exitState := StateCrashed
			if s.audioSource != nil {
				// Muxer exit in external-audio mode means the handle is
				// stale; the next pass re-resolves before spawning.
				exitState = StateSourceExpired
			}
			exitErr := gen.primary.ExitErr()
			s.logger.Warn("primary subprocess exited",
				slog.String("generation", gen.id.String()),
				slog.String("state", string(exitState)),
				slog.Duration("ran_for", gen.primary.cmd.Duration()),
				slog.Any("error", exitErr),
				slog.String("stderr", gen.primary.cmd.LastStderrLine()),
			)
			s.teardown(gen, exitState)
			if !sleepCtx(ctx, s.restartDelay) {
				s.setState(StateStopped)
				return nil
			}
		}
	}
}

// completeRestart runs the request's rebuild step and reports whether the
// run loop should proceed straight to spawning.
func (s *Supervisor) completeRestart(ctx context.Context, req restartRequest) bool {
	if req.rebuild != nil {
		if err := req.rebuild(); err != nil {
			s.logger.Error("plan rebuild failed, pipeline stays down",
				slog.String("error", err.Error()),
			)
			req.done <- err
			return false
		}
	}
	req.done <- nil
	return ctx.Err() == nil
}

// awaitRestart blocks in Stopped until a restart request succeeds or ctx is
// cancelled. Returns false on cancellation.
func (s *Supervisor) awaitRestart(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case req := <-s.restartCh:
			if s.completeRestart(ctx, req) {
				return true
			}
		}
	}
}

// startGeneration spawns the full subprocess set for one generation.
func (s *Supervisor) startGeneration(ctx context.Context, handle *resolver.Handle) (*generation, error) {
	genCtx, cancel := context.WithCancel(ctx)

	primaryCmd, err := s.pipeline.Primary(handle)
	if err != nil {
		cancel()
		return nil, err
	}

	gen := &generation{
		id:     ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy),
		cancel: cancel,
	}

	role := RoleSinglePipeline
	feeders := s.pipeline.Feeders()
	if len(feeders) > 0 {
		role = RoleMuxer
	}

	primary, err := startProcess(genCtx, role, primaryCmd)
	if err != nil {
		cancel()
		return nil, err
	}
	gen.primary = primary

	for _, f := range feeders {
		feeder := f.WithLogger(s.logger)
		gen.feederWG.Add(1)
		go func() {
			defer gen.feederWG.Done()
			feeder.Run(genCtx)
		}()
	}

	return gen, nil
}

// teardown stops every subprocess of a generation and reaps them all. A
// muxer exit always tears down its feeders, even if they are still alive.
func (s *Supervisor) teardown(gen *generation, reason State) {
	s.setState(reason)

	gen.primary.terminate(s.gracePeriod, s.logger)

	// Cancelling the generation context kills any feeder's current child;
	// each feeder returns once that child is reaped.
	gen.cancel()
	feedersDone := make(chan struct{})
	go func() {
		gen.feederWG.Wait()
		close(feedersDone)
	}()
	select {
	case <-feedersDone:
	case <-time.After(s.gracePeriod):
		s.logger.Warn("feeders did not stop within grace period",
			slog.String("generation", gen.id.String()),
		)
		<-feedersDone
	}

	if !pidGone(gen.primary.pid) {
		s.logger.Warn("primary pid still present after teardown",
			slog.Int("pid", gen.primary.pid),
		)
	}

	s.setGeneration(nil)
	s.logger.Info("pipeline stopped",
		slog.String("generation", gen.id.String()),
		slog.String("reason", string(reason)),
	)
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Supervisor) setGeneration(gen *generation) {
	s.mu.Lock()
	s.gen = gen
	if gen != nil {
		s.genID = gen.id.String()
	} else {
		s.genID = ""
	}
	s.mu.Unlock()
}
