package supervisor

import (
	"context"
	"log/slog"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/jmylchreest/loopcast/internal/ffmpeg"
)

// process is a handle to one running subprocess. It is always reaped: a
// goroutine waits on the command from the moment it starts, so Done closing
// implies the child has been waited on.
type process struct {
	role    Role
	cmd     *ffmpeg.Command
	pid     int
	done    chan struct{}
	exitErr error // valid once done is closed
}

// startProcess starts cmd under ctx and begins reaping it.
func startProcess(ctx context.Context, role Role, cmd *ffmpeg.Command) (*process, error) {
	if err := cmd.Start(ctx); err != nil {
		return nil, err
	}

	p := &process{
		role: role,
		cmd:  cmd,
		pid:  cmd.PID(),
		done: make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Done is closed once the subprocess has exited and been reaped.
func (p *process) Done() <-chan struct{} {
	return p.done
}

// Alive is a non-blocking liveness poll.
func (p *process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the wait error after Done has closed.
func (p *process) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

// terminate signals the subprocess to stop, waits up to grace for it to
// exit, then kills it. It returns once the process has been reaped.
func (p *process) terminate(grace time.Duration, logger *slog.Logger) {
	if !p.Alive() {
		return
	}

	if err := p.cmd.Signal(syscall.SIGTERM); err != nil {
		logger.Debug("signaling subprocess failed",
			slog.String("role", string(p.role)),
			slog.String("error", err.Error()),
		)
	}

	select {
	case <-p.done:
		return
	case <-time.After(grace):
	}

	logger.Warn("subprocess ignored SIGTERM, killing",
		slog.String("role", string(p.role)),
		slog.Int("pid", p.pid),
	)
	if err := p.cmd.Kill(); err != nil {
		logger.Warn("killing subprocess failed",
			slog.String("role", string(p.role)),
			slog.String("error", err.Error()),
		)
	}
	<-p.done
}

// pidGone reports whether the OS no longer knows the pid. Used after
// teardown to assert the previous generation cannot overlap the next.
func pidGone(pid int) bool {
	if pid <= 0 {
		return true
	}
	exists, err := gopsproc.PidExists(int32(pid))
	if err != nil {
		// If the query itself fails, assume gone; the process was reaped.
		return true
	}
	return !exists
}
