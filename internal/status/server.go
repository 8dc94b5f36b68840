// Package status exposes a small operator HTTP endpoint reporting channel
// health. It never serves the produced stream; delivery stays external.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/loopcast/internal/supervisor"
	"github.com/jmylchreest/loopcast/internal/version"
)

// Reporter is the view of the supervised pipeline the endpoint exposes.
type Reporter interface {
	State() supervisor.State
	Generation() string
	RestartCount() int
	StartedAt() time.Time
}

// Server serves /healthz and /status.
type Server struct {
	addr     string
	reporter Reporter
	logger   *slog.Logger
	srv      *http.Server
}

// NewServer creates a status server bound to addr.
func NewServer(addr string, reporter Reporter, logger *slog.Logger) *Server {
	s := &Server{
		addr:     addr,
		reporter: reporter,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statusResponse is the /status payload.
type statusResponse struct {
	State        string `json:"state"`
	Generation   string `json:"generation,omitempty"`
	RestartCount int    `json:"restart_count"`
	UptimeSecs   int64  `json:"uptime_seconds"`
	Version      string `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var uptime int64
	if started := s.reporter.StartedAt(); !started.IsZero() {
		uptime = int64(time.Since(started).Seconds())
	}

	resp := statusResponse{
		State:        string(s.reporter.State()),
		Generation:   s.reporter.Generation(),
		RestartCount: s.reporter.RestartCount(),
		UptimeSecs:   uptime,
		Version:      version.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("encoding status response failed",
			slog.String("error", err.Error()),
		)
	}
}
