// Package api exposes the scheduler over HTTP.
//
// Routes:
//
//	POST /api/task             submit a task, 202 {taskId} or 400 {error}
//	GET  /api/status           scheduler status
//	GET  /api/metrics          metrics snapshot (alias /api/pulse)
//	POST /api/snapshot-model   persist advisor state
//	POST /api/advisor/observe  record a reward {key, reward}
//	GET  /api/advisor/select   rank ?candidates=a,b&k=1
//	GET  /api/stream           websocket of metrics snapshots
//	GET  /api/audit            recent audit records ?event=task.submitted&limit=50
//	GET  /healthz              liveness
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Iron-Ham/fleetcore/internal/advisor"
	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/event"
	"github.com/Iron-Ham/fleetcore/internal/logging"
	"github.com/Iron-Ham/fleetcore/internal/metrics"
	"github.com/Iron-Ham/fleetcore/internal/orchestrator"
	"github.com/Iron-Ham/fleetcore/internal/snapshot"
)

// AdvisorKey is the snapshot key the advisor state is stored under.
const AdvisorKey = "advisor"

const (
	defaultStreamInterval = 250 * time.Millisecond
	shutdownTimeout       = 5 * time.Second
	maxBodyBytes          = 1 << 20

	// maxTimeoutMs caps a submitted task timeout at one day.
	maxTimeoutMs = int64(24 * time.Hour / time.Millisecond)
)

// Scheduler is the subset of the orchestrator the API needs.
type Scheduler interface {
	SubmitTask(sub orchestrator.Submission) (string, error)
	Status() orchestrator.Status
	Bus() *event.Bus
}

// AuditLog is a readable buffer of recent audit records.
type AuditLog interface {
	Records() []audit.Record
}

// Server serves the HTTP API.
type Server struct {
	sched          Scheduler
	metrics        metrics.Sink
	advisor        *advisor.UCB
	store          snapshot.Store
	auditLog       AuditLog
	logger         *logging.Logger
	streamInterval time.Duration

	mux    *http.ServeMux
	stream *hub
}

// Option customizes server construction.
type Option func(*Server)

// WithMetrics sets the sink served by /api/metrics. Without it the
// scheduler status's metrics are served.
func WithMetrics(m metrics.Sink) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAdvisor enables the advisor endpoints.
func WithAdvisor(a *advisor.UCB) Option {
	return func(s *Server) { s.advisor = a }
}

// WithSnapshotStore enables /api/snapshot-model.
func WithSnapshotStore(st snapshot.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithAuditLog enables /api/audit.
func WithAuditLog(l AuditLog) Option {
	return func(s *Server) { s.auditLog = l }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStreamInterval sets the minimum gap between streamed snapshots.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// New creates a Server. Call Close to release its bus subscription.
func New(sched Scheduler, opts ...Option) *Server {
	s := &Server{
		sched:          sched,
		logger:         logging.NopLogger(),
		streamInterval: defaultStreamInterval,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")
	s.stream = newHub(sched.Bus(), s.streamInterval, s.logger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/task", s.handleSubmit)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /api/pulse", s.handleMetrics)
	s.mux.HandleFunc("POST /api/snapshot-model", s.handleSnapshotModel)
	s.mux.HandleFunc("POST /api/advisor/observe", s.handleObserve)
	s.mux.HandleFunc("GET /api/advisor/select", s.handleSelect)
	s.mux.HandleFunc("GET /api/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/audit", s.handleAudit)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.stream.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

// Close releases the event bus subscription and disconnects stream clients.
func (s *Server) Close() {
	s.stream.close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
