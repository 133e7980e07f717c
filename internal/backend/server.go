package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"flexone/internal/config"
	"flexone/internal/ipc"
	"flexone/internal/logging"
	"flexone/internal/runstore"
	"flexone/internal/services/llm"
)

// Server is the backend HTTP process. It serves the chat API, enforces
// single-instance execution, and journals its lifecycle in the run store.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	llm    *llm.Client
	runs   *runstore.Store

	lockPath string
	lock     *flock.Flock

	server *http.Server

	running atomic.Bool

	// mu guards the fields below; Status is served over the control socket
	// while Start is still populating them.
	mu        sync.Mutex
	listener  net.Listener
	startedAt time.Time
	runID     string

	stopOnce sync.Once
	doneOnce sync.Once
	done     chan struct{}
}

// New constructs a backend server with initialized dependencies. The run
// store is optional; without it launches are simply not journaled.
func New(cfg *config.Config, logger *slog.Logger, client *llm.Client, runs *runstore.Store) (*Server, error) {
	if cfg == nil || client == nil {
		return nil, errors.New("backend requires config and llm client")
	}

	lockPath := cfg.LockPath()
	srv := &Server{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "backend"),
		llm:      client,
		runs:     runs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      srv.requestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Start acquires the instance lock, binds the listener, and begins serving.
// The bound address is available via Addr once Start returns.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("backend already running")
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another flexone backend instance is already running")
	}

	var runID string
	if s.runs != nil {
		run, err := s.runs.Begin(ctx, runstore.ProcessBackend, os.Getpid())
		if err != nil {
			s.logger.Warn("run journal unavailable", logging.Error(err))
		} else {
			runID = run.ID
			s.mu.Lock()
			s.runID = runID
			s.mu.Unlock()
		}
	}

	listener, err := net.Listen("tcp", s.cfg.Backend.Bind)
	if err != nil {
		s.failRun(ctx, fmt.Sprintf("bind %s: %v", s.cfg.Backend.Bind, err))
		_ = s.lock.Unlock()
		return fmt.Errorf("listen on %s: %w", s.cfg.Backend.Bind, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()
	s.running.Store(true)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("backend server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "backend_serve_failed"),
				logging.String(logging.FieldImpact, "chat requests will fail"))
		}
	}()

	if s.runs != nil && runID != "" {
		if err := s.runs.MarkReady(ctx, runID); err != nil {
			s.logger.Warn("mark run ready", logging.Error(err))
		}
	}

	s.logger.Info("backend listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", s.lockPath),
		logging.String(logging.FieldEventType, "backend_started"))
	return nil
}

// Addr returns the bound listener address, or the configured bind when the
// server has not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrLocked()
}

func (s *Server) addrLocked() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Backend.Bind
}

// Stop drains in-flight requests, releases the lock, and closes the run
// journal entry. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.running.Load() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				logging.WarnWithContext(s.logger, "backend shutdown incomplete", "backend_shutdown_incomplete",
					logging.Error(err),
					logging.String(logging.FieldImpact, "in-flight requests were closed forcibly"))
				_ = s.server.Close()
			}
			s.mu.Lock()
			listener := s.listener
			runID := s.runID
			s.mu.Unlock()
			if listener != nil {
				_ = listener.Close()
			}
			if s.runs != nil && runID != "" {
				if err := s.runs.MarkStopped(context.Background(), runID, "backend stopped"); err != nil {
					s.logger.Warn("mark run stopped", logging.Error(err))
				}
			}
			if err := s.lock.Unlock(); err != nil {
				s.logger.Warn("failed to release backend lock", logging.Error(err))
			}
			s.running.Store(false)
			s.logger.Info("backend stopped", logging.String(logging.FieldEventType, "backend_stopped"))
		}
		s.doneOnce.Do(func() { close(s.done) })
	})
}

// Shutdown requests an asynchronous stop. It satisfies ipc.Controller and
// must not block so the RPC reply can be written before the socket closes.
func (s *Server) Shutdown() {
	go s.Stop()
}

// Done is closed once the server has fully stopped.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Status reports the current backend state for the control socket.
func (s *Server) Status(ctx context.Context) ipc.StatusResponse {
	s.mu.Lock()
	bind := s.addrLocked()
	runID := s.runID
	startedAt := s.startedAt
	s.mu.Unlock()

	resp := ipc.StatusResponse{
		Running:    s.running.Load(),
		PID:        os.Getpid(),
		Bind:       bind,
		BackendURL: s.cfg.BackendURL(),
		Model:      s.cfg.LLM.Model,
		RunID:      runID,
		SocketPath: s.cfg.SocketPath(),
		LockPath:   s.lockPath,
		RunsDBPath: s.cfg.RunsDBPath(),
	}
	if !startedAt.IsZero() {
		resp.StartedAt = startedAt.Format(time.RFC3339)
		resp.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return resp
}

func (s *Server) failRun(ctx context.Context, detail string) {
	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()
	if s.runs == nil || runID == "" {
		return
	}
	if err := s.runs.MarkFailed(ctx, runID, detail); err != nil {
		s.logger.Warn("mark run failed", logging.Error(err))
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Backend.RequestTimeout > 0 {
		return time.Duration(s.cfg.Backend.RequestTimeout) * time.Second
	}
	return 60 * time.Second
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Backend.ShutdownTimeout > 0 {
		return time.Duration(s.cfg.Backend.ShutdownTimeout) * time.Second
	}
	return 10 * time.Second
}
