package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getmockd/stubd/pkg/logging"
)

// ServerConfig holds listener settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080". Port 0 picks a free port.
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the settings used by `stubd serve`.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server runs a Handler on an HTTP listener.
type Server struct {
	cfg     ServerConfig
	handler *Handler
	log     *slog.Logger

	mu         sync.Mutex
	running    bool
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a stopped server for h.
func NewServer(cfg ServerConfig, h *Handler, opts ...ServerOption) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		handler: h,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the served handler.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.serveErr = make(chan error, 1)

	s.log.Info("starting HTTP server", "addr", ln.Addr().String(), "rules", s.handler.Registry().Len())
	go func(srv *http.Server, done chan<- error) {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.log.Error("HTTP server error", "error", err)
		}
		done <- err
	}(s.httpServer, s.serveErr)

	s.running = true
	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.running = false
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is cancelled or serving
// fails. Each task runs alongside with a context cancelled on shutdown;
// a task error stops the server.
func (s *Server) Run(ctx context.Context, tasks ...func(context.Context) error) error {
	if err := s.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	serveErr := s.serveErr
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A stop from elsewhere ends the tasks too.
		defer cancel()
		select {
		case err := <-serveErr:
			return err
		case <-gctx.Done():
			return s.Stop()
		}
	})
	for _, task := range tasks {
		g.Go(func() error {
			return task(gctx)
		})
	}

	err := g.Wait()
	if stopErr := s.Stop(); err == nil {
		err = stopErr
	}
	return err
}
