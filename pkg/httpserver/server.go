package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

type drain struct {
	name string
	fn   func(context.Context) error
}

// Server runs the API listener and releases registered drains once it stops.
type Server struct {
	cfg    Config
	log    *slog.Logger
	drains []drain

	mu    sync.Mutex
	srv   *http.Server
	addr  net.Addr
	ready chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// New returns a Server for cfg. Zero fields take the same defaults as the
// environment tags.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg.withDefaults(),
		log:   slog.Default(),
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is closed once the listener accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr is the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run serves handler until ctx is cancelled, SIGINT or SIGTERM arrives, or
// Shutdown is called. A listener failure is joined with ErrStart.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, err)
	}
	s.srv = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	s.addr = ln.Addr()
	s.mu.Unlock()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	s.log.LogAttrs(ctx, slog.LevelInfo, "http server listening", slog.String("addr", ln.Addr().String()))
	close(s.ready)

	select {
	case <-sigCtx.Done():
		s.log.LogAttrs(ctx, slog.LevelInfo, "http server stopping", slog.String("cause", context.Cause(sigCtx).Error()))
		shutdownErr := s.Shutdown(context.WithoutCancel(ctx))
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(ErrStart, err)
		}
		return shutdownErr
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			// Shutdown was called directly; its result belongs to that caller.
			return nil
		}
		return errors.Join(ErrStart, err)
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases every drain within the shutdown timeout. Repeated calls return
// the first result. Failures are joined with ErrShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		for _, d := range s.drains {
			if err := d.fn(ctx); err != nil {
				s.log.LogAttrs(ctx, slog.LevelError, "drain failed", logger.Component(d.name), logger.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
			}
		}
		if len(errs) > 0 {
			s.stopErr = errors.Join(append([]error{ErrShutdown}, errs...)...)
		}
		s.log.LogAttrs(ctx, slog.LevelInfo, "http server stopped", slog.Int("drains", len(s.drains)))
	})
	return s.stopErr
}
