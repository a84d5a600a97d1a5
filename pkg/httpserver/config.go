package httpserver

import (
	"context"
	"log/slog"
	"time"
)

// Config holds listener settings. Live push connections are hijacked and
// manage their own deadlines, so the timeouts only bound plain API requests.
type Config struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	// ShutdownTimeout covers stopping the listener and running every drain.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

// withDefaults fills zero fields, so a Config built in code behaves like one
// loaded from an empty environment.
func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 20 * time.Second
	}
	return c
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDrain registers a component released after the listener stops.
// Drains run in registration order and share the shutdown timeout.
func WithDrain(name string, fn func(context.Context) error) Option {
	return func(s *Server) {
		if fn != nil {
			s.drains = append(s.drains, drain{name: name, fn: fn})
		}
	}
}
