package httpserver

import "errors"

var (
	// ErrStart is returned when the listener cannot be started.
	ErrStart = errors.New("httpserver: failed to start")
	// ErrShutdown is joined with every listener or drain failure during shutdown.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
