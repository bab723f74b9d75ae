package service

import "errors"

// Domain-specific errors for the service lifecycle.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyRunning is returned when Run is called more than once.
	ErrAlreadyRunning = errors.New("service: already running")

	// ErrNotConnected is reported by HealthCheck when no broker connection is up.
	ErrNotConnected = errors.New("service: not connected")

	// ErrShutdownTimeout is returned by Run when the broker did not
	// acknowledge the disconnect in time and the connection was force-stopped.
	ErrShutdownTimeout = errors.New("service: disconnect not acknowledged, forced stop")
)
