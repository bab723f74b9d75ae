package dispatch

import "errors"

// Domain-specific errors for handler registration.
var (
	// ErrInvalidPattern is returned when a topic filter uses a wildcard in
	// a position the broker would reject (e.g. "#" before the last level).
	ErrInvalidPattern = errors.New("dispatch: invalid topic filter")

	// ErrNilHandler is returned when a registration contains a nil handler.
	ErrNilHandler = errors.New("dispatch: handler cannot be nil")
)
