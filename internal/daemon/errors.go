package daemon

import "errors"

// Domain-specific errors for process management.
var (
	// ErrAlreadyRunning is returned when the PID file names a live process.
	ErrAlreadyRunning = errors.New("daemon: another instance is running")

	// ErrUnknownUser is returned when a --uid value matches no user.
	ErrUnknownUser = errors.New("daemon: unknown user")

	// ErrUnknownGroup is returned when a --gid value matches no group.
	ErrUnknownGroup = errors.New("daemon: unknown group")

	// ErrPrivilegeDrop is returned when chroot, setgid or setuid fails.
	ErrPrivilegeDrop = errors.New("daemon: dropping privileges failed")
)
