// Package daemon provides the process-level collaborators of a service:
// PID files, privilege dropping and detaching from the terminal.
//
// None of this affects service behaviour; it only prepares the process
// before service.Run starts.
//
// Detaching works by re-executing the binary in a new session rather than
// forking, since a Go process cannot fork safely once the runtime has
// started threads:
//
//	parent, err := daemon.Detach()
//	if err != nil { ... }
//	if parent {
//	    return nil // the detached child carries on
//	}
package daemon
