package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// detachedEnv marks the re-executed child so it does not detach again.
const detachedEnv = "MQTTSERVICE_DETACHED"

// IsDetached reports whether this process is the detached child.
func IsDetached() bool {
	return os.Getenv(detachedEnv) == "1"
}

// Detach re-executes the current binary with the same arguments in a new
// session, with standard streams on /dev/null.
//
// Returns:
//   - bool: true in the original process, which should exit; false in the
//     detached child, which should carry on
//   - error: if the child could not be started
func Detach() (bool, error) {
	if IsDetached() {
		return false, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("locating executable: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), detachedEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Dir = "/"
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("starting detached process: %w", err)
	}
	// The child is reparented once this process exits.
	_ = cmd.Process.Release()
	return true, nil
}
