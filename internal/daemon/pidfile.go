package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// pidFilePermissions is the permission mode for PID files.
const pidFilePermissions = 0644

// PIDFile is a written PID file, removed on Remove.
type PIDFile struct {
	path string
}

// WritePIDFile records the current process ID at path.
//
// An existing file naming a live process is an error. A file left behind
// by a dead process is replaced.
//
// Returns:
//   - *PIDFile: call Remove on shutdown
//   - error: ErrAlreadyRunning, or the underlying I/O error
func WritePIDFile(path string) (*PIDFile, error) {
	if pid, err := readPID(path); err == nil && processAlive(pid) {
		return nil, fmt.Errorf("%w: pid %d in %s", ErrAlreadyRunning, pid, path)
	}

	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, pidFilePermissions); err != nil {
		return nil, fmt.Errorf("writing pid file: %w", err)
	}
	return &PIDFile{path: path}, nil
}

// Path returns the file location.
func (p *PIDFile) Path() string {
	return p.path
}

// Remove deletes the PID file if it still names this process.
func (p *PIDFile) Remove() error {
	pid, err := readPID(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return pid, nil
}

// processAlive reports whether pid exists. EPERM means it exists but
// belongs to another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
