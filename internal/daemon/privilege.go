package daemon

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// Credentials describes the identity to switch to after start-up.
// A negative UID or GID keeps the current one; an empty Chroot skips chroot.
type Credentials struct {
	UID    int
	GID    int
	Chroot string
}

// NoChange returns Credentials that keep the current identity.
func NoChange() Credentials {
	return Credentials{UID: -1, GID: -1}
}

// ResolveUser turns a user name or numeric ID into a UID.
// An empty name resolves to -1 (keep current).
func ResolveUser(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return -1, fmt.Errorf("%w: %s", ErrUnknownUser, name)
	}
	return strconv.Atoi(u.Uid)
}

// ResolveGroup turns a group name or numeric ID into a GID.
// An empty name resolves to -1 (keep current).
func ResolveGroup(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}

	g, err := user.LookupGroup(name)
	if err != nil {
		return -1, fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}
	return strconv.Atoi(g.Gid)
}

// Drop applies c to the running process: chroot first (it needs root), then
// the group, then the user.
func Drop(c Credentials) error {
	if c.Chroot != "" {
		if err := unix.Chroot(c.Chroot); err != nil {
			return fmt.Errorf("%w: chroot %s: %w", ErrPrivilegeDrop, c.Chroot, err)
		}
		if err := unix.Chdir("/"); err != nil {
			return fmt.Errorf("%w: chdir /: %w", ErrPrivilegeDrop, err)
		}
	}

	if c.GID >= 0 {
		if err := unix.Setgroups([]int{c.GID}); err != nil {
			return fmt.Errorf("%w: setgroups %d: %w", ErrPrivilegeDrop, c.GID, err)
		}
		if err := unix.Setgid(c.GID); err != nil {
			return fmt.Errorf("%w: setgid %d: %w", ErrPrivilegeDrop, c.GID, err)
		}
	}

	if c.UID >= 0 {
		if err := unix.Setuid(c.UID); err != nil {
			return fmt.Errorf("%w: setuid %d: %w", ErrPrivilegeDrop, c.UID, err)
		}
	}
	return nil
}
