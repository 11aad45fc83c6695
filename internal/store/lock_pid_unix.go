//go:build !windows

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive probes liveness with signal 0. EPERM means the pid exists but
// belongs to another user, which still counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
