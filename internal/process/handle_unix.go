//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

// requestStop sends SIGTERM.
func requestStop(pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
