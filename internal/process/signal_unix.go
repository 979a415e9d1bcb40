//go:build !windows

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

func (OSSignaler) Signal(pid uint32, sig Signal) error {
	if !validPID(pid) {
		return &SignalError{PID: pid, Signal: sig, Err: ErrInvalidPID}
	}
	if err := unix.Kill(int(pid), sig.unix()); err != nil {
		return &SignalError{PID: pid, Signal: sig, Err: err}
	}
	return nil
}

func (s Signal) unix() unix.Signal {
	if s == SignalKill {
		return unix.SIGKILL
	}
	return unix.SIGTERM
}

func isNoProcess(err error) bool { return errors.Is(err, unix.ESRCH) }

func isPermission(err error) bool { return errors.Is(err, unix.EPERM) }

// Alive reports whether a process with pid exists (kill -0; EPERM still means alive).
func Alive(pid uint32) bool {
	if !validPID(pid) {
		return false
	}
	err := unix.Kill(int(pid), 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
