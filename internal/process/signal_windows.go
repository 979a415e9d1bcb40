//go:build windows

package process

import (
	"errors"
	"os"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Windows has no graceful signal for arbitrary processes; both kinds terminate.
func (OSSignaler) Signal(pid uint32, sig Signal) error {
	if !validPID(pid) {
		return &SignalError{PID: pid, Signal: sig, Err: ErrInvalidPID}
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return &SignalError{PID: pid, Signal: sig, Err: err}
	}
	if err := p.Kill(); err != nil {
		return &SignalError{PID: pid, Signal: sig, Err: err}
	}
	return nil
}

func isNoProcess(err error) bool { return errors.Is(err, gopsproc.ErrorProcessNotRunning) }

func isPermission(err error) bool { return errors.Is(err, os.ErrPermission) }

// Alive reports whether a process with pid exists.
func Alive(pid uint32) bool {
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}
