package process

import (
	"errors"
	"fmt"
)

// Signal is the kind of termination request sent to a process.
type Signal int

const (
	// SignalTerminate asks the process to exit (SIGTERM).
	SignalTerminate Signal = iota
	// SignalKill terminates the process unconditionally (SIGKILL).
	SignalKill
)

func (s Signal) String() string {
	switch s {
	case SignalTerminate:
		return "SIGTERM"
	case SignalKill:
		return "SIGKILL"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Signaler delivers termination signals to processes by pid.
type Signaler interface {
	Signal(pid uint32, sig Signal) error
}

var (
	// ErrNoProcess reports that the target pid does not exist.
	ErrNoProcess = errors.New("no such process")
	// ErrPermission reports that the caller may not signal the target.
	ErrPermission = errors.New("operation not permitted")
	// ErrInvalidPID reports a pid that cannot address a single process.
	ErrInvalidPID = errors.New("invalid pid")
)

// SignalError is returned by OSSignaler when the OS rejects a signal.
// Err carries the OS error; errors.Is matches ErrNoProcess and ErrPermission
// when the OS reason corresponds.
type SignalError struct {
	PID    uint32
	Signal Signal
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("%s to pid %d: %v", e.Signal, e.PID, e.Err)
}

func (e *SignalError) Unwrap() error { return e.Err }

func (e *SignalError) Is(target error) bool {
	switch target {
	case ErrNoProcess:
		return isNoProcess(e.Err)
	case ErrPermission:
		return isPermission(e.Err)
	case ErrInvalidPID:
		return errors.Is(e.Err, ErrInvalidPID)
	}
	return false
}

// OSSignaler sends real signals.
type OSSignaler struct{}

// validPID rejects pids that the OS would interpret as a process group
// or that do not fit the platform pid type.
func validPID(pid uint32) bool { return pid > 0 && pid <= 1<<31-1 }
