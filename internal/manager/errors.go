package manager

import (
	"errors"
	"fmt"

	"github.com/loykin/prokill/internal/process"
)

// Kind classifies a termination or policy failure.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindPermissionDenied
	KindProtected
	KindSignalFailed
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindProtected:
		return "protected"
	case KindSignalFailed:
		return "signal_failed"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the single error type returned by Manager and Session.
// Name is set for KindProtected; Detail carries the OS text for the other kinds.
type Error struct {
	Kind   Kind
	Name   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return "Process not found"
	case KindPermissionDenied:
		return "Permission denied"
	case KindProtected:
		return "Protected process: " + e.Name
	case KindSignalFailed:
		return "Signal failed: " + e.Detail
	default:
		return "Unknown error: " + e.Detail
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below regardless of name or detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Name == "" && t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrProtected        = &Error{Kind: KindProtected}
	ErrSignalFailed     = &Error{Kind: KindSignalFailed}
	ErrUnknown          = &Error{Kind: KindUnknown}
)

// KindOf returns the kind of err. Errors not produced by this package are KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func protected(name string) *Error { return &Error{Kind: KindProtected, Name: name} }

func notFound(pid uint32) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf("pid %d", pid)}
}

// signalFailure maps an OS signal-delivery error onto the taxonomy.
func signalFailure(err error) *Error {
	detail := err.Error()
	var se *process.SignalError
	if errors.As(err, &se) {
		detail = se.Err.Error()
	}
	switch {
	case errors.Is(err, process.ErrNoProcess):
		return &Error{Kind: KindNotFound, Detail: detail, Err: err}
	case errors.Is(err, process.ErrPermission):
		return &Error{Kind: KindPermissionDenied, Detail: detail, Err: err}
	case se != nil:
		return &Error{Kind: KindSignalFailed, Detail: detail, Err: err}
	}
	return &Error{Kind: KindUnknown, Detail: detail, Err: err}
}
