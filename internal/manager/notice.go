package manager

import (
	"errors"
	"fmt"

	"github.com/loykin/prokill/internal/process"
)

// Notice is a short user-facing message about an interaction.
type Notice struct {
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
	Kind    Kind   `json:"-"`
}

// Outcome describes the result of terminating rec.
func Outcome(rec process.Record, forceful bool, err error) Notice {
	if err == nil {
		if forceful {
			return Notice{Message: fmt.Sprintf("Process %s (%d) force killed", rec.Name, rec.PID)}
		}
		return Notice{Message: fmt.Sprintf("Process %s (%d) terminated", rec.Name, rec.PID)}
	}
	return Notice{
		Message: "Failed to kill process: " + describe(err, forceful),
		IsError: true,
		Kind:    KindOf(err),
	}
}

// Rejection describes why a kill request was refused before confirmation.
func Rejection(err error) Notice {
	return Notice{Message: describe(err, false), IsError: true, Kind: KindOf(err)}
}

func describe(err error, forceful bool) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Unknown error: " + err.Error()
	}
	switch e.Kind {
	case KindSignalFailed:
		sig := process.SignalTerminate
		if forceful {
			sig = process.SignalKill
		}
		return fmt.Sprintf("%s failed: %s", sig, e.Detail)
	case KindPermissionDenied:
		return "Permission denied. The process belongs to another user; run with elevated privileges to kill it"
	case KindNotFound:
		return "Process not found. It may have already exited"
	case KindProtected:
		return fmt.Sprintf("Cannot kill protected system process: %s", e.Name)
	}
	return e.Error()
}
