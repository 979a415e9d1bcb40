package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Process is one entry of a process listing.
type Process struct {
	PID      uint32  `json:"pid"`
	Name     string  `json:"name"`
	CPUUsage float64 `json:"cpu_usage"`
	Memory   uint64  `json:"memory"`
	Status   string  `json:"status"`
	IsSystem bool    `json:"is_system"`
}

// ListOptions are the query parameters of GET /processes.
// Zero values leave the server defaults in place.
type ListOptions struct {
	Sort      string  // cpu, memory, pid or name
	Threshold float64 // keep processes strictly above this cpu percentage
	Query     string  // case-insensitive substring of the name or the decimal pid
	Limit     int
}

// Listing is a process listing and the time its snapshot was taken.
type Listing struct {
	Processes []Process `json:"processes"`
	TakenAt   time.Time `json:"taken_at"`
}

// Killability reports whether the policy allows terminating a process.
type Killability struct {
	PID      uint32 `json:"pid"`
	Name     string `json:"name"`
	Killable bool   `json:"killable"`
	Reason   string `json:"reason,omitempty"`
}

// Notice is the user-facing message for an interaction.
type Notice struct {
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}

// KillResult is returned by a successful kill request.
type KillResult struct {
	OK      bool    `json:"ok"`
	Process Process `json:"record"`
	Notice  Notice  `json:"notice"`
}

// Sample is one usage observation of a process.
type Sample struct {
	PID       uint32    `json:"pid"`
	Name      string    `json:"name"`
	CPUUsage  float64   `json:"cpu_usage"`
	Memory    uint64    `json:"memory"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one entry of the kill history.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        uint32    `json:"pid"`
	Name       string    `json:"name"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"` // set by the auth layer
}

// Error kinds reported by the API.
const (
	KindNotFound         = "not_found"
	KindPermissionDenied = "permission_denied"
	KindProtected        = "protected"
	KindSignalFailed     = "signal_failed"
	KindUnknown          = "unknown"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}

// KindOf returns the kind carried by an *APIError, or "" for other errors.
func KindOf(err error) string {
	var e *APIError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err means the process or resource does not exist.
func IsNotFound(err error) bool {
	var e *APIError
	return errors.As(err, &e) && (e.Kind == KindNotFound || e.StatusCode == http.StatusNotFound)
}

// IsProtected reports whether err is a policy refusal.
func IsProtected(err error) bool { return KindOf(err) == KindProtected }

// IsUnauthorized reports whether the token was missing, invalid or lacked permission.
func IsUnauthorized(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.Kind == "" &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
