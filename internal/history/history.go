package history

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/process"
)

// EventType defines the kind of termination event.
type EventType string

const (
	EventKill      EventType = "kill"
	EventForceKill EventType = "force_kill"
)

// OutcomeOK is the outcome of a termination the OS accepted.
const OutcomeOK = "ok"

// Event is one termination attempt, exported to audit and analytics systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        uint32    `json:"pid"`
	Name       string    `json:"name"`
	// Outcome is OutcomeOK or the error kind (not_found, permission_denied, ...).
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// NewEvent builds the event for a termination of rec that finished with err.
func NewEvent(rec process.Record, forceful bool, err error, at time.Time) Event {
	e := Event{Type: EventKill, OccurredAt: at.UTC(), PID: rec.PID, Name: rec.Name, Outcome: OutcomeOK}
	if forceful {
		e.Type = EventForceKill
	}
	if err != nil {
		e.Outcome = manager.KindOf(err).String()
		e.Error = err.Error()
	}
	return e
}

// Sink is a destination for history events (audit/analytics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans events out to several sinks. A failing sink does not stop the others.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Observer adapts sink into a manager.Observer. Sends use a short timeout and
// failures are logged, never returned to the interaction.
func Observer(sink Sink, timeout time.Duration) manager.Observer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(rec process.Record, forceful bool, err error) {
		e := NewEvent(rec, forceful, err, time.Now())
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if sendErr := sink.Send(ctx, e); sendErr != nil {
			slog.Warn("history send failed", "pid", e.PID, "name", e.Name, "type", e.Type, "error", sendErr)
		}
	}
}

// Reader is implemented by sinks that can return what they stored.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}
