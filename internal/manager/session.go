package manager

import (
	"fmt"

	"github.com/loykin/prokill/internal/process"
)

// State of a kill interaction.
type State int

const (
	StateIdle State = iota
	StatePolicyCheck
	StateAwaitingConfirmation
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolicyCheck:
		return "policy_check"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateTerminating:
		return "terminating"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Pending is the target waiting for confirmation.
type Pending struct {
	Record   process.Record
	Forceful bool
}

// Observer is told about every termination a Session performs.
// err is nil on success.
type Observer func(rec process.Record, forceful bool, err error)

// Session drives one kill interaction at a time on behalf of a front-end:
// request, policy check, confirmation, termination, re-snapshot.
// It also keeps the last snapshot the user was shown.
// A Session is not safe for concurrent use.
type Session struct {
	mgr       *Manager
	sortBy    process.SortKey
	filter    process.Filter
	records   []process.Record
	state     State
	pending   *Pending
	observers []Observer
}

// NewSession creates an idle session. Call Refresh to load the first snapshot.
func NewSession(m *Manager, sortBy process.SortKey) *Session {
	return &Session{mgr: m, sortBy: sortBy}
}

// Manager returns the manager behind the session.
func (s *Session) Manager() *Manager { return s.mgr }

// OnTerminate registers an observer for terminations.
func (s *Session) OnTerminate(o Observer) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

func (s *Session) Sort() process.SortKey { return s.sortBy }

// SetSort changes the ordering and re-snapshots.
func (s *Session) SetSort(k process.SortKey) []process.Record {
	s.sortBy = k
	return s.Refresh()
}

func (s *Session) Filter() process.Filter { return s.filter }

// SetFilter changes the visible subset. The current records are not re-read.
func (s *Session) SetFilter(f process.Filter) { s.filter = f }

// Refresh takes a new snapshot and returns the visible records.
func (s *Session) Refresh() []process.Record {
	s.records = s.mgr.Snapshot(s.sortBy)
	return s.Records()
}

// Records returns the visible records of the last snapshot.
func (s *Session) Records() []process.Record { return s.filter.Apply(s.records) }

// State returns the interaction state.
func (s *Session) State() State { return s.state }

// Pending returns the target awaiting confirmation, if any.
func (s *Session) Pending() (Pending, bool) {
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

// Request starts a kill interaction for pid. On success the session awaits
// confirmation; a request made while already awaiting replaces the target.
// On failure the session returns to idle and the error is KindNotFound or
// KindProtected.
func (s *Session) Request(pid uint32, forceful bool) error {
	s.state = StatePolicyCheck
	s.pending = nil

	rec, ok := s.lookup(pid)
	if !ok {
		s.state = StateIdle
		return notFound(pid)
	}
	if err := s.mgr.CanKill(rec); err != nil {
		s.state = StateIdle
		return err
	}
	s.pending = &Pending{Record: rec, Forceful: forceful}
	s.state = StateAwaitingConfirmation
	return nil
}

// Cancel drops the pending target.
func (s *Session) Cancel() {
	s.pending = nil
	s.state = StateIdle
}

// Confirm terminates the pending target, notifies observers and re-snapshots
// whatever the outcome. It reports false when nothing was pending.
func (s *Session) Confirm() (Notice, bool) {
	if s.state != StateAwaitingConfirmation || s.pending == nil {
		return Notice{}, false
	}
	p := *s.pending
	s.pending = nil
	s.state = StateTerminating

	err := s.mgr.Terminate(p.Record.PID, p.Forceful)
	for _, o := range s.observers {
		o(p.Record, p.Forceful, err)
	}
	s.Refresh()
	s.state = StateIdle
	return Outcome(p.Record, p.Forceful, err), true
}

// lookup prefers the snapshot the user is looking at, then the live table.
func (s *Session) lookup(pid uint32) (process.Record, bool) {
	for _, r := range s.records {
		if r.PID == pid {
			return r, true
		}
	}
	return s.mgr.Find(pid)
}
