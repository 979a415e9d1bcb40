package manager

import (
	"github.com/loykin/prokill/internal/policy"
	"github.com/loykin/prokill/internal/process"
)

// Manager gates and performs process termination on top of a Provider.
// It holds no inventory of its own: every read goes through the Provider,
// which owns the CPU delta state for the Manager's lifetime.
//
// A Manager is meant for a single caller; serialize access externally when
// sharing it between goroutines.
type Manager struct {
	provider *process.Provider
	signaler process.Signaler
}

// Option configures a Manager.
type Option func(*Manager)

// WithSignaler replaces the OS signal delivery, mainly for tests.
func WithSignaler(s process.Signaler) Option {
	return func(m *Manager) {
		if s != nil {
			m.signaler = s
		}
	}
}

// New builds a Manager over provider.
func New(provider *process.Provider, opts ...Option) *Manager {
	m := &Manager{provider: provider, signaler: process.OSSignaler{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewSystem builds a Manager reading the live OS process table.
// A nil policy selects policy.Default().
func NewSystem(pol *policy.Policy, opts ...Option) *Manager {
	return New(process.NewProvider(process.NewGopsutilTable(), pol), opts...)
}

// Provider exposes the underlying snapshot provider.
func (m *Manager) Provider() *process.Provider { return m.provider }

// Refresh re-reads the process table without building records. Calling it at a
// steady cadence keeps CPU percentages comparable between snapshots.
func (m *Manager) Refresh() { m.provider.Refresh() }

// Snapshot returns all live processes ordered by sortBy.
func (m *Manager) Snapshot(sortBy process.SortKey) []process.Record {
	return m.provider.Snapshot(sortBy)
}

// List is Snapshot followed by f.
func (m *Manager) List(sortBy process.SortKey, f process.Filter) []process.Record {
	return f.Apply(m.provider.Snapshot(sortBy))
}

// Find returns the live record for pid.
func (m *Manager) Find(pid uint32) (process.Record, bool) {
	return m.provider.Find(pid)
}

// CanKill reports whether rec may be offered for termination. It fails with
// KindProtected only when the name is a critical process; system services
// are flagged through Record.IsSystem but remain killable.
// CanKill does not touch the OS.
func (m *Manager) CanKill(rec process.Record) error {
	if m.provider.Policy().IsCritical(rec.Name) {
		return protected(rec.Name)
	}
	return nil
}

// Terminate sends SIGTERM, or SIGKILL when forceful, to pid. It does not
// consult the protection policy; callers run CanKill first. The call returns
// once the OS accepts or rejects the signal, not when the process exits.
func (m *Manager) Terminate(pid uint32, forceful bool) error {
	sig := process.SignalTerminate
	if forceful {
		sig = process.SignalKill
	}
	if err := m.signaler.Signal(pid, sig); err != nil {
		return signalFailure(err)
	}
	return nil
}
