package manager

import (
	"fmt"
	"sync"

	"github.com/loykin/prokill/internal/process"
)

type stubTable struct {
	entries []process.Entry
}

func (t *stubTable) Refresh()                 {}
func (t *stubTable) Entries() []process.Entry { return t.entries }

func (t *stubTable) remove(pid uint32) {
	out := t.entries[:0]
	for _, e := range t.entries {
		if e.PID != pid {
			out = append(out, e)
		}
	}
	t.entries = out
}

type sent struct {
	PID    uint32
	Signal process.Signal
}

// recordingSignaler remembers every signal and answers from errs by pid.
type recordingSignaler struct {
	mu    sync.Mutex
	sent  []sent
	errs  map[uint32]error
	table *stubTable
}

func (r *recordingSignaler) Signal(pid uint32, sig process.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{PID: pid, Signal: sig})
	if err, ok := r.errs[pid]; ok {
		return err
	}
	if r.table != nil {
		r.table.remove(pid)
	}
	return nil
}

func (r *recordingSignaler) calls() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.sent...)
}

func sampleEntries() []process.Entry {
	return []process.Entry{
		{PID: 1, Name: "init", CPU: 0.1, Memory: 4 << 20, Status: process.StatusSleeping},
		{PID: 42, Name: "systemd-journald", CPU: 0.5, Memory: 16 << 20, Status: process.StatusSleeping},
		{PID: 1234, Name: "editor", CPU: 12.5, Memory: 200 << 20, Status: process.StatusRunning},
		{PID: 2048, Name: "node", CPU: 75, Memory: 512 << 20, Status: process.StatusRunning},
	}
}

func newTestManager() (*Manager, *stubTable, *recordingSignaler) {
	tbl := &stubTable{entries: sampleEntries()}
	sig := &recordingSignaler{errs: map[uint32]error{}, table: tbl}
	m := New(process.NewProvider(tbl, nil), WithSignaler(sig))
	return m, tbl, sig
}

func osErr(pid uint32, sig process.Signal, msg string, target error) error {
	return &process.SignalError{PID: pid, Signal: sig, Err: fmt.Errorf("%s: %w", msg, target)}
}
