package process

import (
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Entry is one row of the OS process table after a refresh pass.
type Entry struct {
	PID    uint32
	Name   string
	CPU    float64
	Memory uint64
	Status string
}

// Table is the OS process table. Refresh re-reads every process and
// updates the state used to compute CPU deltas; Entries returns the rows
// of the latest pass. Implementations are not safe for concurrent use.
type Table interface {
	Refresh()
	Entries() []Entry
}

// GopsutilTable reads the process table through gopsutil.
// It keeps a process handle per pid between refreshes so that CPU usage
// is computed over the interval since the previous Refresh.
type GopsutilTable struct {
	procs   map[int32]*gopsproc.Process
	entries []Entry
}

// NewGopsutilTable creates a table and performs an initial refresh so the
// first snapshot already has a CPU baseline.
func NewGopsutilTable() *GopsutilTable {
	t := &GopsutilTable{procs: make(map[int32]*gopsproc.Process)}
	t.Refresh()
	return t
}

func (t *GopsutilTable) Refresh() {
	pids, err := gopsproc.Pids()
	if err != nil {
		// unreadable table degrades to an empty set
		t.procs = make(map[int32]*gopsproc.Process)
		t.entries = nil
		return
	}
	next := make(map[int32]*gopsproc.Process, len(pids))
	entries := make([]Entry, 0, len(pids))
	for _, pid := range pids {
		if pid < 0 {
			continue
		}
		p, ok := t.procs[pid]
		if !ok {
			p, err = gopsproc.NewProcess(pid)
			if err != nil {
				continue
			}
		}
		name, err := p.Name()
		if err != nil {
			// exited between Pids and Name
			continue
		}
		e := Entry{
			PID:  uint32(pid),
			Name: strings.ToValidUTF8(name, "�"),
		}
		if cpu, err := p.Percent(0); err == nil {
			e.CPU = cpu
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			e.Memory = mem.RSS
		}
		if st, err := p.Status(); err == nil && len(st) > 0 {
			e.Status = NormalizeStatus(st[0])
		} else {
			e.Status = StatusUnknown
		}
		next[pid] = p
		entries = append(entries, e)
	}
	t.procs = next
	t.entries = entries
}

func (t *GopsutilTable) Entries() []Entry { return t.entries }
