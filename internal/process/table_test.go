package process

import (
	"os"
	"testing"
)

func TestGopsutilTableContainsSelf(t *testing.T) {
	table := NewGopsutilTable()
	self := uint32(os.Getpid())

	p := NewProvider(table, nil)
	recs := p.Snapshot(SortPID)
	if len(recs) == 0 {
		t.Skip("process table not readable in this environment")
	}
	found := false
	for i, r := range recs {
		if i > 0 && recs[i-1].PID >= r.PID {
			t.Fatalf("pids not strictly ascending at %d", i)
		}
		if r.PID == self {
			found = true
			if r.Name == "" {
				t.Fatalf("own process has empty name")
			}
			if r.Memory == 0 {
				t.Fatalf("own process reports zero RSS")
			}
		}
	}
	if !found {
		t.Fatalf("own pid %d missing from snapshot", self)
	}

	r, ok := p.Find(self)
	if !ok || r.PID != self {
		t.Fatalf("Find(self) = %+v, %v", r, ok)
	}
}

func TestGopsutilTableDropsExitedHandles(t *testing.T) {
	table := NewGopsutilTable()
	if len(table.Entries()) == 0 {
		t.Skip("process table not readable in this environment")
	}
	if len(table.procs) != len(table.Entries()) {
		t.Fatalf("handle cache (%d) out of sync with entries (%d)", len(table.procs), len(table.Entries()))
	}
}
