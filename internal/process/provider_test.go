package process

import (
	"testing"

	"github.com/loykin/prokill/internal/policy"
)

func TestProviderSnapshotRefreshesAndClassifies(t *testing.T) {
	table := newFakeTable([]Entry{
		{PID: 1, Name: "init", Status: StatusSleeping},
		{PID: 812, Name: "sshd-session", CPU: 0.5},
		{PID: 4242, Name: "myapp", CPU: 87.5, Memory: 1 << 20},
	})
	p := NewProvider(table, nil)

	recs := p.Snapshot(SortPID)
	if table.refreshes != 1 {
		t.Fatalf("expected one refresh, got %d", table.refreshes)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	byPID := map[uint32]Record{}
	for _, r := range recs {
		byPID[r.PID] = r
	}
	if !byPID[1].IsSystem {
		t.Fatalf("init should be flagged system")
	}
	if !byPID[812].IsSystem {
		t.Fatalf("sshd-session should be flagged system by prefix")
	}
	if byPID[4242].IsSystem {
		t.Fatalf("myapp should not be flagged system")
	}
	if byPID[4242].Memory != 1<<20 || byPID[4242].CPUUsage != 87.5 {
		t.Fatalf("fields not copied: %+v", byPID[4242])
	}
}

func TestProviderSnapshotDropsDuplicatePIDs(t *testing.T) {
	table := newFakeTable([]Entry{
		{PID: 3, Name: "a"},
		{PID: 2, Name: "b"},
		{PID: 3, Name: "a-again"},
	})
	recs := NewProvider(table, nil).Snapshot(SortPID)
	if len(recs) != 2 {
		t.Fatalf("expected duplicates removed, got %+v", recs)
	}
	if recs[0].PID != 2 || recs[1].PID != 3 || recs[1].Name != "a" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestProviderConsecutiveSnapshotsSamePIDs(t *testing.T) {
	table := newFakeTable(
		[]Entry{{PID: 1, Name: "init", CPU: 0}, {PID: 9, Name: "x", CPU: 1}},
		[]Entry{{PID: 1, Name: "init", CPU: 0.2}, {PID: 9, Name: "x", CPU: 40}},
	)
	p := NewProvider(table, nil)
	a := p.Snapshot(SortPID)
	b := p.Snapshot(SortPID)
	if len(a) != len(b) {
		t.Fatalf("pid sets differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i].PID != b[i].PID {
			t.Fatalf("pid sets differ at %d", i)
		}
	}
	if b[1].CPUUsage != 40 {
		t.Fatalf("second snapshot should reflect second refresh pass")
	}
}

func TestProviderFind(t *testing.T) {
	table := newFakeTable(
		[]Entry{{PID: 4242, Name: "myapp"}},
		[]Entry{},
	)
	p := NewProvider(table, nil)
	r, ok := p.Find(4242)
	if !ok || r.Name != "myapp" {
		t.Fatalf("expected to find myapp, got %+v %v", r, ok)
	}
	if _, ok := p.Find(4242); ok {
		t.Fatalf("expected pid to be gone after it exited")
	}
	if table.refreshes != 2 {
		t.Fatalf("Find must refresh, refreshes=%d", table.refreshes)
	}
}

func TestProviderEmptyTable(t *testing.T) {
	p := NewProvider(newFakeTable(), nil)
	if recs := p.Snapshot(SortCPU); len(recs) != 0 {
		t.Fatalf("expected empty snapshot, got %v", recs)
	}
	if _, ok := p.Find(1); ok {
		t.Fatalf("expected nothing found")
	}
}

func TestProviderCustomPolicy(t *testing.T) {
	pol := policy.New([]string{"postgres"})
	p := NewProvider(newFakeTable([]Entry{{PID: 50, Name: "postgres"}}), pol)
	if p.Policy() != pol {
		t.Fatalf("policy not kept")
	}
	r, _ := p.Find(50)
	if !r.IsSystem {
		t.Fatalf("extra protected names count as system")
	}
}
