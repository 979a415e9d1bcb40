package process

import "github.com/loykin/prokill/internal/policy"

// Provider produces snapshots of the process table. It owns the Table and
// with it the CPU delta state; one Provider should back one controller.
// A Provider is not safe for concurrent use.
type Provider struct {
	table  Table
	policy *policy.Policy
}

// NewProvider wraps table. A nil policy selects policy.Default().
func NewProvider(table Table, pol *policy.Policy) *Provider {
	if pol == nil {
		pol = policy.Default()
	}
	return &Provider{table: table, policy: pol}
}

// Policy returns the classification policy used for IsSystem.
func (p *Provider) Policy() *policy.Policy { return p.policy }

// Refresh re-reads the OS process table.
func (p *Provider) Refresh() { p.table.Refresh() }

// Snapshot refreshes and returns one record per live process ordered by sortBy.
// All records come from the same refresh pass.
func (p *Provider) Snapshot(sortBy SortKey) []Record {
	p.table.Refresh()
	entries := p.table.Entries()
	recs := make([]Record, 0, len(entries))
	seen := make(map[uint32]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.PID]; dup {
			continue
		}
		seen[e.PID] = struct{}{}
		recs = append(recs, p.record(e))
	}
	SortRecords(recs, sortBy)
	return recs
}

// Find refreshes and returns the record for pid, if it is currently running.
func (p *Provider) Find(pid uint32) (Record, bool) {
	p.table.Refresh()
	for _, e := range p.table.Entries() {
		if e.PID == pid {
			return p.record(e), true
		}
	}
	return Record{}, false
}

func (p *Provider) record(e Entry) Record {
	return Record{
		PID:      e.PID,
		Name:     e.Name,
		CPUUsage: e.CPU,
		Memory:   e.Memory,
		Status:   e.Status,
		IsSystem: p.policy.IsSystem(e.Name),
	}
}
