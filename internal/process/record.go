package process

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Record is one live OS process as seen by a single snapshot.
// Records are values; a caller must take a new snapshot to see fresh data.
type Record struct {
	PID      uint32  `json:"pid"`
	Name     string  `json:"name"`
	CPUUsage float64 `json:"cpu_usage"` // percent of one CPU since the previous refresh, may exceed 100
	Memory   uint64  `json:"memory"`    // resident set size in bytes
	Status   string  `json:"status"`
	IsSystem bool    `json:"is_system"`
}

// SortKey selects the ordering of a snapshot.
type SortKey int

const (
	SortCPU    SortKey = iota // cpu usage, descending
	SortMemory                // resident memory, descending
	SortPID                   // pid, ascending
	SortName                  // case-folded name, ascending
)

func (k SortKey) String() string {
	switch k {
	case SortCPU:
		return "cpu"
	case SortMemory:
		return "memory"
	case SortPID:
		return "pid"
	case SortName:
		return "name"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// ParseSortKey accepts cpu, memory (mem), pid and name, case-insensitively.
// An empty string selects SortCPU.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return SortCPU, nil
	case "memory", "mem":
		return SortMemory, nil
	case "pid":
		return SortPID, nil
	case "name":
		return SortName, nil
	}
	return 0, fmt.Errorf("unknown sort key %q, must be one of: cpu, memory, pid, name", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k SortKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SortKey) UnmarshalText(b []byte) error {
	v, err := ParseSortKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// SortRecords orders recs in place. Ties keep their relative order.
func SortRecords(recs []Record, by SortKey) {
	switch by {
	case SortMemory:
		slices.SortStableFunc(recs, func(a, b Record) int { return cmp.Compare(b.Memory, a.Memory) })
	case SortPID:
		slices.SortStableFunc(recs, func(a, b Record) int { return cmp.Compare(a.PID, b.PID) })
	case SortName:
		slices.SortStableFunc(recs, func(a, b Record) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	default:
		slices.SortStableFunc(recs, func(a, b Record) int { return cmp.Compare(b.CPUUsage, a.CPUUsage) })
	}
}

// FormatMemory renders a byte count the way the listings show it, in whole MiB.
func FormatMemory(b uint64) string { return fmt.Sprintf("%d MB", b/1024/1024) }

// FormatCPU renders a cpu percentage with one decimal.
func FormatCPU(p float64) string { return fmt.Sprintf("%.1f%%", p) }
