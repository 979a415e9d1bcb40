package process

import (
	"strconv"
	"strings"
)

// Filter narrows an already sorted snapshot. Zero values disable each step.
type Filter struct {
	// Threshold keeps records whose CPU usage is strictly above it.
	Threshold float64 `json:"threshold,omitempty"`
	// Query keeps records whose name contains it (case-insensitive)
	// or whose decimal pid contains it.
	Query string `json:"query,omitempty"`
	// Limit truncates the result after the other steps.
	Limit int `json:"limit,omitempty"`
}

// Apply returns the matching records in their original order.
// recs is not modified.
func (f Filter) Apply(recs []Record) []Record {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if f.Threshold > 0 && !(r.CPUUsage > f.Threshold) {
			continue
		}
		if q != "" && !matchQuery(r, q) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func matchQuery(r Record, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(r.Name), lowerQuery) {
		return true
	}
	return strings.Contains(strconv.FormatUint(uint64(r.PID), 10), lowerQuery)
}
