package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/loykin/prokill/internal/process"
	"github.com/prometheus/client_golang/prometheus"
)

// Sample is one observation of a process taken from a snapshot.
type Sample struct {
	PID       uint32    `json:"pid"`
	Name      string    `json:"name"`
	CPUUsage  float64   `json:"cpu_usage"`
	Memory    uint64    `json:"memory"`
	Timestamp time.Time `json:"timestamp"`
}

// sampleRing is a fixed-size circular buffer of samples.
type sampleRing struct {
	buf      []Sample
	startIdx int
	count    int
}

func (r *sampleRing) add(s Sample) {
	if r.count < len(r.buf) {
		r.buf[r.count] = s
		r.count++
		return
	}
	r.buf[r.startIdx] = s
	r.startIdx = (r.startIdx + 1) % len(r.buf)
}

// ordered returns the samples oldest first.
func (r *sampleRing) ordered() []Sample {
	out := make([]Sample, r.count)
	if r.count < len(r.buf) {
		copy(out, r.buf[:r.count])
		return out
	}
	n := copy(out, r.buf[r.startIdx:])
	copy(out[n:], r.buf[:r.startIdx])
	return out
}

// UsageConfig controls UsageCollector.
type UsageConfig struct {
	// Top is how many of the busiest processes get per-process gauges.
	Top int `mapstructure:"top"`
	// MaxHistory is the number of samples kept per pid.
	MaxHistory int `mapstructure:"max_history"`
}

// UsageCollector exports per-process CPU and memory gauges for the top
// processes of each snapshot and keeps a short sample history per pid.
// Series and history of processes that leave the top set are dropped.
// It is safe for concurrent use.
type UsageCollector struct {
	top        int
	maxHistory int

	mu      sync.RWMutex
	history map[uint32]*sampleRing
	labels  map[uint32][2]string

	cpuPercent  *prometheus.GaugeVec
	memoryBytes *prometheus.GaugeVec
}

func NewUsageCollector(cfg UsageConfig) *UsageCollector {
	top := cfg.Top
	if top <= 0 {
		top = 10
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 60
	}
	return &UsageCollector{
		top:        top,
		maxHistory: maxHistory,
		history:    make(map[uint32]*sampleRing),
		labels:     make(map[uint32][2]string),
		cpuPercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "prokill",
				Subsystem: "process",
				Name:      "cpu_percent",
				Help:      "CPU usage of the busiest processes in the last snapshot.",
			}, []string{"pid", "name"},
		),
		memoryBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "prokill",
				Subsystem: "process",
				Name:      "memory_bytes",
				Help:      "Resident memory of the busiest processes in the last snapshot.",
			}, []string{"pid", "name"},
		),
	}
}

// RegisterMetrics registers the per-process gauges with r.
func (c *UsageCollector) RegisterMetrics(r prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.cpuPercent, c.memoryBytes} {
		if err := r.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Observe takes the first Top records of a snapshot ordered by CPU.
func (c *UsageCollector) Observe(recs []process.Record, at time.Time) {
	busiest := make([]process.Record, len(recs))
	copy(busiest, recs)
	process.SortRecords(busiest, process.SortCPU)
	if len(busiest) > c.top {
		busiest = busiest[:c.top]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	active := make(map[uint32]struct{}, len(busiest))
	for _, r := range busiest {
		active[r.PID] = struct{}{}
		pid := strconv.FormatUint(uint64(r.PID), 10)
		if old, ok := c.labels[r.PID]; ok && old[1] != r.Name {
			// pid reused by another program
			c.dropLocked(r.PID)
		}
		c.labels[r.PID] = [2]string{pid, r.Name}
		c.cpuPercent.WithLabelValues(pid, r.Name).Set(r.CPUUsage)
		c.memoryBytes.WithLabelValues(pid, r.Name).Set(float64(r.Memory))

		ring, ok := c.history[r.PID]
		if !ok {
			ring = &sampleRing{buf: make([]Sample, c.maxHistory)}
			c.history[r.PID] = ring
		}
		ring.add(Sample{PID: r.PID, Name: r.Name, CPUUsage: r.CPUUsage, Memory: r.Memory, Timestamp: at})
	}

	for pid := range c.labels {
		if _, ok := active[pid]; !ok {
			c.dropLocked(pid)
		}
	}
}

func (c *UsageCollector) dropLocked(pid uint32) {
	if l, ok := c.labels[pid]; ok {
		c.cpuPercent.DeleteLabelValues(l[0], l[1])
		c.memoryBytes.DeleteLabelValues(l[0], l[1])
	}
	delete(c.labels, pid)
	delete(c.history, pid)
}

// History returns the samples for pid, oldest first.
func (c *UsageCollector) History(pid uint32) ([]Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ring, ok := c.history[pid]
	if !ok || ring.count == 0 {
		return nil, false
	}
	return ring.ordered(), true
}

// Latest returns the most recent sample for pid.
func (c *UsageCollector) Latest(pid uint32) (Sample, bool) {
	h, ok := c.History(pid)
	if !ok {
		return Sample{}, false
	}
	return h[len(h)-1], true
}
