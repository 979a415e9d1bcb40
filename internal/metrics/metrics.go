package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	snapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prokill",
			Name:      "snapshot_total",
			Help:      "Number of process table snapshots taken.",
		},
	)
	snapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "prokill",
			Name:      "snapshot_duration_seconds",
			Help:      "Time spent refreshing the process table and building records.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
	processes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "prokill",
			Name:      "processes",
			Help:      "Processes in the last snapshot, split by system classification.",
		}, []string{"system"},
	)
	killRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prokill",
			Name:      "kill_requests_total",
			Help:      "Termination attempts by signal mode and outcome kind.",
		}, []string{"mode", "outcome"},
	)
	policyDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prokill",
			Name:      "policy_denials_total",
			Help:      "Kill requests refused because the target is a protected process.",
		}, []string{"name"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{snapshots, snapshotDuration, processes, killRequests, policyDenials}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// already registered with this registerer: keep the existing one
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has succeeded.

// ObserveSnapshot records one snapshot of total processes, system among them.
func ObserveSnapshot(d time.Duration, total, system int) {
	if !regOK.Load() {
		return
	}
	snapshots.Inc()
	snapshotDuration.Observe(d.Seconds())
	processes.WithLabelValues("true").Set(float64(system))
	processes.WithLabelValues("false").Set(float64(total - system))
}

// Mode returns the mode label for a termination.
func Mode(forceful bool) string {
	if forceful {
		return "force_kill"
	}
	return "kill"
}

// IncKillRequest counts a termination attempt. outcome is "ok" or an error kind.
func IncKillRequest(mode, outcome string) {
	if regOK.Load() {
		killRequests.WithLabelValues(mode, outcome).Inc()
	}
}

func IncPolicyDenial(name string) {
	if regOK.Load() {
		policyDenials.WithLabelValues(name).Inc()
	}
}
