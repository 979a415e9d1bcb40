package prokill

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/prokill/internal/config"
	"github.com/loykin/prokill/internal/history"
	"github.com/loykin/prokill/internal/history/factory"
	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/metrics"
	"github.com/loykin/prokill/internal/policy"
	"github.com/loykin/prokill/internal/process"
	iapi "github.com/loykin/prokill/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = process.Record

type SortKey = process.SortKey

type Filter = process.Filter

type Signal = process.Signal

type Error = manager.Error

type ErrorKind = manager.Kind

type Notice = manager.Notice

type Session = manager.Session

type Config = cfg.Config

type HistorySink = history.Sink

type HistoryEvent = history.Event

const (
	SortCPU    = process.SortCPU
	SortMemory = process.SortMemory
	SortPID    = process.SortPID
	SortName   = process.SortName
)

const (
	KindNotFound         = manager.KindNotFound
	KindPermissionDenied = manager.KindPermissionDenied
	KindProtected        = manager.KindProtected
	KindSignalFailed     = manager.KindSignalFailed
	KindUnknown          = manager.KindUnknown
)

var (
	ErrNotFound         = manager.ErrNotFound
	ErrPermissionDenied = manager.ErrPermissionDenied
	ErrProtected        = manager.ErrProtected
	ErrSignalFailed     = manager.ErrSignalFailed
)

// KindOf reports the kind of an error returned by Manager.
func KindOf(err error) ErrorKind { return manager.KindOf(err) }

func ParseSortKey(s string) (SortKey, error) { return process.ParseSortKey(s) }

// Manager is a facade over internal/manager.Manager that serializes calls,
// so one Manager can be shared by goroutines of an embedding program.
type Manager struct {
	mu    sync.Mutex
	inner *manager.Manager
}

// New reads the live OS process table. extraProtected names processes that
// may never be killed in addition to the built-in critical set.
func New(extraProtected ...string) *Manager {
	return &Manager{inner: manager.NewSystem(policy.New(extraProtected))}
}

func (m *Manager) Snapshot(sortBy SortKey) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inner.Snapshot(sortBy)
}

func (m *Manager) List(sortBy SortKey, f Filter) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inner.List(sortBy, f)
}

func (m *Manager) Find(pid uint32) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inner.Find(pid)
}

func (m *Manager) CanKill(rec Record) error { return m.inner.CanKill(rec) }

// Terminate signals pid without consulting the protection policy.
func (m *Manager) Terminate(pid uint32, forceful bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inner.Terminate(pid, forceful)
}

// Kill looks pid up, refuses protected processes and then terminates it.
func (m *Manager) Kill(pid uint32, forceful bool) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.inner.Find(pid)
	if !ok {
		return Record{}, ErrNotFound
	}
	if err := m.inner.CanKill(rec); err != nil {
		return rec, err
	}
	return rec, m.inner.Terminate(pid, forceful)
}

// NewSession starts an interactive kill flow on a private Manager over the
// live process table. Sessions are single-user.
func NewSession(sortBy SortKey, extraProtected ...string) *Session {
	return manager.NewSession(manager.NewSystem(policy.New(extraProtected)), sortBy)
}

func LoadConfig(path string, envFiles ...string) (*Config, error) {
	return cfg.Load(path, envFiles...)
}

// NewHistorySink opens a history sink from a DSN such as
// "sqlite:///var/lib/prokill/history.db" or "postgres://...".
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewHTTPServer starts an HTTP server exposing the process API over a
// dedicated Manager. The snapshot cache is refreshed every interval
// (2s when interval is not positive) until the server stops, whether by
// Shutdown or because it could not listen.
func NewHTTPServer(addr, basePath string, interval time.Duration, extraProtected ...string) *http.Server {
	srv, _ := newHTTPServer(addr, basePath, interval, extraProtected...)
	return srv
}

// newHTTPServer is NewHTTPServer that also returns a channel closed once the
// refresh loop has been told to stop.
func newHTTPServer(addr, basePath string, interval time.Duration, extraProtected ...string) (*http.Server, <-chan struct{}) {
	if interval <= 0 {
		interval = cfg.DefaultRefreshInterval
	}
	r := iapi.NewRouter(manager.NewSystem(policy.New(extraProtected)), basePath)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx, interval)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		defer cancel()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", "addr", addr, "error", err)
		}
	}()
	return srv, ctx.Done()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics serves /metrics from the default registry on addr in the
// caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
