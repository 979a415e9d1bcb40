package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/prokill/internal/auth"
	"github.com/loykin/prokill/internal/history"
	mng "github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/metrics"
	"github.com/loykin/prokill/internal/process"
)

// Router provides embeddable HTTP handlers over a Manager.
// Endpoints (basePath may be empty or start with '/'; no trailing slash):
//
//	GET  {basePath}/healthz
//	GET  {basePath}/processes               query: sort, threshold, q, limit
//	GET  {basePath}/processes/:pid
//	GET  {basePath}/processes/:pid/killable
//	GET  {basePath}/processes/:pid/samples
//	POST {basePath}/processes/:pid/kill     query: force=true
//	GET  {basePath}/history                 query: limit
//
// The Manager is not safe for concurrent use; every access goes through mu.
type Router struct {
	mu       sync.Mutex
	mgr      *mng.Manager
	basePath string

	auth      *auth.Middleware
	usage     *metrics.UsageCollector
	recent    history.Reader
	observers []mng.Observer
	log       *slog.Logger

	cache   []process.Record
	cacheAt time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithAuth requires bearer tokens checked by m.
func WithAuth(m *auth.Middleware) Option { return func(r *Router) { r.auth = m } }

// WithUsage feeds every background snapshot to u and serves its samples.
func WithUsage(u *metrics.UsageCollector) Option { return func(r *Router) { r.usage = u } }

// WithHistory serves GET /history from rd.
func WithHistory(rd history.Reader) Option { return func(r *Router) { r.recent = rd } }

// WithObserver is told about every termination the API performs.
func WithObserver(o mng.Observer) Option {
	return func(r *Router) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(r *Router) { r.log = l } }

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(mgr *mng.Manager, basePath string, opts ...Option) *Router {
	r := &Router{mgr: mgr, basePath: sanitizeBase(basePath), log: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	base := g.Group(r.basePath)
	base.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, gin.H{"ok": true}) })

	api := base.Group("", r.auth.GinAuth())
	read := r.auth.GinRequirePermission(auth.ResourceProcess, auth.ActionRead)
	kill := r.auth.GinRequirePermission(auth.ResourceProcess, auth.ActionKill)
	api.GET("/processes", read, r.handleList)
	api.GET("/processes/:pid", read, r.handleFind)
	api.GET("/processes/:pid/killable", read, r.handleKillable)
	api.GET("/processes/:pid/samples", read, r.handleSamples)
	api.POST("/processes/:pid/kill", kill, r.handleKill)
	api.GET("/history", read, r.handleHistory)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// A non-nil tc serves HTTPS with the certificates it resolves.
func NewServer(addr string, r *Router, tc *tls.Config) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		TLSConfig:         tc,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		var err error
		if tc != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("http server stopped", "addr", addr, "error", err)
		}
	}()
	return server
}

// Refresh takes a snapshot into the cache and records snapshot metrics.
func (r *Router) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked()
}

func (r *Router) refreshLocked() {
	start := time.Now()
	recs := r.mgr.Snapshot(process.SortCPU)
	r.cache = recs
	r.cacheAt = time.Now()

	system := 0
	for _, rec := range recs {
		if rec.IsSystem {
			system++
		}
	}
	metrics.ObserveSnapshot(time.Since(start), len(recs), system)
	if r.usage != nil {
		r.usage.Observe(recs, r.cacheAt)
	}
}

const defaultRefreshInterval = 2 * time.Second

// Run refreshes the cache every interval until ctx is done. Snapshots at a
// steady cadence keep CPU percentages comparable. A non-positive interval
// means 2s.
func (r *Router) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	r.Refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh()
		}
	}
}

// --- Handlers ---

type listResp struct {
	Processes []process.Record `json:"processes"`
	TakenAt   time.Time        `json:"taken_at"`
}

func (r *Router) handleList(c *gin.Context) {
	sortBy, err := process.ParseSortKey(c.Query("sort"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	f := process.Filter{Query: c.Query("q")}
	if s := c.Query("threshold"); s != "" {
		if f.Threshold, err = strconv.ParseFloat(s, 64); err != nil || f.Threshold < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid threshold"})
			return
		}
	}
	if s := c.Query("limit"); s != "" {
		if f.Limit, err = strconv.Atoi(s); err != nil || f.Limit < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
	}

	r.mu.Lock()
	if r.cache == nil {
		r.refreshLocked()
	}
	recs := make([]process.Record, len(r.cache))
	copy(recs, r.cache)
	at := r.cacheAt
	r.mu.Unlock()

	process.SortRecords(recs, sortBy)
	writeJSON(c, http.StatusOK, listResp{Processes: f.Apply(recs), TakenAt: at})
}

func (r *Router) handleFind(c *gin.Context) {
	pid, ok := parsePID(c)
	if !ok {
		return
	}
	r.mu.Lock()
	rec, found := r.mgr.Find(pid)
	r.mu.Unlock()
	if !found {
		writeError(c, mng.ErrNotFound)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

type killableResp struct {
	PID      uint32 `json:"pid"`
	Name     string `json:"name"`
	Killable bool   `json:"killable"`
	Reason   string `json:"reason,omitempty"`
}

func (r *Router) handleKillable(c *gin.Context) {
	pid, ok := parsePID(c)
	if !ok {
		return
	}
	r.mu.Lock()
	rec, found := r.mgr.Find(pid)
	var err error
	if found {
		err = r.mgr.CanKill(rec)
	}
	r.mu.Unlock()
	if !found {
		writeError(c, mng.ErrNotFound)
		return
	}
	resp := killableResp{PID: rec.PID, Name: rec.Name, Killable: err == nil}
	if err != nil {
		resp.Reason = mng.Rejection(err).Message
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleSamples(c *gin.Context) {
	pid, ok := parsePID(c)
	if !ok {
		return
	}
	if r.usage == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "usage sampling is disabled"})
		return
	}
	samples, found := r.usage.History(pid)
	if !found {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no samples for pid " + strconv.FormatUint(uint64(pid), 10)})
		return
	}
	writeJSON(c, http.StatusOK, samples)
}

type killResp struct {
	OK     bool           `json:"ok"`
	Record process.Record `json:"record"`
	Notice mng.Notice     `json:"notice"`
}

func (r *Router) handleKill(c *gin.Context) {
	pid, ok := parsePID(c)
	if !ok {
		return
	}
	forceful, err := parseBool(c.Query("force"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid force flag"})
		return
	}
	mode := metrics.Mode(forceful)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, found := r.mgr.Find(pid)
	if !found {
		metrics.IncKillRequest(mode, mng.KindNotFound.String())
		writeError(c, mng.ErrNotFound)
		return
	}
	if err := r.mgr.CanKill(rec); err != nil {
		metrics.IncKillRequest(mode, mng.KindOf(err).String())
		metrics.IncPolicyDenial(rec.Name)
		r.log.Warn("kill refused", "pid", rec.PID, "name", rec.Name, "reason", err)
		writeError(c, err)
		return
	}

	err = r.mgr.Terminate(rec.PID, forceful)
	for _, o := range r.observers {
		o(rec, forceful, err)
	}
	outcome := history.OutcomeOK
	if err != nil {
		outcome = mng.KindOf(err).String()
	}
	metrics.IncKillRequest(mode, outcome)
	r.log.Info("kill requested", "pid", rec.PID, "name", rec.Name, "mode", mode, "outcome", outcome)
	r.refreshLocked()

	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, killResp{OK: true, Record: rec, Notice: mng.Outcome(rec, forceful, nil)})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.recent == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "history is not readable"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
		limit = n
	}
	events, err := r.recent.Recent(c.Request.Context(), limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	writeJSON(c, http.StatusOK, events)
}
