package prokill

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestManagerFacadeSeesSelf(t *testing.T) {
	m := New("sshd")
	pid := uint32(os.Getpid())

	rec, ok := m.Find(pid)
	if !ok {
		t.Fatalf("own pid %d not found", pid)
	}
	if rec.Name == "" {
		t.Fatalf("empty name for own process: %+v", rec)
	}
	if err := m.CanKill(rec); err != nil {
		t.Fatalf("own process should be killable: %v", err)
	}

	all := m.Snapshot(SortPID)
	if len(all) == 0 {
		t.Fatal("empty snapshot")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].PID > all[i].PID {
			t.Fatalf("snapshot not sorted by pid at %d", i)
		}
	}

	limited := m.List(SortCPU, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("limit 1 returned %d rows", len(limited))
	}
}

func TestExtraProtectedRefused(t *testing.T) {
	m := New()
	rec, ok := m.Find(uint32(os.Getpid()))
	if !ok {
		t.Skip("own process not visible")
	}
	guarded := New(rec.Name)
	err := guarded.CanKill(rec)
	if !errors.Is(err, ErrProtected) || KindOf(err) != KindProtected {
		t.Fatalf("expected protected error, got %v", err)
	}
	if _, err := guarded.Kill(rec.PID, true); KindOf(err) != KindProtected {
		t.Fatalf("kill of protected process: %v", err)
	}
	if _, err := guarded.Kill(1<<31-1, false); KindOf(err) != KindNotFound {
		t.Fatalf("kill of missing pid: %v", err)
	}
}

func TestSessionFacade(t *testing.T) {
	s := NewSession(SortMemory)
	if s.Sort() != SortMemory {
		t.Fatalf("sort = %s", s.Sort())
	}
	if len(s.Refresh()) == 0 {
		t.Fatal("session refresh returned nothing")
	}
	if _, err := ParseSortKey("uptime"); err == nil {
		t.Fatal("expected error for unknown sort key")
	}
}

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "prokill.toml")
	body := `
limit = 25
sort = "memory"

[policy]
extra_protected = ["postgres"]
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Limit != 25 || c.SortKey() != SortMemory {
		t.Fatalf("unexpected config: limit=%d sort=%s", c.Limit, c.Sort)
	}
	if len(c.Policy.ExtraProtected) != 1 || c.Policy.ExtraProtected[0] != "postgres" {
		t.Fatalf("extra_protected = %v", c.Policy.ExtraProtected)
	}
}

func TestHistorySinkFacade(t *testing.T) {
	sink, err := NewHistorySink(filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("NewHistorySink: %v", err)
	}
	if err := sink.Send(context.Background(), HistoryEvent{Type: "kill", PID: 9, Name: "x", Outcome: "ok", OccurredAt: time.Now()}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := NewHistorySink("kafka://broker"); err == nil {
		t.Fatal("expected unsupported DSN error")
	}
}

func TestMetricsHelpers(t *testing.T) {
	if err := RegisterMetricsDefault(); err != nil {
		t.Fatalf("RegisterMetricsDefault: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("metrics handler status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "prokill_snapshot_total") {
		t.Fatalf("metrics output missing prokill series: %s", rr.Body.String())
	}
}

func TestNewHTTPServerDefaultsInterval(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	srv, stopped := newHTTPServer(addr, "", 0)
	waitUp(t, "http://"+addr+"/processes?limit=1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop still running after Shutdown")
	}
}

func TestNewHTTPServerListenFailureStopsRefresh(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()

	_, stopped := newHTTPServer(l.Addr().String(), "/api", time.Second)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop still running after listen failure")
	}
}

func waitUp(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status %d", resp.StatusCode)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewHTTPServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	srv := NewHTTPServer(addr, "/api", time.Second)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	waitUp(t, "http://"+addr+"/api/processes?limit=3")
}
