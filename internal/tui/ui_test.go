package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/process"
)

type fakeTable struct {
	mu      sync.Mutex
	entries []process.Entry
}

func (t *fakeTable) Refresh() {}

func (t *fakeTable) Entries() []process.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]process.Entry(nil), t.entries...)
}

func (t *fakeTable) remove(pid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.PID == pid {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

type fakeSignaler struct {
	table *fakeTable
	sent  map[uint32]process.Signal
}

func (s *fakeSignaler) Signal(pid uint32, sig process.Signal) error {
	s.sent[pid] = sig
	s.table.remove(pid)
	return nil
}

func newTestUI(t *testing.T, opts Options) (*UI, *fakeSignaler) {
	t.Helper()
	tbl := &fakeTable{entries: []process.Entry{
		{PID: 1, Name: "init", CPU: 0.1, Memory: 4 << 20, Status: process.StatusSleeping},
		{PID: 220, Name: "cron", CPU: 0.3, Memory: 2 << 20, Status: process.StatusSleeping},
		{PID: 3100, Name: "vim", CPU: 1.5, Memory: 30 << 20, Status: process.StatusSleeping},
		{PID: 4200, Name: "cargo", CPU: 95, Memory: 800 << 20, Status: process.StatusRunning},
		{PID: 4300, Name: "rustc", CPU: 60, Memory: 1200 << 20, Status: process.StatusRunning},
	}}
	sig := &fakeSignaler{table: tbl, sent: map[uint32]process.Signal{}}
	mgr := manager.New(process.NewProvider(tbl, nil), manager.WithSignaler(sig))

	ui := New(manager.NewSession(mgr, process.SortCPU), opts)
	ui.mu.Lock()
	ui.session.Refresh()
	ui.renderLocked()
	ui.mu.Unlock()
	ui.app.SetFocus(ui.table)
	return ui, sig
}

func key(r rune) *tcell.EventKey { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

func names(ui *UI) []string {
	var out []string
	for row := 1; row < ui.table.GetRowCount(); row++ {
		out = append(out, ui.table.GetCell(row, 1).Text)
	}
	return out
}

func selectPID(t *testing.T, ui *UI, pid uint32) {
	t.Helper()
	for row := 1; row < ui.table.GetRowCount(); row++ {
		if ref, _ := ui.table.GetCell(row, 1).GetReference().(uint32); ref == pid {
			ui.table.Select(row, 0)
			if got := ui.selected.Load(); got != pid {
				t.Fatalf("selected = %d, want %d", got, pid)
			}
			return
		}
	}
	t.Fatalf("pid %d not shown", pid)
}

func statusText(ui *UI) string { return ui.status.GetText(true) }

func TestRenderLimitsRowsAndMarksSystem(t *testing.T) {
	ui, _ := newTestUI(t, Options{Limit: 3})

	got := names(ui)
	want := []string{"cargo", "rustc", "vim"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	if h := ui.table.GetCell(0, 3).Text; h != "CPU%" {
		t.Fatalf("header = %q", h)
	}
	if mem := ui.table.GetCell(1, 4).Text; mem != "800 MB" {
		t.Fatalf("memory cell = %q", mem)
	}

	if res := ui.handleKey(key('a')); res != nil {
		t.Fatalf("expected 'a' to be consumed")
	}
	if n := len(names(ui)); n != 5 {
		t.Fatalf("show all rows = %d, want 5", n)
	}
	for row := 1; row < ui.table.GetRowCount(); row++ {
		name := ui.table.GetCell(row, 1).Text
		lock := ui.table.GetCell(row, 0).Text
		if (name == "init" || name == "cron") != (lock != " ") {
			t.Fatalf("lock marker for %s = %q", name, lock)
		}
	}
}

func TestSortKeys(t *testing.T) {
	ui, _ := newTestUI(t, Options{})

	ui.handleKey(key('n'))
	if got := names(ui); got[0] != "cargo" || got[len(got)-1] != "vim" {
		t.Fatalf("name order = %v", got)
	}
	ui.handleKey(key('p'))
	if got := names(ui); got[0] != "init" {
		t.Fatalf("pid order = %v", got)
	}
	ui.handleKey(key('m'))
	if got := names(ui); got[0] != "rustc" {
		t.Fatalf("memory order = %v", got)
	}
	if ui.session.Sort() != process.SortMemory {
		t.Fatalf("session sort = %s", ui.session.Sort())
	}
	if !strings.Contains(ui.table.GetTitle(), "sort:memory") {
		t.Fatalf("title = %q", ui.table.GetTitle())
	}
}

func TestHighCPUAndSearch(t *testing.T) {
	ui, _ := newTestUI(t, Options{CPUThreshold: 50})

	ui.handleKey(key('h'))
	if got := names(ui); strings.Join(got, ",") != "cargo,rustc" {
		t.Fatalf("high cpu rows = %v", got)
	}
	ui.handleKey(key('h'))

	ui.setQuery("VI")
	if got := names(ui); strings.Join(got, ",") != "vim" {
		t.Fatalf("search rows = %v", got)
	}
	ui.setQuery("42")
	if got := names(ui); strings.Join(got, ",") != "cargo" {
		t.Fatalf("pid search rows = %v", got)
	}
	ui.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if n := len(names(ui)); n != 5 {
		t.Fatalf("rows after clearing search = %d", n)
	}
}

func TestSearchPromptOwnsKeyboard(t *testing.T) {
	ui, _ := newTestUI(t, Options{})

	if res := ui.handleKey(key('/')); res != nil {
		t.Fatalf("expected '/' to be consumed")
	}
	if _, ok := ui.app.GetFocus().(*tview.InputField); !ok {
		t.Fatalf("expected search input focus, got %T", ui.app.GetFocus())
	}
	k := key('k')
	if res := ui.handleKey(k); res != k {
		t.Fatalf("expected keys to reach the prompt while it is open")
	}

	ui.pages.RemovePage(searchPageName)
	ui.app.SetFocus(ui.table)
	if res := ui.handleKey(key('x')); res == nil {
		t.Fatalf("expected unknown rune to pass through")
	}
}

func TestKillConfirmed(t *testing.T) {
	ui, sig := newTestUI(t, Options{})
	selectPID(t, ui, 3100)

	ui.handleKey(key('k'))
	if !ui.pages.HasPage(confirmPageName) {
		t.Fatalf("expected confirmation modal")
	}
	if ui.session.State() != manager.StateAwaitingConfirmation {
		t.Fatalf("state = %s", ui.session.State())
	}
	if len(sig.sent) != 0 {
		t.Fatalf("signal sent before confirmation")
	}

	ui.pages.RemovePage(confirmPageName)
	ui.answer(true)
	if sig.sent[3100] != process.SignalTerminate {
		t.Fatalf("sent = %v", sig.sent)
	}
	if s := statusText(ui); !strings.Contains(s, "Process vim (3100) terminated") {
		t.Fatalf("status = %q", s)
	}
	for _, n := range names(ui) {
		if n == "vim" {
			t.Fatalf("killed process still listed")
		}
	}
}

func TestForceKillCancelled(t *testing.T) {
	ui, sig := newTestUI(t, Options{})
	selectPID(t, ui, 4300)

	ui.handleKey(key('K'))
	p, ok := ui.session.Pending()
	if !ok || !p.Forceful || p.Record.PID != 4300 {
		t.Fatalf("pending = %+v %v", p, ok)
	}
	if !strings.Contains(confirmText(p), "Force kill rustc (PID 4300)") {
		t.Fatalf("confirm text = %q", confirmText(p))
	}

	ui.pages.RemovePage(confirmPageName)
	ui.answer(false)
	if len(sig.sent) != 0 {
		t.Fatalf("cancel must not signal: %v", sig.sent)
	}
	if ui.session.State() != manager.StateIdle {
		t.Fatalf("state = %s", ui.session.State())
	}
}

func TestKillProtectedShowsRejection(t *testing.T) {
	ui, sig := newTestUI(t, Options{})
	ui.handleKey(key('a'))
	selectPID(t, ui, 1)

	ui.handleKey(key('K'))
	if ui.pages.HasPage(confirmPageName) {
		t.Fatalf("protected process must not reach confirmation")
	}
	if len(sig.sent) != 0 {
		t.Fatalf("protected process signalled")
	}
	if s := statusText(ui); !strings.Contains(s, "Cannot kill protected system process: init") {
		t.Fatalf("status = %q", s)
	}
}

func TestToastExpires(t *testing.T) {
	ui, _ := newTestUI(t, Options{})
	now := time.Unix(1_700_000_000, 0)
	ui.now = func() time.Time { return now }

	ui.mu.Lock()
	ui.setToastLocked(manager.Notice{Message: "hello"})
	ui.renderStatusLocked()
	ui.mu.Unlock()
	if !strings.Contains(statusText(ui), "hello") {
		t.Fatalf("toast not shown")
	}

	now = now.Add(toastTTL + time.Second)
	ui.mu.Lock()
	ui.renderStatusLocked()
	ui.mu.Unlock()
	if strings.Contains(statusText(ui), "hello") {
		t.Fatalf("toast still shown after ttl")
	}
}
