package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/process"
)

const (
	tableTitle      = "Processes"
	mainPageName    = "main"
	searchPageName  = "search"
	confirmPageName = "confirm"
	toastTTL        = 4 * time.Second
	helpText        = "[::b]c/m/p/n[::-] sort  [::b]a[::-] all  [::b]h[::-] high cpu  [::b]/[::-] search  " +
		"[::b]k/K[::-] kill/force  [::b]r[::-] refresh  [::b]q[::-] quit"
)

// Options configures the view.
type Options struct {
	RefreshInterval time.Duration
	// Limit caps the rows shown while ShowAll is off.
	Limit   int
	ShowAll bool
	// CPUThreshold is used by the high cpu view.
	CPUThreshold float64
}

// UI is the interactive process table. Every kill goes through a
// manager.Session, so the policy check and confirmation always apply.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	status *tview.TextView

	opts Options

	// mu guards session and the view state below.
	mu       sync.Mutex
	session  *manager.Session
	showAll  bool
	highCPU  bool
	query    string
	visible  []process.Record
	toast    manager.Notice
	toastAt  time.Time
	now      func() time.Time

	// selected is the pid under the cursor. It is written by the table's
	// selection callback, which tview may invoke while mu is held.
	selected atomic.Uint32

	cancelMu sync.Mutex
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// New builds the UI around session. It does not take a snapshot until Run.
func New(session *manager.Session, opts Options) *UI {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 2 * time.Second
	}
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	status := tview.NewTextView().SetDynamicColors(true).SetWrap(false)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(status, 2, 0, false)

	pages := tview.NewPages().AddPage(mainPageName, flex, true, true)

	u := &UI{
		app:     app,
		pages:   pages,
		table:   table,
		status:  status,
		opts:    opts,
		session: session,
		showAll: opts.ShowAll,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	u.session.SetFilter(u.filterLocked())

	table.SetSelectionChangedFunc(func(row, _ int) { u.syncSelection(row) })

	app.SetRoot(pages, true)
	app.SetInputCapture(u.handleKey)
	return u
}

// Done is closed when the UI stops.
func (u *UI) Done() <-chan struct{} { return u.done }

// Run takes the first snapshot and drives the application until q is
// pressed or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.mu.Lock()
	u.session.Refresh()
	u.renderLocked()
	u.mu.Unlock()

	go u.refreshLoop(ctx)
	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()
	cancel()
	u.Stop()
	return err
}

// Stop terminates the application loop.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(u.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.app.QueueUpdateDraw(func() {
				u.mu.Lock()
				defer u.mu.Unlock()
				// a pending confirmation keeps its snapshot until answered
				if u.session.State() == manager.StateAwaitingConfirmation {
					u.renderStatusLocked()
					return
				}
				u.session.Refresh()
				u.renderLocked()
			})
		}
	}
}

// overlayActive reports whether a prompt or modal owns the keyboard.
func (u *UI) overlayActive() bool {
	return u.pages.HasPage(searchPageName) || u.pages.HasPage(confirmPageName)
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if u.overlayActive() {
		return event
	}
	switch event.Key() {
	case tcell.KeyCtrlC:
		go u.Stop()
		return nil
	case tcell.KeyEscape:
		u.setQuery("")
		return nil
	case tcell.KeyRune:
	default:
		return event
	}

	switch event.Rune() {
	case 'q', 'Q':
		go u.Stop()
	case 'c':
		u.setSort(process.SortCPU)
	case 'm':
		u.setSort(process.SortMemory)
	case 'p':
		u.setSort(process.SortPID)
	case 'n':
		u.setSort(process.SortName)
	case 'a':
		u.mu.Lock()
		u.showAll = !u.showAll
		u.applyFilterLocked()
		u.mu.Unlock()
	case 'h':
		u.mu.Lock()
		u.highCPU = !u.highCPU
		u.applyFilterLocked()
		u.mu.Unlock()
	case 'r':
		u.mu.Lock()
		u.session.Refresh()
		u.renderLocked()
		u.mu.Unlock()
	case '/':
		u.showSearchPrompt()
	case 'k':
		u.requestKill(false)
	case 'K':
		u.requestKill(true)
	default:
		return event
	}
	return nil
}

func (u *UI) setSort(k process.SortKey) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session.SetSort(k)
	u.renderLocked()
}

func (u *UI) setQuery(q string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.query = strings.TrimSpace(q)
	u.applyFilterLocked()
}

func (u *UI) filterLocked() process.Filter {
	f := process.Filter{Query: u.query}
	if u.highCPU {
		f.Threshold = u.opts.CPUThreshold
	}
	if !u.showAll {
		f.Limit = u.opts.Limit
	}
	return f
}

func (u *UI) applyFilterLocked() {
	u.session.SetFilter(u.filterLocked())
	u.renderLocked()
}

func (u *UI) showSearchPrompt() {
	u.mu.Lock()
	current := u.query
	u.mu.Unlock()

	input := tview.NewInputField().
		SetLabel("Name or PID: ").
		SetText(current).
		SetFieldWidth(40)

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			u.setQuery(input.GetText())
		}
		u.pages.RemovePage(searchPageName)
		u.app.SetFocus(u.table)
	})

	form := tview.NewForm().AddFormItem(input)
	form.SetBorder(true).SetTitle("Search")

	grid := tview.NewGrid().
		SetColumns(0, 60, 0).
		SetRows(0, 5, 0).
		AddItem(form, 1, 1, 1, 1, 0, 0, true)

	u.pages.AddPage(searchPageName, grid, true, true)
	u.app.SetFocus(input)
}

func (u *UI) requestKill(forceful bool) {
	pid := u.selected.Load()
	if pid == 0 {
		return
	}
	u.mu.Lock()
	if err := u.session.Request(pid, forceful); err != nil {
		u.setToastLocked(manager.Rejection(err))
		u.renderStatusLocked()
		u.mu.Unlock()
		return
	}
	p, _ := u.session.Pending()
	u.mu.Unlock()

	u.showConfirm(p)
}

func confirmText(p manager.Pending) string {
	if p.Forceful {
		return fmt.Sprintf("Force kill %s (PID %d)?\nSIGKILL cannot be caught; unsaved work will be lost.",
			p.Record.Name, p.Record.PID)
	}
	return fmt.Sprintf("Kill %s (PID %d)?\nSIGTERM asks the process to exit.", p.Record.Name, p.Record.PID)
}

func (u *UI) showConfirm(p manager.Pending) {
	label := "Kill"
	if p.Forceful {
		label = "Force Kill"
	}
	modal := tview.NewModal().
		SetText(confirmText(p)).
		AddButtons([]string{label, "Cancel"}).
		SetDoneFunc(func(buttonIndex int, _ string) {
			u.pages.RemovePage(confirmPageName)
			u.app.SetFocus(u.table)
			u.answer(buttonIndex == 0)
		})
	u.pages.AddPage(confirmPageName, modal, true, true)
}

// answer resolves the pending confirmation.
func (u *UI) answer(yes bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !yes {
		u.session.Cancel()
		u.renderStatusLocked()
		return
	}
	if n, ok := u.session.Confirm(); ok {
		u.setToastLocked(n)
	}
	u.renderLocked()
}

func (u *UI) setToastLocked(n manager.Notice) {
	u.toast = n
	u.toastAt = u.now()
}

func (u *UI) renderLocked() {
	u.renderTableLocked()
	u.renderStatusLocked()
}

func (u *UI) renderTableLocked() {
	u.table.Clear()

	headers := []string{"", "NAME", "PID", "CPU%", "MEM", "STATUS"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		if col >= 2 && col <= 4 {
			cell.SetAlign(tview.AlignRight)
		}
		u.table.SetCell(0, col, cell)
	}

	u.visible = u.session.Records()
	u.table.SetTitle(u.titleLocked())

	for row, r := range u.visible {
		lock := " "
		if r.IsSystem {
			lock = "🔒"
		}
		values := []string{
			lock,
			r.Name,
			strconv.FormatUint(uint64(r.PID), 10),
			process.FormatCPU(r.CPUUsage),
			process.FormatMemory(r.Memory),
			r.Status,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col >= 2 && col <= 4 {
				cell.SetAlign(tview.AlignRight)
			}
			if col == 1 {
				cell.SetExpansion(1).SetReference(r.PID)
			}
			if r.CPUUsage > u.opts.CPUThreshold && u.opts.CPUThreshold > 0 {
				cell.SetTextColor(tcell.ColorOrange)
			}
			u.table.SetCell(row+1, col, cell)
		}
	}

	u.ensureSelectionLocked()
}

func (u *UI) titleLocked() string {
	parts := []string{fmt.Sprintf("%s (%d) sort:%s", tableTitle, len(u.visible), u.session.Sort())}
	if u.highCPU {
		parts = append(parts, fmt.Sprintf("cpu>%g%%", u.opts.CPUThreshold))
	}
	if u.query != "" {
		parts = append(parts, fmt.Sprintf("/%s/", u.query))
	}
	if u.showAll {
		parts = append(parts, "all")
	}
	return " " + strings.Join(parts, " ") + " "
}

func (u *UI) renderStatusLocked() {
	u.status.Clear()
	line := ""
	if u.toast.Message != "" && u.now().Sub(u.toastAt) < toastTTL {
		color := "green"
		if u.toast.IsError {
			color = "red"
		}
		line = fmt.Sprintf("[%s]%s[-]", color, tview.Escape(u.toast.Message))
	}
	_, _ = fmt.Fprintf(u.status, "%s\n%s", line, helpText)
}

// ensureSelectionLocked keeps the cursor on the same pid across refreshes.
func (u *UI) ensureSelectionLocked() {
	if len(u.visible) == 0 {
		u.selected.Store(0)
		u.table.Select(0, 0)
		return
	}
	idx := 0
	current := u.selected.Load()
	for i, r := range u.visible {
		if r.PID == current {
			idx = i
			break
		}
	}
	u.selected.Store(u.visible[idx].PID)
	u.table.Select(idx+1, 0)
}

// syncSelection reads the pid from the row's name cell rather than from
// visible, so it needs no lock.
func (u *UI) syncSelection(row int) {
	if row <= 0 {
		return
	}
	if cell := u.table.GetCell(row, 1); cell != nil {
		if pid, ok := cell.GetReference().(uint32); ok {
			u.selected.Store(pid)
		}
	}
}
