package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/prokill/internal/history"
	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/process"
	"github.com/loykin/prokill/pkg/client"
)

const exitPollInterval = 250 * time.Millisecond

// errCancelled is returned when the user declines a confirmation.
var errCancelled = errors.New("cancelled")

func addRemoteFlags(cmd *cobra.Command, f *RemoteFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "remote API URL (e.g. http://host:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	cmd.Flags().StringVar(&f.Token, "token", "", "bearer token for the remote API")
	cmd.Flags().StringVar(&f.CACert, "ca-cert", "", "CA certificate for an HTTPS API")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip TLS verification")
}

func pidArg(args []string, dst *uint32) error {
	if len(args) == 0 {
		return nil
	}
	pid, err := parsePID(args[0])
	if err != nil {
		return err
	}
	*dst = pid
	return nil
}

// createListCommand creates the list subcommand
func createListCommand(c *command) *cobra.Command {
	f := &ListFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List running processes",
		Long: `List running processes sorted by cpu, memory, pid or name.
Only the first 'limit' rows are shown unless --all is given.

Examples:
  prokill list
  prokill list --sort=name --all
  prokill list --high                  # cpu above cpu_threshold
  prokill list --threshold=20 --query=java
  prokill list --json --api-url=http://remote:8080/api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.List(*f)
		},
	}
	cmd.Flags().StringVar(&f.Sort, "sort", "", "sort key: cpu, memory, pid, name (default from config)")
	cmd.Flags().BoolVar(&f.All, "all", false, "show every process")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows (default from config)")
	cmd.Flags().BoolVar(&f.High, "high", false, "only processes above cpu_threshold")
	cmd.Flags().Float64Var(&f.Threshold, "threshold", 0, "only processes above this cpu percentage")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "name or pid substring")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON")
	cmd.Flags().DurationVar(&f.Sample, "sample", 500*time.Millisecond, "cpu sampling window before the snapshot")
	addRemoteFlags(cmd, &f.Remote)
	return cmd
}

// createShowCommand creates the show subcommand
func createShowCommand(c *command) *cobra.Command {
	f := &ShowFlags{}
	cmd := &cobra.Command{
		Use:   "show <pid>",
		Short: "Show one process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pidArg(args, &f.PID); err != nil {
				return err
			}
			return c.Show(*f)
		},
	}
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON")
	addRemoteFlags(cmd, &f.Remote)
	return cmd
}

// createCheckCommand creates the check subcommand
func createCheckCommand(c *command) *cobra.Command {
	f := &CheckFlags{}
	cmd := &cobra.Command{
		Use:   "check <pid>",
		Short: "Report whether a process may be killed",
		Long: `Report whether the protection policy allows killing a process.
Exits non-zero when the process is protected or does not exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pidArg(args, &f.PID); err != nil {
				return err
			}
			return c.Check(*f)
		},
	}
	addRemoteFlags(cmd, &f.Remote)
	return cmd
}

// createKillCommand creates the kill subcommand
func createKillCommand(c *command) *cobra.Command {
	f := &KillFlags{}
	cmd := &cobra.Command{
		Use:   "kill [pid]",
		Short: "Terminate a process after confirmation",
		Long: `Send SIGTERM (or SIGKILL with --force) to a process.
Critical system processes are refused. Unless --yes is given the
target is shown and a y/N confirmation is required.

Examples:
  prokill kill 4242
  prokill kill --force 4242
  prokill kill --pidfile=/run/myapp.pid --yes
  prokill kill 4242 --api-url=http://remote:8080/api --token=$TOKEN`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pidArg(args, &f.PID); err != nil {
				return err
			}
			return c.Kill(*f)
		},
	}
	cmd.Flags().StringVar(&f.PIDFile, "pidfile", "", "read the pid from this file")
	cmd.Flags().BoolVarP(&f.Force, "force", "f", false, "send SIGKILL instead of SIGTERM")
	cmd.Flags().BoolVarP(&f.Yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().DurationVar(&f.Wait, "wait", 2*time.Second, "how long to wait for the process to exit")
	addRemoteFlags(cmd, &f.Remote)
	return cmd
}

// createHistoryCommand creates the history subcommand
func createHistoryCommand(c *command) *cobra.Command {
	f := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent kill requests",
		Long: `Show recent kill requests from the configured history sink,
or from a remote API with --api-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.History(*f)
		},
	}
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "maximum events")
	cmd.Flags().BoolVar(&f.JSON, "json", false, "print JSON")
	addRemoteFlags(cmd, &f.Remote)
	return cmd
}

func (c *command) listFilter(f ListFlags) process.Filter {
	filter := c.config().ListFilter(f.High)
	if f.Threshold > 0 {
		filter.Threshold = f.Threshold
	}
	if f.All {
		filter.Limit = 0
	} else if f.Limit > 0 {
		filter.Limit = f.Limit
	}
	filter.Query = f.Query
	return filter
}

// List prints the filtered snapshot.
func (c *command) List(f ListFlags) error {
	sortName := f.Sort
	if sortName == "" {
		sortName = c.config().Sort
	}
	sortBy, err := process.ParseSortKey(sortName)
	if err != nil {
		return err
	}
	filter := c.listFilter(f)

	var recs []process.Record
	if c.remote(f.Remote) {
		api, err := c.apiClient(f.Remote)
		if err != nil {
			return err
		}
		l, err := api.List(context.Background(), client.ListOptions{
			Sort:      sortBy.String(),
			Threshold: filter.Threshold,
			Query:     filter.Query,
			Limit:     filter.Limit,
		})
		if err != nil {
			return err
		}
		recs = fromAPI(l.Processes)
	} else {
		mgr := c.manager()
		// cpu percentages are measured between two refreshes
		mgr.Refresh()
		c.sleep(f.Sample)
		recs = mgr.List(sortBy, filter)
	}

	if f.JSON {
		printJSON(c.out, recs)
		return nil
	}
	printRecords(c.out, recs)
	return nil
}

// Show prints one process.
func (c *command) Show(f ShowFlags) error {
	var rec process.Record
	if c.remote(f.Remote) {
		api, err := c.apiClient(f.Remote)
		if err != nil {
			return err
		}
		p, err := api.Find(context.Background(), f.PID)
		if err != nil {
			return err
		}
		rec = fromAPI([]client.Process{*p})[0]
	} else {
		r, ok := c.manager().Find(f.PID)
		if !ok {
			return errors.New(manager.Rejection(manager.ErrNotFound).Message)
		}
		rec = r
	}

	if f.JSON {
		printJSON(c.out, rec)
		return nil
	}
	printRecords(c.out, []process.Record{rec})
	return nil
}

// Check reports whether the policy allows killing the process.
func (c *command) Check(f CheckFlags) error {
	if c.remote(f.Remote) {
		api, err := c.apiClient(f.Remote)
		if err != nil {
			return err
		}
		k, err := api.Killable(context.Background(), f.PID)
		if err != nil {
			return err
		}
		if !k.Killable {
			return errors.New(k.Reason)
		}
		_, _ = fmt.Fprintf(c.out, "%s (%d) can be killed\n", k.Name, k.PID)
		return nil
	}

	mgr := c.manager()
	rec, ok := mgr.Find(f.PID)
	if !ok {
		return errors.New(manager.Rejection(manager.ErrNotFound).Message)
	}
	if err := mgr.CanKill(rec); err != nil {
		return errors.New(manager.Rejection(err).Message)
	}
	_, _ = fmt.Fprintf(c.out, "%s (%d) can be killed\n", rec.Name, rec.PID)
	if rec.IsSystem {
		_, _ = fmt.Fprintln(c.out, "note: this is a system service")
	}
	return nil
}

func (c *command) targetPID(f KillFlags) (uint32, error) {
	switch {
	case f.PID != 0 && f.PIDFile != "":
		return 0, errors.New("give either a pid or --pidfile, not both")
	case f.PIDFile != "":
		return process.ReadPIDFile(f.PIDFile)
	case f.PID != 0:
		return f.PID, nil
	}
	return 0, errors.New("a pid or --pidfile is required")
}

func signalName(force bool) process.Signal {
	if force {
		return process.SignalKill
	}
	return process.SignalTerminate
}

// Kill runs the request, confirmation and termination sequence.
func (c *command) Kill(f KillFlags) error {
	pid, err := c.targetPID(f)
	if err != nil {
		return err
	}
	if c.remote(f.Remote) {
		return c.killViaAPI(f, pid)
	}

	mgr := c.manager()
	session := manager.NewSession(mgr, c.config().SortKey())
	sink, err := c.historySink()
	if err != nil {
		return err
	}
	if sink != nil {
		defer closeSink(sink)
		session.OnTerminate(history.Observer(sink, c.config().History.Timeout))
	}
	session.OnTerminate(func(rec process.Record, forceful bool, err error) {
		if err != nil {
			slog.Warn("kill failed", "pid", rec.PID, "name", rec.Name,
				"signal", signalName(forceful).String(), "kind", manager.KindOf(err).String(), "error", err)
			return
		}
		slog.Info("kill sent", "pid", rec.PID, "name", rec.Name, "signal", signalName(forceful).String())
	})

	if err := session.Request(pid, f.Force); err != nil {
		return errors.New(manager.Rejection(err).Message)
	}
	p, _ := session.Pending()

	if !f.Yes {
		printRecords(c.out, []process.Record{p.Record})
		q := fmt.Sprintf("Send %s to %s (%d)?", signalName(f.Force), p.Record.Name, p.Record.PID)
		if !confirm(c.in, c.out, q) {
			session.Cancel()
			_, _ = fmt.Fprintln(c.out, "Cancelled")
			return errCancelled
		}
	}

	n, _ := session.Confirm()
	if n.IsError {
		return errors.New(n.Message)
	}
	_, _ = fmt.Fprintln(c.out, n.Message)

	if c.waitExit(mgr, pid, f.Wait) {
		return nil
	}
	_, _ = fmt.Fprintf(c.out, "Process %s (%d) is still running", p.Record.Name, pid)
	if !f.Force {
		_, _ = fmt.Fprint(c.out, "; use --force to send SIGKILL")
	}
	_, _ = fmt.Fprintln(c.out)
	return nil
}

// waitExit polls the process table until pid is gone or wait elapses.
func (c *command) waitExit(mgr *manager.Manager, pid uint32, wait time.Duration) bool {
	for elapsed := time.Duration(0); ; elapsed += exitPollInterval {
		if _, ok := mgr.Find(pid); !ok {
			return true
		}
		if elapsed >= wait {
			return false
		}
		c.sleep(exitPollInterval)
	}
}

func (c *command) killViaAPI(f KillFlags, pid uint32) error {
	api, err := c.apiClient(f.Remote)
	if err != nil {
		return err
	}
	ctx := context.Background()

	k, err := api.Killable(ctx, pid)
	if err != nil {
		return err
	}
	if !k.Killable {
		return errors.New(k.Reason)
	}
	if !f.Yes {
		q := fmt.Sprintf("Send %s to %s (%d) on %s?", signalName(f.Force), k.Name, k.PID, f.Remote.APIUrl)
		if f.Remote.APIUrl == "" {
			q = fmt.Sprintf("Send %s to %s (%d)?", signalName(f.Force), k.Name, k.PID)
		}
		if !confirm(c.in, c.out, q) {
			_, _ = fmt.Fprintln(c.out, "Cancelled")
			return errCancelled
		}
	}

	res, err := api.Kill(ctx, pid, f.Force)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, res.Notice.Message)
	return nil
}

// History prints recent kill events.
func (c *command) History(f HistoryFlags) error {
	var events []client.Event
	if c.remote(f.Remote) {
		api, err := c.apiClient(f.Remote)
		if err != nil {
			return err
		}
		if events, err = api.History(context.Background(), f.Limit); err != nil {
			return err
		}
	} else {
		sink, err := c.historySink()
		if err != nil {
			return err
		}
		if sink == nil {
			return errors.New("history is not enabled; set [history] enabled and dsn")
		}
		defer closeSink(sink)
		rd, ok := sink.(history.Reader)
		if !ok {
			return fmt.Errorf("history sink %q cannot be read back", c.config().History.DSN)
		}
		recent, err := rd.Recent(context.Background(), f.Limit)
		if err != nil {
			return err
		}
		for _, e := range recent {
			events = append(events, client.Event{
				Type: string(e.Type), OccurredAt: e.OccurredAt, PID: e.PID,
				Name: e.Name, Outcome: e.Outcome, Error: e.Error,
			})
		}
	}

	if f.JSON {
		printJSON(c.out, events)
		return nil
	}
	for _, e := range events {
		line := fmt.Sprintf("%s  %-10s %-8d %-20s %s", e.OccurredAt.Local().Format(time.DateTime), e.Type, e.PID, e.Name, e.Outcome)
		if e.Error != "" {
			line += "  " + e.Error
		}
		_, _ = fmt.Fprintln(c.out, line)
	}
	return nil
}
