package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/prokill/internal/history"
	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/process"
	"github.com/loykin/prokill/internal/tui"
)

// createTopCommand creates the interactive top subcommand
func createTopCommand(c *command) *cobra.Command {
	f := &TopFlags{}
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Interactive process view",
		Long: `Full-screen process table refreshed every refresh_interval.

Keys:
  c m p n   sort by cpu, memory, pid, name
  a         toggle all processes
  h         only processes above cpu_threshold
  /         search by name or pid
  k K       kill or force kill the selected process (asks first)
  r         refresh now
  q         quit

Logs go to the configured log file while the view is open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Top(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.Sort, "sort", "", "initial sort key (default from config)")
	cmd.Flags().BoolVar(&f.All, "all", false, "start with every process shown")
	return cmd
}

// Top runs the interactive view until the user quits.
func (c *command) Top(ctx context.Context, f TopFlags) error {
	cfg := c.config()
	sortName := f.Sort
	if sortName == "" {
		sortName = cfg.Sort
	}
	sortBy, err := process.ParseSortKey(sortName)
	if err != nil {
		return err
	}

	session := manager.NewSession(c.manager(), sortBy)
	sink, err := c.historySink()
	if err != nil {
		return err
	}
	if sink != nil {
		defer closeSink(sink)
		session.OnTerminate(history.Observer(sink, cfg.History.Timeout))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := tui.New(session, tui.Options{
		RefreshInterval: cfg.RefreshInterval,
		Limit:           cfg.Limit,
		ShowAll:         cfg.ShowAll || f.All,
		CPUThreshold:    cfg.CPUThreshold,
	})
	return ui.Run(ctx)
}
