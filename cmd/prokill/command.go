package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/prokill/internal/config"
	"github.com/loykin/prokill/internal/history"
	"github.com/loykin/prokill/internal/history/factory"
	"github.com/loykin/prokill/internal/manager"
	"github.com/loykin/prokill/internal/policy"
	"github.com/loykin/prokill/pkg/client"
)

// command carries what every subcommand needs. Tests replace the streams
// and newManager to run without a real process table.
type command struct {
	cfg *config.Config

	out    io.Writer
	errOut io.Writer
	in     io.Reader

	newManager func(*policy.Policy) *manager.Manager
	sessions   *SessionManager
	sleep      func(time.Duration)
}

func newCommand() *command {
	return &command{
		out:    os.Stdout,
		errOut: os.Stderr,
		in:     os.Stdin,
		newManager: func(p *policy.Policy) *manager.Manager {
			return manager.NewSystem(p)
		},
		sessions: NewSessionManager(),
		sleep:    time.Sleep,
	}
}

// setup loads the configuration and installs the default logger.
func (c *command) setup(cmd *cobra.Command, flags GlobalFlags) error {
	cfg, err := config.Load(flags.ConfigPath, flags.EnvFiles...)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if flags.LogLevel != "" {
		cfg.Log.Slog.Level = flags.LogLevel
	}
	c.cfg = cfg

	// the full-screen view owns the terminal
	if cmd.Name() == "top" {
		slog.SetDefault(cfg.Log.NewFileSlogger())
	} else {
		slog.SetDefault(cfg.Log.NewSlogger())
	}
	return nil
}

func (c *command) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// manager builds a Manager over the live process table with the configured policy.
func (c *command) manager() *manager.Manager {
	return c.newManager(policy.New(c.config().Policy.ExtraProtected))
}

// historySink opens the configured history sink, or returns nil when history is off.
func (c *command) historySink() (history.Sink, error) {
	h := c.config().History
	if !h.Enabled {
		return nil, nil
	}
	sink, err := factory.NewSinkFromDSN(h.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history sink: %w", err)
	}
	return sink, nil
}

// closeSink closes sinks that hold connections.
func closeSink(s history.Sink) {
	if cl, ok := s.(io.Closer); ok {
		_ = cl.Close()
	}
}

// remote reports whether f selects the HTTP API. A saved login counts when
// no URL is given on the command line.
func (c *command) remote(f RemoteFlags) bool {
	if f.APIUrl != "" {
		return true
	}
	s, err := c.sessions.LoadSession()
	return err == nil && s != nil
}

// apiClient creates an API client, filling the URL and token from the saved
// session when the flags leave them empty.
func (c *command) apiClient(f RemoteFlags) (*client.Client, error) {
	session, err := c.sessions.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	url, token := f.APIUrl, f.Token
	if session != nil {
		if url == "" {
			url = session.ServerURL
		}
		if token == "" && (f.APIUrl == "" || f.APIUrl == session.ServerURL) {
			token = session.Token
		}
	}
	if url == "" {
		srv := c.config().Server
		scheme := "http"
		if srv.TLS.Enabled {
			scheme = "https"
		}
		url = scheme + "://" + srv.Listen + srv.BasePath
	}

	cfg := client.Config{
		BaseURL:  url,
		Token:    token,
		Timeout:  f.APITimeout,
		Insecure: f.Insecure,
	}
	if f.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{Enabled: true, CACert: f.CACert}
	}
	return client.New(cfg), nil
}
