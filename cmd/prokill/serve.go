package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/prokill/internal/auth"
	"github.com/loykin/prokill/internal/history"
	"github.com/loykin/prokill/internal/metrics"
	"github.com/loykin/prokill/internal/server"
	ptls "github.com/loykin/prokill/internal/tls"
)

const shutdownTimeout = 5 * time.Second

// createServeCommand creates the serve subcommand
func createServeCommand(c *command) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the process API over HTTP",
		Long: `Serve the process table and kill endpoint over HTTP(S).
Settings come from the [server], [metrics] and [history] sections.

Examples:
  prokill serve --config=prokill.toml
  prokill serve --listen=0.0.0.0:8080
  prokill serve --daemonize --pidfile=/run/prokill.pid --logfile=/var/log/prokill.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Serve(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (default from server.listen)")
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&f.PIDFile, "pidfile", "", "write the server pid to this file")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon output to this file")
	return cmd
}

// Serve runs the API until ctx is done or SIGINT/SIGTERM arrives.
func (c *command) Serve(ctx context.Context, f ServeFlags) error {
	if f.Daemonize && !isDaemonChild() {
		return c.daemonize(f.LogFile)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := c.config()
	listen := cfg.Server.Listen
	if f.Listen != "" {
		listen = f.Listen
	}

	if f.PIDFile != "" {
		if err := writePidFile(f.PIDFile, os.Getpid()); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = removePidFile(f.PIDFile) }()
	}

	opts := []server.Option{server.WithLogger(slog.Default())}

	if cfg.Server.JWTSecret != "" {
		svc, err := auth.NewService(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithAuth(auth.NewMiddleware(svc)))
	} else {
		slog.Warn("server.jwt_secret is empty; the API accepts unauthenticated requests")
	}

	sink, err := c.historySink()
	if err != nil {
		return err
	}
	if sink != nil {
		defer closeSink(sink)
		opts = append(opts, server.WithObserver(history.Observer(sink, cfg.History.Timeout)))
		if rd, ok := sink.(history.Reader); ok {
			opts = append(opts, server.WithHistory(rd))
		}
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		usage := metrics.NewUsageCollector(metrics.UsageConfig{
			Top:        cfg.Metrics.Top,
			MaxHistory: cfg.Metrics.MaxHistory,
		})
		if err := usage.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register usage metrics: %w", err)
		}
		opts = append(opts, server.WithUsage(usage))
		metricsSrv = serveMetrics(cfg.Metrics.Listen)
	}

	tc, err := ptls.Setup(cfg.Server.TLS)
	if err != nil {
		return fmt.Errorf("tls setup: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := server.NewRouter(c.manager(), cfg.Server.BasePath, opts...)
	go router.Run(ctx, cfg.RefreshInterval)

	srv := server.NewServer(listen, router, tc)
	protocol := "http"
	if tc != nil {
		protocol = "https"
	}
	slog.Info("serving process API", "protocol", protocol, "listen", listen, "base_path", cfg.Server.BasePath)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// serveMetrics exposes the Prometheus handler on its own listener.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "listen", addr)
	return srv
}
