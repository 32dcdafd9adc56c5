package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/arictl/internal/config"
	"github.com/roach88/arictl/internal/observability"
	"github.com/roach88/arictl/internal/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath  string
	MetricsAddr string // overrides metrics_addr from the config

	// ready, if set, receives the bound metrics address ("" when disabled)
	// once the engine is running. Used by tests.
	ready func(metricsAddr string)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the engine and event feed",
		Long: `Start the engine with the configured server connection.

The engine subscribes to the server's event feed over a websocket,
reconnecting with backoff when it drops, and processes responses and
events on a single delivery loop until interrupted. With a journal
configured every command, response and event is recorded; with a
metrics address /metrics is served for Prometheus.

Example:
  arictl run --config ./arictl.yaml
  arictl run --config ./arictl.yaml --metrics-addr :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "arictl.yaml", "path to config file")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics on this address")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load config", err)
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose)

	// Use command's context if available (for testing)
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	feedCfg, err := cfg.Feed()
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to configure event feed", &connectionError{err: err})
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to start engine", err)
	}

	feed, err := transport.NewEventFeed(feedCfg, s.engine)
	if err != nil {
		_ = s.Close()
		return formatter.Fail(ExitCommandError, "failed to configure event feed", &connectionError{err: err})
	}

	metricsAddr := ""
	if cfg.MetricsAddr != "" {
		srv, addr, err := serveMetrics(cfg.MetricsAddr)
		if err != nil {
			_ = s.Close()
			return formatter.Fail(ExitCommandError, "failed to serve metrics", err)
		}
		metricsAddr = addr
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("error stopping metrics server", "error", err)
			}
		}()
		slog.Info("serving metrics", "addr", addr)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = feed.Run(ctx)
	}()

	slog.Info("engine started", "url", cfg.URL, "events", feed.Target(), "journal", cfg.Journal)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Listening for events...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.ready != nil {
		opts.ready(metricsAddr)
	}

	<-ctx.Done()
	wg.Wait()

	if err := s.Close(); err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	slog.Info("engine stopped gracefully")
	return nil
}

// serveMetrics listens on addr and serves /metrics until shut down. It
// returns the bound address, which differs from addr for port 0.
func serveMetrics(addr string) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv, ln.Addr().String(), nil
}
