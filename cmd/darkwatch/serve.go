package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/api"
	"github.com/nao1215/darkwatch/internal/metrics"
	"github.com/nao1215/darkwatch/internal/monitor"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the monitor scheduler",
		Long: `Serve starts the HTTP API and the monitor scheduler in one process.

Monitors stored by earlier runs or by 'darkwatch monitor add' are restored
on start. Prometheus metrics are exposed at /metrics.

The API has no authentication. Keep it on a loopback or private address.

Examples:
  # Listen on the configured address (default 127.0.0.1:8080)
  darkwatch serve

  # Listen on another address with an external Tor proxy
  darkwatch serve --listen 127.0.0.1:9000 --external-tor 127.0.0.1:9050`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "",
		"Listen address (default from config, 127.0.0.1:8080)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	listen, err := cmd.Flags().GetString("listen")
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ListenAddress = listen
	}

	logger := setupLogger(cfg, true)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	a, err := newApp(ctx, cfg, logger, appOptions{network: true, observer: m})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cleanup

	sched := monitor.New(a.scanner, a.store,
		monitor.WithLogger(logger),
		monitor.WithObserver(m),
		monitor.WithMaxMonitors(cfg.MaxMonitors),
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor scheduler: %w", err)
	}
	defer sched.Stop()

	api.SetMode(cfg.Verbose)
	handler := api.NewHandler(a.scanner, sched, a.store,
		api.WithLogger(logger),
		api.WithMetrics(m.Handler()),
		api.WithVersion(getVersion()),
		api.WithDefaultInterval(cfg.DefaultInterval),
	)
	server := api.NewServer(api.Config{Addr: cfg.ListenAddress, Debug: cfg.Verbose}, handler, logger)

	fmt.Fprintf(cmd.ErrOrStderr(), "darkwatch API listening on http://%s\n", cfg.ListenAddress)
	return server.Run(ctx)
}
