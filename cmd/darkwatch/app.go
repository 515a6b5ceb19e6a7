package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/config"
	"github.com/nao1215/darkwatch/internal/fetch"
	"github.com/nao1215/darkwatch/internal/forensics"
	"github.com/nao1215/darkwatch/internal/ledger"
	dwlog "github.com/nao1215/darkwatch/internal/log"
	"github.com/nao1215/darkwatch/internal/scan"
	"github.com/nao1215/darkwatch/internal/store"
	"github.com/nao1215/darkwatch/internal/tor"
)

// loadConfig builds the configuration from defaults, the config file and
// the persistent flags, in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Verbose = getVerboseFlag(cmd)

	externalTor, err := cmd.Flags().GetString("external-tor")
	if err != nil {
		return nil, err
	}
	if externalTor != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}

	driver, err := cmd.Flags().GetString("db-driver")
	if err != nil {
		return nil, err
	}
	if driver != "" {
		cfg.StorageDriver = driver
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting logger and installs it as the default.
// Long-running commands log at Info, one-shot commands only at Warn.
func setupLogger(cfg *config.Config, longRunning bool) *slog.Logger {
	logger := dwlog.NewLogger(os.Stderr, cfg.LogFormat, dwlog.LevelFor(cfg.Verbose, longRunning))
	slog.SetDefault(logger)
	return logger
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	scanner  *scan.Orchestrator
	embedded *tor.EmbeddedTor
}

// appOptions selects what newApp sets up.
type appOptions struct {
	// network connects to Tor. Commands that only read the store leave it
	// off and get a fetcher that is never used.
	network bool

	observer scan.Observer
}

// newApp opens the store and builds the scan orchestrator.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:        cfg.StorageDriver,
		DBDir:         cfg.DBDir,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StorageDriver, err)
	}
	a := &app{cfg: cfg, logger: logger, store: st}

	fetchOpts := []fetch.Option{
		fetch.WithDirectClient(tor.DirectHTTPClient(cfg.Timeout, cfg.UserAgent)),
		fetch.WithRetries(cfg.Retries),
		fetch.WithBackoff(cfg.RetryBackoff),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		fetch.WithSiteHeaders(cfg.SiteHeaders),
		fetch.WithLogger(logger),
	}
	if opts.network {
		client, err := a.connectTor(ctx)
		if err != nil {
			_ = a.Close() //nolint:errcheck // best-effort cleanup
			return nil, err
		}
		fetchOpts = append(fetchOpts,
			fetch.WithTorClient(client.NewHTTPClient(), client),
			fetch.WithRouteAllViaTor(cfg.RouteAllViaTor),
		)
	}
	fetcher := fetch.New(fetchOpts...)

	downloader := forensics.NewDownloader(
		forensics.ClientSourceFunc(fetcher.ClientFor),
		cfg.DownloadDir,
		forensics.WithMaxSize(cfg.MaxDownloadSize),
		forensics.WithDownloadTimeout(cfg.Timeout),
		forensics.WithUserAgent(cfg.UserAgent),
		forensics.WithDownloadLogger(logger),
	)
	adapter := forensics.NewAdapter(
		forensics.WithRunner(forensics.NewExecRunner(cfg.ToolTimeout)),
		forensics.WithTools(forensics.Tools{
			Exiftool: cfg.Tools.Exiftool,
			Strings:  cfg.Tools.Strings,
			Binwalk:  cfg.Tools.Binwalk,
			Clamscan: cfg.Tools.Clamscan,
		}),
		forensics.WithLogger(logger),
	)

	scanOpts := []scan.Option{
		scan.WithForensics(downloader, adapter),
		scan.WithLedger(ledger.New(st, ledger.WithLogger(logger))),
		scan.WithMaxFiles(cfg.MaxFiles),
		scan.WithFileConcurrency(cfg.FileConcurrency),
		scan.WithKeepDownloads(cfg.KeepDownloads),
		scan.WithLogger(logger),
	}
	if opts.observer != nil {
		scanOpts = append(scanOpts, scan.WithObserver(opts.observer))
	}
	a.scanner = scan.New(fetcher, st, scanOpts...)
	return a, nil
}

// connectTor returns a client for the external proxy or starts the
// embedded daemon, and verifies the proxy answers.
func (a *app) connectTor(ctx context.Context) (*tor.Client, error) {
	var (
		client *tor.Client
		err    error
	)
	if a.cfg.UseExternalTor {
		client, err = tor.NewClient(a.cfg.TorProxyAddress, a.cfg.Timeout, tor.WithUserAgent(a.cfg.UserAgent))
		if err != nil {
			return nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "Starting embedded Tor daemon...")
		fmt.Fprintln(os.Stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

		a.embedded = tor.NewEmbeddedTor(
			tor.WithStartupTimeout(a.cfg.TorStartupTimeout),
			tor.WithEmbeddedLogger(a.logger),
		)
		if err := a.embedded.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		client, err = a.embedded.NewClient(a.cfg.Timeout, tor.WithUserAgent(a.cfg.UserAgent))
		if err != nil {
			return nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		return nil, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s): %w",
			status, client.ProxyAddress(), status.Err())
	}
	a.logger.Info("tor proxy connection verified", "address", client.ProxyAddress())
	return client, nil
}

// Close releases the store and stops the embedded daemon.
func (a *app) Close() error {
	var errs []error
	if a.embedded != nil {
		a.logger.Info("stopping embedded Tor daemon")
		errs = append(errs, a.embedded.Stop())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
