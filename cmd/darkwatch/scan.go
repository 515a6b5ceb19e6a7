package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/config"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>...",
		Short: "Scan pages for threat indicators",
		Long: `Scan fetches each URL (through Tor for .onion hosts), extracts emails and
cryptocurrency addresses, analyses linked files, scores and classifies the
threat, stores the result and raises alerts.

Every scan is stored, so a later scan of the same URL reports content
changes, score increases and indicators seen on other services.

Examples:
  # Scan a single onion service
  darkwatch scan http://exampleonion.onion

  # Scan several pages, four at a time
  darkwatch scan --batch 4 http://site1.onion http://site2.onion https://pastebin.com/abc

  # Use external Tor proxy instead of embedded daemon
  darkwatch scan --external-tor 127.0.0.1:9150 http://exampleonion.onion

  # Write a Markdown report
  darkwatch scan --markdown -o report.md http://exampleonion.onion`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScanCmd,
	}

	cmd.Flags().IntP("batch", "b", 0,
		fmt.Sprintf("Number of concurrent scans (default from config, %d)", config.DefaultBatchSize))
	addReportFlags(cmd)

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}
	if batch > 0 {
		cfg.BatchSize = batch
	}

	// Reject bad input before waiting minutes for Tor.
	targets, err := sanitizeTargets(args)
	if err != nil {
		return err
	}
	sink, err := newReportSink(cmd)
	if err != nil {
		return err
	}
	defer sink.close() //nolint:errcheck // output errors surface through the write

	logger := setupLogger(cfg, false)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{network: true})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cleanup

	return runScan(ctx, a.scanner, targets, cfg.BatchSize, sink.writer(cfg.Verbose))
}

// scanner is the part of the orchestrator the scan command uses.
type scanner interface {
	Scan(ctx context.Context, url string) (*scan.Result, error)
	Batch(ctx context.Context, urls []string, concurrency int) ([]scan.BatchItem, error)
}

// batchWriter is the part of report.Writer the scan command uses.
type batchWriter interface {
	WriteScan(res *scan.Result) (int, error)
	WriteBatch(items []scan.BatchItem) (int, error)
}

// runScan scans targets and writes the report. A single target is scanned
// directly; several go through the batch runner.
func runScan(ctx context.Context, s scanner, targets []string, concurrency int, w batchWriter) error {
	if len(targets) == 1 {
		res, err := s.Scan(ctx, targets[0])
		if err != nil {
			return fmt.Errorf("scan of %s failed: %w", targets[0], err)
		}
		_, err = w.WriteScan(res)
		return err
	}

	items, batchErr := s.Batch(ctx, targets, concurrency)
	if _, err := w.WriteBatch(items); err != nil {
		return err
	}
	if batchErr != nil {
		return batchErr
	}

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(items))
	}
	return nil
}

// sanitizeTargets validates and normalises the URLs given on the command line.
func sanitizeTargets(args []string) ([]string, error) {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		u, err := model.SanitizeURL(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", arg, err)
		}
		targets = append(targets, u)
	}
	return targets, nil
}
