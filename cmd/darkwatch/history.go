package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/report"
	"github.com/nao1215/darkwatch/internal/scan"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scan-id]",
		Short: "Show stored scans",
		Long: `History lists the latest scan of every URL, newest first.
With a scan ID it shows the full stored report of that scan.

Examples:
  # List scanned URLs
  darkwatch history

  # Show one stored scan as Markdown
  darkwatch history --markdown 0f8fad5b-d9cb-469f-a165-70867728950e`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 100, "Maximum number of URLs to list")
	addReportFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
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

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cleanup

	if len(args) == 1 {
		doc, err := a.scanner.HistoryEntry(ctx, args[0])
		if err != nil {
			return err
		}
		_, err = sink.writer(cfg.Verbose).WriteScan(&scan.Result{Document: doc})
		return err
	}

	docs, err := a.scanner.History(ctx, limit)
	if err != nil {
		return err
	}
	if sink.format == report.FormatJSON {
		_, err = sink.json().WriteValue(docs)
		return err
	}
	_, err = sink.text().WriteHistory(docs)
	return err
}
