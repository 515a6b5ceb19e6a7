package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// This command compares the first and the latest stored scan of a URL.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare the baseline and latest scan of a URL",
		Long: `Compare shows how a service changed between its first stored scan
(the baseline) and its latest one:
- Status, threat score, risk level and category
- Email, cryptocurrency address and malicious file counts
- Whether the page content changed

The comparison requires at least two stored scans of the URL. Use
'darkwatch scan' or a monitor to record them.

Examples:
  # Compare scans of a service
  darkwatch compare http://exampleonion.onion

  # Output comparison in JSON format
  darkwatch compare --json http://exampleonion.onion`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	addReportFlags(cmd)
	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
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

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cleanup

	c, err := a.scanner.Compare(ctx, targets[0])
	if err != nil {
		return err
	}
	_, err = sink.writer(cfg.Verbose).WriteComparison(c)
	return err
}
