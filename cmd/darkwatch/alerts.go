package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/report"
)

// NewAlertsCmd creates the alerts command.
func NewAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List or acknowledge alerts",
		Long: `Alerts lists the most recent alerts, newest first.

Alerts are raised for high threat scores, detected malware, content
changes, threat score increases and indicators reused across services.

Examples:
  # Show the latest 20 alerts
  darkwatch alerts --limit 20

  # Acknowledge an alert
  darkwatch alerts --ack 0f8fad5b-d9cb-469f-a165-70867728950e`,
		Args: cobra.NoArgs,
		RunE: runAlertsCmd,
	}

	cmd.Flags().String("ack", "", "Acknowledge the alert with this ID")
	cmd.Flags().IntP("limit", "n", 100, "Maximum number of alerts to list")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// runAlertsCmd executes the alerts command.
func runAlertsCmd(cmd *cobra.Command, _ []string) error {
	ackID, err := cmd.Flags().GetString("ack")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, false)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cleanup

	out := cmd.OutOrStdout()
	if ackID != "" {
		alert, err := a.scanner.Acknowledge(ctx, ackID)
		if err != nil {
			return fmt.Errorf("failed to acknowledge alert %s: %w", ackID, err)
		}
		if asJSON {
			_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(alert)
			return err
		}
		fmt.Fprintf(out, "Alert %s acknowledged\n", alert.ID)
		return nil
	}

	return listAlerts(ctx, out, a, limit, asJSON)
}

func listAlerts(ctx context.Context, out io.Writer, a *app, limit int, asJSON bool) error {
	alerts, err := a.scanner.Alerts(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		_, err = report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(alerts)
		return err
	}
	_, err = report.NewSimpleWriter(out).WriteAlerts(alerts)
	return err
}
