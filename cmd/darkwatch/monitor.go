package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/config"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/monitor"
	"github.com/nao1215/darkwatch/internal/report"
)

// NewMonitorCmd creates the monitor command and its subcommands.
func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage recurring scans",
		Long: `Monitor manages URLs that are rescanned on a fixed interval.

Changes are written to the store. A running 'darkwatch serve' picks them
up on its next start.

Examples:
  # Rescan a service every 30 minutes
  darkwatch monitor add --interval 30 http://exampleonion.onion

  # List, pause, resume and remove monitors
  darkwatch monitor list
  darkwatch monitor pause 5d41402abc4b
  darkwatch monitor resume 5d41402abc4b
  darkwatch monitor rm 5d41402abc4b
  darkwatch monitor rm --all`,
	}

	cmd.AddCommand(newMonitorAddCmd())
	cmd.AddCommand(newMonitorListCmd())
	cmd.AddCommand(newMonitorPauseCmd())
	cmd.AddCommand(newMonitorResumeCmd())
	cmd.AddCommand(newMonitorRmCmd())

	return cmd
}

func newMonitorAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Register a monitor and run its first scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := cmd.Flags().GetInt("interval")
			if err != nil {
				return err
			}
			return withScheduler(cmd, true, func(ctx context.Context, s *monitor.Scheduler, cfg *config.Config) error {
				if interval == 0 {
					interval = cfg.DefaultInterval
				}
				m, err := s.Create(ctx, args[0], interval)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitor %s created for %s (every %d minutes)\n", m.ID, m.URL, m.Interval)
				return nil
			})
		},
	}
	cmd.Flags().IntP("interval", "i", 0,
		fmt.Sprintf("Minutes between scans (default from config, %d)", config.DefaultMonitorInterval))
	return cmd
}

func newMonitorListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List monitors",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			return withScheduler(cmd, false, func(ctx context.Context, s *monitor.Scheduler, _ *config.Config) error {
				monitors, err := s.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					_, err = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint()).WriteValue(monitors)
					return err
				}
				return writeMonitors(cmd.OutOrStdout(), monitors)
			})
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	return cmd
}

func newMonitorPauseCmd() *cobra.Command {
	return newMonitorActionCmd("pause", "Stop rescanning a monitor", "paused",
		func(ctx context.Context, s *monitor.Scheduler, id string) (*model.Monitor, error) {
			return s.Pause(ctx, id)
		})
}

func newMonitorResumeCmd() *cobra.Command {
	return newMonitorActionCmd("resume", "Resume a paused monitor", "resumed",
		func(ctx context.Context, s *monitor.Scheduler, id string) (*model.Monitor, error) {
			return s.Resume(ctx, id)
		})
}

func newMonitorRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"remove"},
		Short:   "Remove a monitor, or all monitors with --all",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			if all == (len(args) == 1) {
				return errors.New("specify a monitor ID or --all")
			}
			return withScheduler(cmd, false, func(ctx context.Context, s *monitor.Scheduler, _ *config.Config) error {
				if all {
					n, err := s.RemoveAll(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d monitors\n", n)
					return nil
				}
				m, err := s.Remove(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitor %s removed (%s)\n", m.ID, m.URL)
				return nil
			})
		},
	}
	cmd.Flags().Bool("all", false, "Remove every monitor")
	return cmd
}

// newMonitorActionCmd builds a command that applies action to one monitor ID.
func newMonitorActionCmd(use, short, done string,
	action func(ctx context.Context, s *monitor.Scheduler, id string) (*model.Monitor, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd, false, func(ctx context.Context, s *monitor.Scheduler, _ *config.Config) error {
				m, err := action(ctx, s, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitor %s %s (%s)\n", m.ID, done, m.URL)
				return nil
			})
		},
	}
}

// withScheduler loads the configuration, opens the store and restores the
// monitor registry without firing ticks, then calls fn. network is only
// needed when fn scans.
func withScheduler(cmd *cobra.Command, network bool,
	fn func(ctx context.Context, s *monitor.Scheduler, cfg *config.Config) error,
) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, false)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, appOptions{network: network})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // best-effort cleanup

	s := newScheduler(a, cfg, logger)
	if err := s.Load(ctx); err != nil {
		return err
	}
	defer s.Stop()

	return fn(ctx, s, cfg)
}

func newScheduler(a *app, cfg *config.Config, logger *slog.Logger) *monitor.Scheduler {
	return monitor.New(a.scanner, a.store,
		monitor.WithLogger(logger),
		monitor.WithMaxMonitors(cfg.MaxMonitors),
	)
}

// writeMonitors prints monitors as an aligned table.
func writeMonitors(w io.Writer, monitors []*model.Monitor) error {
	if len(monitors) == 0 {
		_, err := fmt.Fprintln(w, "No monitors.")
		return err
	}
	if _, err := fmt.Fprintf(w, "%-12s  %-7s  %-8s  %-5s  %-20s  %s\n",
		"ID", "STATUS", "INTERVAL", "SCANS", "LAST SCAN", "URL"); err != nil {
		return err
	}
	for _, m := range monitors {
		last := "-"
		if m.LastScan != nil {
			last = m.LastScan.Local().Format(time.DateTime)
		}
		if _, err := fmt.Fprintf(w, "%-12s  %-7s  %-8s  %-5d  %-20s  %s\n",
			m.ID, m.Status, fmt.Sprintf("%dm", m.Interval), m.ScanCount, last, m.URL); err != nil {
			return err
		}
	}
	return nil
}
