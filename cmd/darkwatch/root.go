package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for darkwatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "darkwatch",
		Short: "Dark-web reconnaissance and threat intelligence engine",
		Long: `darkwatch fetches onion and clearnet pages, extracts indicators such as
emails and cryptocurrency addresses, analyses linked files, scores and
classifies the threat, and raises alerts when indicators reappear or a
service changes.

By default, darkwatch starts an embedded Tor daemon automatically.
Use --external-tor to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .darkwatch.yaml in current or home directory)")
	cmd.PersistentFlags().StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9150)")
	cmd.PersistentFlags().String("db-driver", "",
		"Storage driver: sqlite or mongo (overrides the configuration file)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMonitorCmd())
	cmd.AddCommand(NewAlertsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
