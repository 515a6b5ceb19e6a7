package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/config"
)

//go:embed templates/darkwatch.yaml
var configTemplate embed.FS

// configTemplatePath is the template location inside configTemplate.
const configTemplatePath = "templates/darkwatch.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new darkwatch configuration file",
		Long: `Initialize creates a new .darkwatch.yaml configuration file in the current directory.

The generated file documents every option with its default value,
commented out, plus examples for per-site cookies and headers.

Examples:
  # Create .darkwatch.yaml in current directory
  darkwatch init

  # Create config file at a specific path
  darkwatch init -o ~/.config/darkwatch/config.yaml

  # Force overwrite existing file
  darkwatch init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(configTemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold session cookies.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - An external Tor proxy or the embedded daemon")
	fmt.Fprintln(out, "  - The storage driver (sqlite or mongo)")
	fmt.Fprintln(out, "  - Session cookies and headers per site")
	return nil
}
