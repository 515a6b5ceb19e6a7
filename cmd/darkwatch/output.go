package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/darkwatch/internal/report"
)

// ErrConflictingReportFormats is returned when both --json and --markdown
// are specified. Only one output format can be used at a time.
var ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

// addReportFlags registers the output format flags shared by the commands
// that render reports.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// reportFormat returns the report format selected by the flags.
func reportFormat(cmd *cobra.Command) (string, error) {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return "", err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return "", err
	}
	switch {
	case jsonOut && markdownOut:
		return "", ErrConflictingReportFormats
	case jsonOut:
		return report.FormatJSON, nil
	case markdownOut:
		return report.FormatMarkdown, nil
	default:
		return report.FormatText, nil
	}
}

// openOutput returns the report destination: the --output file when set,
// otherwise the command's stdout. The returned close func is never nil.
func openOutput(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Reports may contain indicators that should only be readable by the owner.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-chosen path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// reportSink bundles the destination and the format chosen on the command line.
type reportSink struct {
	format string
	out    io.Writer
	close  func() error
}

// newReportSink resolves the report flags of cmd.
func newReportSink(cmd *cobra.Command) (*reportSink, error) {
	format, err := reportFormat(cmd)
	if err != nil {
		return nil, err
	}
	out, closeFn, err := openOutput(cmd)
	if err != nil {
		return nil, err
	}
	return &reportSink{format: format, out: out, close: closeFn}, nil
}

// writer returns the report.Writer for the sink.
func (s *reportSink) writer(verbose bool) report.Writer {
	if s.format == report.FormatText {
		return report.NewSimpleWriter(s.out, report.WithVerbose(verbose))
	}
	return report.New(s.format, s.out, getVersion())
}

// json returns a pretty-printing JSON writer for list output.
func (s *reportSink) json() *report.JSONWriter {
	return report.NewJSONWriter(s.out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
}

// text returns the plain text writer for list output.
func (s *reportSink) text() *report.SimpleWriter {
	return report.NewSimpleWriter(s.out)
}
