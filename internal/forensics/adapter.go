package forensics

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/darkwatch/internal/model"
)

// Tools names the analyzer binaries. Entries may be bare names resolved
// through PATH or absolute paths.
type Tools struct {
	Exiftool string
	Strings  string
	Binwalk  string
	Clamscan string
}

// DefaultTools returns the conventional binary names.
func DefaultTools() Tools {
	return Tools{
		Exiftool: "exiftool",
		Strings:  "strings",
		Binwalk:  "binwalk",
		Clamscan: "clamscan",
	}
}

// Adapter runs every sub-analysis over a file and merges the results into
// a model.FileReport.
type Adapter struct {
	runner Runner
	tools  Tools
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(a *Adapter) {
		a.runner = r
	}
}

// WithTools sets the analyzer binaries. Empty fields keep their defaults.
func WithTools(t Tools) Option {
	return func(a *Adapter) {
		if t.Exiftool != "" {
			a.tools.Exiftool = t.Exiftool
		}
		if t.Strings != "" {
			a.tools.Strings = t.Strings
		}
		if t.Binwalk != "" {
			a.tools.Binwalk = t.Binwalk
		}
		if t.Clamscan != "" {
			a.tools.Clamscan = t.Clamscan
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an Adapter. Without WithRunner it uses an ExecRunner
// with DefaultToolTimeout.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		tools:  DefaultTools(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = NewExecRunner(DefaultToolTimeout)
	}
	return a
}

// Analyze runs the four sub-analyses over path concurrently. It never
// fails; problems are reported through the section statuses.
func (a *Adapter) Analyze(ctx context.Context, path string) model.FileReport {
	report := model.FileReport{
		FileName: filepath.Base(path),
	}
	if info, err := os.Stat(path); err == nil {
		report.FileSize = info.Size()
	}

	a.logger.Debug("analyzing file", "file", report.FileName, "size", report.FileSize)

	var g errgroup.Group
	g.Go(func() error {
		report.Metadata = a.metadata(ctx, path)
		return nil
	})
	g.Go(func() error {
		report.Strings = a.strings(ctx, path)
		return nil
	})
	g.Go(func() error {
		report.Signatures = a.signatures(ctx, path)
		return nil
	})
	g.Go(func() error {
		report.Malware = a.malware(ctx, path)
		return nil
	})
	_ = g.Wait() //nolint:errcheck // sub-analyses never return errors

	if report.Malware.Detected {
		a.logger.Warn("malware detected", "file", report.FileName, "threats", len(report.Malware.Threats))
	}
	return report
}

// AnalyzeDownload analyzes a downloaded file and copies its download
// identity into the report.
func (a *Adapter) AnalyzeDownload(ctx context.Context, f *DownloadedFile) model.FileReport {
	report := a.Analyze(ctx, f.Path)
	report.FileURL = f.URL
	report.FileName = f.Name
	report.FileSize = f.Size
	report.FileHash = f.SHA256
	report.ContentType = f.ContentType
	return report
}

// statusFor maps a Runner error to a section status.
func statusFor(err error) model.AnalysisStatus {
	switch {
	case err == nil:
		return model.AnalysisOK
	case isNotInstalled(err):
		return model.AnalysisNotInstalled
	case isTimeout(err):
		return model.AnalysisTimeout
	default:
		return model.AnalysisError
	}
}
