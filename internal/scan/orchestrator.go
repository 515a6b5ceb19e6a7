package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/darkwatch/internal/fetch"
	"github.com/nao1215/darkwatch/internal/keylock"
	"github.com/nao1215/darkwatch/internal/model"
)

// Default limits for file analysis.
const (
	DefaultMaxFiles        = 10
	DefaultFileConcurrency = 4
)

// Fetcher retrieves a URL. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Store is the storage the orchestrator and its queries need.
// store.Store satisfies it.
type Store interface {
	Storage
	GetScan(ctx context.Context, id string) (*model.ScanDocument, error)
	ScansByURL(ctx context.Context, url string) ([]*model.ScanDocument, error)
	LatestPerURL(ctx context.Context, limit int) ([]*model.ScanDocument, error)
	ListAlerts(ctx context.Context, limit int) ([]*model.Alert, error)
	AcknowledgeAlert(ctx context.Context, id string, at time.Time) (*model.Alert, error)
}

// Observer is notified about completed scans and raised alerts.
type Observer interface {
	ScanCompleted(doc *model.ScanDocument, elapsed time.Duration)
	ScanFailed(url string, err error)
	AlertRaised(alert *model.Alert)
}

// Orchestrator runs scans and answers history, alert and comparison queries.
type Orchestrator struct {
	fetcher    Fetcher
	store      Store
	downloader Downloader
	analyzer   FileAnalyzer
	ledger     Correlator
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time

	maxFiles        int
	fileConcurrency int
	keepDownloads   bool

	// urlLocks orders persistence of scans of the same URL.
	urlLocks keylock.Map
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithForensics enables downloading and analysing linked files.
func WithForensics(d Downloader, a FileAnalyzer) Option {
	return func(o *Orchestrator) {
		o.downloader = d
		o.analyzer = a
	}
}

// WithLedger enables indicator correlation.
func WithLedger(c Correlator) Option {
	return func(o *Orchestrator) {
		o.ledger = c
	}
}

// WithObserver registers an observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMaxFiles caps the number of file links analysed per scan.
// Zero or a negative value keeps the default.
func WithMaxFiles(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxFiles = n
		}
	}
}

// WithFileConcurrency sets how many files are analysed at once.
func WithFileConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.fileConcurrency = n
		}
	}
}

// WithKeepDownloads keeps downloaded files on disk after analysis.
func WithKeepDownloads(keep bool) Option {
	return func(o *Orchestrator) {
		o.keepDownloads = keep
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator. Forensics and correlation are disabled
// unless enabled with WithForensics and WithLedger.
func New(fetcher Fetcher, store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:         fetcher,
		store:           store,
		maxFiles:        DefaultMaxFiles,
		fileConcurrency: DefaultFileConcurrency,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Pipeline builds the step chain for one scan.
func (o *Orchestrator) Pipeline() *Pipeline {
	steps := []Step{
		&FetchStep{fetcher: o.fetcher},
		&ParseStep{fetcher: o.fetcher, logger: o.logger},
		&FileForensicsStep{
			downloader:    o.downloader,
			analyzer:      o.analyzer,
			maxFiles:      o.maxFiles,
			concurrency:   o.fileConcurrency,
			keepDownloads: o.keepDownloads,
			logger:        o.logger,
		},
		&ContentAnalysisStep{},
		&PersistStep{storage: o.store, locks: &o.urlLocks, now: o.now, logger: o.logger},
		&DiffStep{},
		&CorrelateStep{ledger: o.ledger, logger: o.logger},
		&AlertStep{storage: o.store, observer: o.observer, now: o.now, logger: o.logger},
	}
	return NewPipeline(steps, WithPipelineLogger(o.logger))
}

// Scan runs one scan of rawURL and persists its document.
//
// Only invalid input and unavailable collaborators are returned as
// errors. Once started, a scan runs to completion even if ctx is
// cancelled; every blocking call inside it is bounded by its own timeout.
func (o *Orchestrator) Scan(ctx context.Context, rawURL string) (*Result, error) {
	target, err := model.SanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := newRun(target, o.now())
	o.logger.Info("scan started", "url", target)

	if err := o.Pipeline().Execute(context.WithoutCancel(ctx), run); err != nil {
		if o.observer != nil {
			o.observer.ScanFailed(target, err)
		}
		return nil, err
	}

	elapsed := o.now().Sub(run.StartedAt)
	if o.observer != nil {
		o.observer.ScanCompleted(run.Document, elapsed)
	}
	o.logger.Info("scan completed",
		"url", target,
		"status", run.Document.Status,
		"threat_score", run.Document.ThreatScore,
		"category", run.Document.Category,
		"alerts", len(run.Alerts),
	)
	return run.result(), nil
}
