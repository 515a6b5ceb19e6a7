package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/darkwatch/internal/fetch"
	"github.com/nao1215/darkwatch/internal/forensics"
	"github.com/nao1215/darkwatch/internal/indicator"
	"github.com/nao1215/darkwatch/internal/keylock"
	"github.com/nao1215/darkwatch/internal/ledger"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/parser"
	"github.com/nao1215/darkwatch/internal/threat"
)

// Step names.
const (
	StepFetch           = "fetch"
	StepParse           = "parse"
	StepFileForensics   = "file_forensics"
	StepContentAnalysis = "content_analysis"
	StepPersist         = "persist"
	StepDiff            = "diff"
	StepCorrelate       = "correlate"
	StepAlert           = "alert"
)

// FetchStep retrieves the target URL.
type FetchStep struct {
	fetcher Fetcher
}

// Name returns the step name.
func (s *FetchStep) Name() string { return StepFetch }

// Do fetches run.URL. Only invalid URLs and an unusable proxy fail.
func (s *FetchStep) Do(ctx context.Context, run *Run) error {
	res, err := s.fetcher.Fetch(ctx, run.URL)
	if err != nil {
		return err
	}
	run.Fetch = res
	return nil
}

// ParseStep extracts the page structure, preferring a paste host's raw view
// when the canonical page is a templated HTML wrapper.
type ParseStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// Name returns the step name.
func (s *ParseStep) Name() string { return StepParse }

// Do parses the fetched body. A run without content keeps a nil Page.
func (s *ParseStep) Do(ctx context.Context, run *Run) error {
	if run.Fetch == nil || !run.Fetch.HasContent() {
		s.logger.Warn("no content retrieved", "url", run.URL, "status", statusOf(run.Fetch))
		return nil
	}

	body := run.Fetch.Body
	if rawURL, ok := fetch.RawVariant(run.URL); ok && fetch.LooksTemplated(body) {
		raw, err := s.fetcher.Fetch(ctx, rawURL)
		switch {
		case err != nil:
			s.logger.Debug("raw variant fetch failed", "url", rawURL, "error", err)
		case raw.HasContent():
			body = raw.Body
			run.RawURL = rawURL
		default:
			s.logger.Debug("raw variant returned no content", "url", rawURL, "status", raw.Status)
		}
	}

	page, err := parser.Parse(body, run.URL)
	if err != nil {
		s.logger.Warn("failed to parse content", "url", run.URL, "error", err)
		return nil
	}
	run.Page = page
	return nil
}

// Downloader fetches a linked file to local disk.
type Downloader interface {
	Download(ctx context.Context, fileURL string) (*forensics.DownloadedFile, error)
}

// FileAnalyzer produces the forensic report of a downloaded file.
type FileAnalyzer interface {
	AnalyzeDownload(ctx context.Context, f *forensics.DownloadedFile) model.FileReport
}

// FileForensicsStep downloads and analyses the page's file links.
type FileForensicsStep struct {
	downloader    Downloader
	analyzer      FileAnalyzer
	maxFiles      int
	concurrency   int
	keepDownloads bool
	logger        *slog.Logger
}

// Name returns the step name.
func (s *FileForensicsStep) Name() string { return StepFileForensics }

// Do analyses up to maxFiles links. A failing file is skipped.
func (s *FileForensicsStep) Do(ctx context.Context, run *Run) error {
	if !run.HasPage() || s.downloader == nil || s.analyzer == nil {
		return nil
	}
	links := run.Page.FileLinks
	if len(links) == 0 {
		return nil
	}
	if s.maxFiles > 0 && len(links) > s.maxFiles {
		s.logger.Info("limiting file analysis", "url", run.URL, "found", len(links), "analysed", s.maxFiles)
		links = links[:s.maxFiles]
	}

	reports := make([]*model.FileReport, len(links))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, link := range links {
		g.Go(func() error {
			reports[i] = s.analyzeLink(ctx, link.URL)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	for _, r := range reports {
		if r != nil {
			run.Files = append(run.Files, *r)
		}
	}
	return nil
}

func (s *FileForensicsStep) analyzeLink(ctx context.Context, fileURL string) *model.FileReport {
	file, err := s.downloader.Download(ctx, fileURL)
	if err != nil {
		s.logger.Warn("file download failed", "file_url", fileURL, "error", err)
		return nil
	}
	if !s.keepDownloads {
		defer func() {
			if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
				s.logger.Debug("failed to remove download", "path", file.Path, "error", err)
			}
		}()
	}
	report := s.analyzer.AnalyzeDownload(ctx, file)
	if report.Malware.Detected {
		s.logger.Warn("malware detected", "file_url", fileURL, "threats", len(report.Malware.Threats))
	}
	return &report
}

// ContentAnalysisStep extracts indicators and assesses the page.
type ContentAnalysisStep struct{}

// Name returns the step name.
func (s *ContentAnalysisStep) Name() string { return StepContentAnalysis }

// Do runs the indicator extractor and the threat assessment.
func (s *ContentAnalysisStep) Do(_ context.Context, run *Run) error {
	if !run.HasPage() {
		return nil
	}
	run.Indicators = indicator.Extract(run.Page.TextContent)
	run.Assessment = threat.Assess(
		run.Indicators.NormalizedText,
		run.Page.Keywords,
		run.Indicators.Emails,
		run.Indicators.CryptoAddresses,
		run.MalwareDetected(),
	)
	return nil
}

// Storage is the subset of store.Store the orchestrator writes to.
type Storage interface {
	InsertScan(ctx context.Context, doc *model.ScanDocument) error
	LatestScan(ctx context.Context, url string) (*model.ScanDocument, error)
	InsertAlert(ctx context.Context, alert *model.Alert) error
}

// PersistStep builds the document, detects content change and inserts it.
type PersistStep struct {
	storage Storage
	locks   *keylock.Map
	now     func() time.Time
	logger  *slog.Logger
}

// Name returns the step name.
func (s *PersistStep) Name() string { return StepPersist }

// Do looks up the previous document, then appends the new one. The lookup
// and the insert hold the URL's lock, so the previous document is always
// the one stored immediately before.
func (s *PersistStep) Do(ctx context.Context, run *Run) error {
	unlock := s.locks.Lock(run.URL)
	defer unlock()

	prev, err := s.storage.LatestScan(ctx, run.URL)
	if err != nil {
		return fmt.Errorf("failed to look up previous scan: %w", err)
	}
	run.Previous = prev

	doc := buildDocument(run, s.now())
	if prev != nil && prev.HasContent() && doc.HasContent() && prev.ContentHash != doc.ContentHash {
		doc.ContentChanged = true
		run.Assessment = run.Assessment.WithScore(threat.ApplyContentChangePenalty(run.Assessment.Score))
		doc.ThreatScore = run.Assessment.Score
		doc.RiskLevel = run.Assessment.Risk
		s.logger.Warn("content change detected", "url", run.URL, "threat_score", doc.ThreatScore)
	}

	if err := s.storage.InsertScan(ctx, doc); err != nil {
		return fmt.Errorf("failed to store scan: %w", err)
	}
	run.Document = doc
	return nil
}

// buildDocument assembles the document from the run, or a placeholder
// when no page was parsed.
func buildDocument(run *Run, now time.Time) *model.ScanDocument {
	status := model.FetchUnknown
	var (
		code    *int
		elapsed *float64
	)
	if run.Fetch != nil {
		status = run.Fetch.Status
		code = run.Fetch.StatusCodePtr()
		elapsed = run.Fetch.ElapsedSeconds()
	}
	if !run.HasPage() {
		return model.NewPlaceholderDocument(run.URL, status, code, elapsed, now)
	}

	a := run.Assessment
	doc := &model.ScanDocument{
		URL:             run.URL,
		Timestamp:       now,
		Status:          status,
		StatusCode:      code,
		ResponseTime:    elapsed,
		Title:           run.Page.Title,
		Links:           run.Page.Links,
		FileLinks:       run.Page.FileLinks,
		Keywords:        run.Page.Keywords,
		TextPreview:     run.Page.TextPreview,
		TextContent:     run.Indicators.NormalizedText,
		ContentHash:     run.Indicators.ContentHash,
		Emails:          run.Indicators.Emails,
		CryptoAddresses: run.Indicators.CryptoAddresses,
		ThreatScore:     a.Score,
		Category:        a.Classification.Category,
		Confidence:      a.Classification.Confidence,
		RiskLevel:       a.Risk,
		Evidence:        a.Classification.Evidence,
		PGPDetected:     strings.Contains(strings.ToLower(run.Indicators.NormalizedText), "pgp"),
		StatusHistory:   []model.StatusEntry{},
	}
	if len(run.Files) > 0 {
		doc.FileAnalysis = run.Files
		doc.ClamAVStatus, doc.ClamAVDetected, doc.ClamAVDetails = aggregateMalware(run.Files)
	}
	return doc
}

// aggregateMalware reports infected when any file is infected, otherwise
// the verdict of the last analysed file.
func aggregateMalware(files []model.FileReport) (model.MalwareScanStatus, bool, []model.MalwareHit) {
	var (
		status   model.MalwareScanStatus
		detected bool
		hits     []model.MalwareHit
	)
	for _, f := range files {
		if f.Malware.Status != "" {
			status = f.Malware.Status
		}
		if f.Malware.Detected {
			detected = true
			hits = append(hits, f.Malware.Threats...)
		}
	}
	if detected {
		status = model.MalwareInfected
	}
	return status, detected, hits
}

// DiffStep compares the new score with the previous document's.
type DiffStep struct{}

// Name returns the step name.
func (s *DiffStep) Name() string { return StepDiff }

// Do fills PreviousScore and ScoreDelta. A missing previous scan counts as 0.
func (s *DiffStep) Do(_ context.Context, run *Run) error {
	prevScore := 0
	if run.Previous != nil {
		prevScore = run.Previous.ThreatScore
		run.PreviousScore = &prevScore
	}
	run.ScoreDelta = run.Document.ThreatScore - prevScore
	return nil
}

// Correlator records indicator occurrences.
type Correlator interface {
	RecordAndCheck(ctx context.Context, value string, typ model.IOCType, url string) (ledger.Reuse, error)
}

// CorrelateStep records every indicator of the document in the ledger.
type CorrelateStep struct {
	ledger Correlator
	logger *slog.Logger
}

// Name returns the step name.
func (s *CorrelateStep) Name() string { return StepCorrelate }

// Do records emails, crypto addresses and file hashes. Ledger failures
// are logged and skipped.
func (s *CorrelateStep) Do(ctx context.Context, run *Run) error {
	doc := run.Document
	if s.ledger == nil || !doc.HasContent() {
		return nil
	}
	record := func(value string, typ model.IOCType) {
		reuse, err := s.ledger.RecordAndCheck(ctx, value, typ, run.URL)
		if err != nil {
			s.logger.Warn("failed to record indicator", "type", typ, "url", run.URL, "error", err)
			return
		}
		run.Reuse = append(run.Reuse, reuse)
	}
	for _, e := range doc.Emails {
		record(e, model.IOCEmail)
	}
	for _, c := range doc.CryptoAddresses {
		record(c, model.IOCCrypto)
	}
	for _, f := range doc.FileAnalysis {
		if f.FileHash != "" {
			record(f.FileHash, model.IOCFileHash)
		}
	}
	return nil
}

// AlertStep evaluates the alert rules and stores each alert.
type AlertStep struct {
	storage  Storage
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

// Name returns the step name.
func (s *AlertStep) Name() string { return StepAlert }

// Do stores one alert per triggered rule. A failed insert is logged and
// the remaining alerts are still attempted.
func (s *AlertStep) Do(ctx context.Context, run *Run) error {
	for _, alert := range EvaluateAlerts(run, s.now()) {
		if err := s.storage.InsertAlert(ctx, alert); err != nil {
			s.logger.Error("failed to store alert", "url", run.URL, "kind", alert.Kind, "error", err)
			continue
		}
		s.logger.Warn("alert raised", "url", run.URL, "kind", alert.Kind, "severity", alert.Severity, "reason", alert.Reason)
		run.Alerts = append(run.Alerts, alert)
		if s.observer != nil {
			s.observer.AlertRaised(alert)
		}
	}
	return nil
}

func statusOf(res *fetch.Result) model.FetchStatus {
	if res == nil {
		return model.FetchUnknown
	}
	return res.Status
}
