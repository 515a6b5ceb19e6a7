package scan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/darkwatch/internal/fetch"
	"github.com/nao1215/darkwatch/internal/forensics"
	"github.com/nao1215/darkwatch/internal/ledger"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/store"
	"github.com/nao1215/darkwatch/internal/threat"
)

// fakeFetcher serves canned responses keyed by URL. A URL may be given
// several responses which are returned in order, the last one repeating.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]*fetch.Result
	errs      map[string]error
	calls     []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string][]*fetch.Result),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) page(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = append(f.responses[url], &fetch.Result{
		URL:         url,
		FinalURL:    url,
		Status:      model.FetchOnline,
		StatusCode:  http.StatusOK,
		Body:        body,
		ContentType: "text/html",
		Elapsed:     120 * time.Millisecond,
		Attempts:    1,
	})
}

func (f *fakeFetcher) status(url string, status model.FetchStatus, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = append(f.responses[url], &fetch.Result{
		URL:        url,
		Status:     status,
		StatusCode: code,
		Elapsed:    time.Second,
		Attempts:   3,
	})
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	queue := f.responses[url]
	if len(queue) == 0 {
		return &fetch.Result{URL: url, Status: model.FetchError, StatusCode: http.StatusNotFound}, nil
	}
	res := queue[0]
	if len(queue) > 1 {
		f.responses[url] = queue[1:]
	}
	copied := *res
	return &copied, nil
}

// clamRunner reports every scanned file as infected and every other tool
// as missing.
type clamRunner struct{}

func (clamRunner) Run(_ context.Context, name string, args ...string) ([]byte, int, error) {
	if name != "clamscan" {
		return nil, -1, fmt.Errorf("%w: %s", forensics.ErrToolNotInstalled, name)
	}
	path := args[len(args)-1]
	return []byte(path + ": Win.Test.EICAR_HDB-1 FOUND\n"), 1, nil
}

// tickClock returns a strictly increasing time on every call.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingObserver struct {
	mu        sync.Mutex
	completed int
	failed    int
	alerts    []model.AlertKind
}

func (r *recordingObserver) ScanCompleted(*model.ScanDocument, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recordingObserver) ScanFailed(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *recordingObserver) AlertRaised(a *model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a.Kind)
}

type fixture struct {
	orch     *Orchestrator
	fetcher  *fakeFetcher
	store    *store.SQLite
	observer *recordingObserver
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := store.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	clock := &tickClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	ff := newFakeFetcher()
	obs := &recordingObserver{}
	base := []Option{
		WithLedger(ledger.New(st, ledger.WithClock(clock.Now))),
		WithObserver(obs),
		WithClock(clock.Now),
	}
	return &fixture{
		orch:     New(ff, st, append(base, opts...)...),
		fetcher:  ff,
		store:    st,
		observer: obs,
	}
}

func html(title, body string) string {
	return "<html><head><title>" + title + "</title></head><body>" + body + "</body></html>"
}

func alertKinds(alerts []*model.Alert) []model.AlertKind {
	kinds := make([]model.AlertKind, 0, len(alerts))
	for _, a := range alerts {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestScanSingleEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "http://contact.example/"
	f.fetcher.page(target, html("Contact", "<p>Reach user@example.com for details.</p>"))

	res, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	doc := res.Document
	if doc.ThreatScore != 20 {
		t.Errorf("ThreatScore = %d, want 20", doc.ThreatScore)
	}
	if doc.Category != threat.CategoryCommunication {
		t.Errorf("Category = %q, want %q", doc.Category, threat.CategoryCommunication)
	}
	if doc.RiskLevel != model.RiskLow {
		t.Errorf("RiskLevel = %q, want LOW", doc.RiskLevel)
	}
	if !slices.Equal(doc.Emails, []string{"user@example.com"}) {
		t.Errorf("Emails = %v", doc.Emails)
	}
	if doc.ContentHash == "" {
		t.Error("ContentHash is empty")
	}
	if len(doc.StatusHistory) != 1 || doc.StatusHistory[0].Status != model.FetchOnline {
		t.Errorf("StatusHistory = %+v", doc.StatusHistory)
	}
	if len(res.Alerts) != 0 {
		t.Errorf("Alerts = %v, want none", alertKinds(res.Alerts))
	}
	if res.PreviousScore != nil || res.ScoreDelta != 20 {
		t.Errorf("PreviousScore = %v, ScoreDelta = %d", res.PreviousScore, res.ScoreDelta)
	}
	if len(res.Reuse) != 1 || res.Reuse[0].Reused {
		t.Errorf("Reuse = %+v, want one new indicator", res.Reuse)
	}
	want := []string{StepFetch, StepParse, StepFileForensics, StepContentAnalysis, StepPersist, StepDiff, StepCorrelate, StepAlert}
	if !slices.Equal(res.Steps, want) {
		t.Errorf("Steps = %v, want %v", res.Steps, want)
	}
	if f.observer.completed != 1 {
		t.Errorf("observer completed = %d, want 1", f.observer.completed)
	}
}

func TestScanMarketplaceOverride(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "http://shop.example/"
	f.fetcher.page(target, html("Welcome", "<p>Escrow accepted. Carding tutorials inside.</p>"))

	res, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if res.Document.Category != threat.MarketplaceOverride {
		t.Errorf("Category = %q, want %q", res.Document.Category, threat.MarketplaceOverride)
	}
	if !res.Document.Evidence.MarketplaceForce {
		t.Error("Evidence.MarketplaceForce = false")
	}
}

func TestScanContentChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "http://changing.example/"
	f.fetcher.page(target, html("Board", "<p>Reach user@example.com for details.</p>"))
	f.fetcher.page(target, html("Board", "<p>Reach user@example.com for new details.</p>"))

	first, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	second, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}

	doc := second.Document
	if !doc.ContentChanged {
		t.Fatal("ContentChanged = false, want true")
	}
	if want := first.Document.ThreatScore + threat.ContentChangePenalty; doc.ThreatScore != want {
		t.Errorf("ThreatScore = %d, want %d", doc.ThreatScore, want)
	}
	if doc.RiskLevel != model.RiskMedium {
		t.Errorf("RiskLevel = %q, want MEDIUM", doc.RiskLevel)
	}
	if second.PreviousScore == nil || *second.PreviousScore != 20 || second.ScoreDelta != 15 {
		t.Errorf("PreviousScore = %v, ScoreDelta = %d", second.PreviousScore, second.ScoreDelta)
	}
	kinds := alertKinds(second.Alerts)
	if !slices.Equal(kinds, []model.AlertKind{model.AlertContentChange, model.AlertScoreIncrease}) {
		t.Errorf("alert kinds = %v", kinds)
	}
	if len(doc.StatusHistory) != 2 {
		t.Errorf("StatusHistory length = %d, want 2", len(doc.StatusHistory))
	}
	// Same URL reuse is recorded but never alerts.
	if len(second.Reuse) != 1 || !second.Reuse[0].Reused || second.Reuse[0].CrossURL {
		t.Errorf("Reuse = %+v", second.Reuse)
	}
}

func TestScanIdenticalContentTwice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "http://stable.example/"
	page := html("Stable", "<p>Hack tools and user@example.com</p>")
	f.fetcher.page(target, page)

	first, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}
	second, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if second.Document.ContentChanged {
		t.Error("ContentChanged = true on identical content")
	}
	if second.Document.ThreatScore != first.Document.ThreatScore {
		t.Errorf("ThreatScore = %d, want %d", second.Document.ThreatScore, first.Document.ThreatScore)
	}
	if second.Document.ContentHash != first.Document.ContentHash {
		t.Error("content hash changed on identical content")
	}
	if second.ScoreDelta != 0 || len(second.Alerts) != 0 {
		t.Errorf("ScoreDelta = %d, alerts = %v", second.ScoreDelta, alertKinds(second.Alerts))
	}
}

func TestScanMalwareFile(t *testing.T) {
	t.Parallel()

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR"))
	}))
	t.Cleanup(files.Close)

	downloader := forensics.NewDownloader(forensics.StaticClient(files.Client()), t.TempDir())
	adapter := forensics.NewAdapter(forensics.WithRunner(clamRunner{}))
	f := newFixture(t, WithForensics(downloader, adapter))

	const target = "http://files.example/"
	f.fetcher.page(target, html("Files",
		`<a href="`+files.URL+`/tool.exe">tool</a> <a href="`+files.URL+`/notes.txt">notes</a> <a href="/about">about</a>`))

	res, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	doc := res.Document
	if len(doc.FileAnalysis) != 2 {
		t.Fatalf("FileAnalysis length = %d, want 2", len(doc.FileAnalysis))
	}
	if doc.FileAnalysis[0].FileURL != files.URL+"/tool.exe" {
		t.Errorf("first file = %q, want link order kept", doc.FileAnalysis[0].FileURL)
	}
	if !doc.ClamAVDetected || doc.ClamAVStatus != model.MalwareInfected {
		t.Errorf("ClamAVDetected = %v, ClamAVStatus = %q", doc.ClamAVDetected, doc.ClamAVStatus)
	}
	if !doc.Evidence.MalwareDetected {
		t.Error("Evidence.MalwareDetected = false")
	}
	if !slices.Contains(alertKinds(res.Alerts), model.AlertMalware) {
		t.Fatalf("alert kinds = %v, want malware", alertKinds(res.Alerts))
	}
	for _, a := range res.Alerts {
		if a.Kind == model.AlertMalware && !strings.Contains(strings.ToLower(a.Reason), "malware") {
			t.Errorf("malware alert reason = %q", a.Reason)
		}
	}
	// Both files share the same bytes, so the second hash is a same-URL reuse.
	if len(res.Reuse) != 2 || res.Reuse[0].Type != model.IOCFileHash {
		t.Errorf("Reuse = %+v", res.Reuse)
	}
}

func TestScanCrossURLReuse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const first, second = "http://one.example/", "http://two.example/"
	f.fetcher.page(first, html("One", "<p>Write to ops@example.org</p>"))
	f.fetcher.page(second, html("Two", "<p>Mail ops@example.org</p>"))

	if _, err := f.orch.Scan(context.Background(), first); err != nil {
		t.Fatalf("Scan(first) error = %v", err)
	}
	res, err := f.orch.Scan(context.Background(), second)
	if err != nil {
		t.Fatalf("Scan(second) error = %v", err)
	}

	var reuse *model.Alert
	for _, a := range res.Alerts {
		if a.Kind == model.AlertIOCReuse {
			reuse = a
		}
	}
	if reuse == nil {
		t.Fatalf("alert kinds = %v, want ioc_reuse", alertKinds(res.Alerts))
	}
	if reuse.Severity != model.SeverityHigh || reuse.IOCType != model.IOCEmail || reuse.IOCValue != "ops@example.org" {
		t.Errorf("reuse alert = %+v", reuse)
	}
	if reuse.ReuseCount != 2 {
		t.Errorf("ReuseCount = %d, want 2", reuse.ReuseCount)
	}
	prior, ok := reuse.Details["previous_urls"].([]string)
	if !ok || !slices.Equal(prior, []string{first}) {
		t.Errorf("previous_urls = %v", reuse.Details["previous_urls"])
	}
	if !slices.Contains(f.observer.alerts, model.AlertIOCReuse) {
		t.Error("observer did not see the reuse alert")
	}
}

func TestScanPlaceholder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "http://down.example/"
	f.fetcher.status(target, model.FetchOffline, 0)
	f.fetcher.page(target, html("Back", "<p>Reach user@example.com</p>"))

	res, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	doc := res.Document
	if doc.HasContent() || doc.Category != model.UnknownCategory || doc.ThreatScore != 0 {
		t.Errorf("placeholder = %+v", doc)
	}
	if doc.Status != model.FetchOffline || doc.StatusCode != nil {
		t.Errorf("Status = %q, StatusCode = %v", doc.Status, doc.StatusCode)
	}
	if doc.Title != "[OFFLINE] Unable to fetch content" {
		t.Errorf("Title = %q", doc.Title)
	}
	if len(res.Alerts) != 0 || len(res.Reuse) != 0 {
		t.Errorf("alerts = %v, reuse = %v", alertKinds(res.Alerts), res.Reuse)
	}

	res, err = f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if res.Document.ContentChanged {
		t.Error("content change reported against a placeholder")
	}
	if got := len(res.Document.StatusHistory); got != 2 {
		t.Errorf("StatusHistory length = %d, want 2", got)
	}
	if res.Document.StatusHistory[0].Status != model.FetchOffline {
		t.Errorf("first history status = %q", res.Document.StatusHistory[0].Status)
	}
}

func TestScanRawPasteVariant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "https://pastebin.com/AbC123"
	f.fetcher.page(target, html("Pastebin", `<div class="wrapper">loading</div>`))
	f.fetcher.page("https://pastebin.com/raw/AbC123", "leaked combo list, contact dealer@paste.example")

	res, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !slices.Equal(res.Document.Emails, []string{"dealer@paste.example"}) {
		t.Errorf("Emails = %v, want text from the raw variant", res.Document.Emails)
	}
	if !slices.Contains(f.fetcher.calls, "https://pastebin.com/raw/AbC123") {
		t.Errorf("fetch calls = %v", f.fetcher.calls)
	}
}

func TestScanRawPasteVariantFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "https://pastebin.com/Zz9"
	f.fetcher.page(target, html("Pastebin", "<pre>mail ghost@paste.example</pre>"))
	f.fetcher.status("https://pastebin.com/raw/Zz9", model.FetchError, http.StatusForbidden)

	res, err := f.orch.Scan(context.Background(), target)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !slices.Equal(res.Document.Emails, []string{"ghost@paste.example"}) {
		t.Errorf("Emails = %v, want text from the canonical page", res.Document.Emails)
	}
}

func TestScanErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.orch.Scan(context.Background(), "ftp://nope")
		if !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
		if len(f.fetcher.calls) != 0 {
			t.Errorf("fetch called for invalid URL")
		}
	})

	t.Run("proxy unavailable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		const target = "http://hidden.example/"
		f.fetcher.errs[target] = model.ErrProxyUnavailable
		_, err := f.orch.Scan(context.Background(), target)
		if !errors.Is(err, model.ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
		docs, err := f.store.ScansByURL(context.Background(), target)
		if err != nil || len(docs) != 0 {
			t.Errorf("ScansByURL() = %d docs, %v; want nothing persisted", len(docs), err)
		}
		if f.observer.failed != 1 {
			t.Errorf("observer failed = %d, want 1", f.observer.failed)
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.orch.Scan(ctx, "http://x.example/"); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestCompare(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const target = "http://cmp.example/"
	f.fetcher.page(target, html("Cmp", "<p>nothing here</p>"))
	f.fetcher.page(target, html("Cmp", "<p>escrow and carding, mail a@b.example</p>"))

	ctx := context.Background()
	if _, err := f.orch.Scan(ctx, target); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orch.Compare(ctx, target); !errors.Is(err, model.ErrInsufficientHistory) {
		t.Errorf("Compare() with one scan error = %v, want ErrInsufficientHistory", err)
	}
	if _, err := f.orch.Scan(ctx, target); err != nil {
		t.Fatal(err)
	}

	c, err := f.orch.Compare(ctx, target)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if c.ScanCount != 2 || c.Changes.NewEmails != 1 || !c.Changes.CategoryChanged {
		t.Errorf("comparison = %+v", c)
	}
	if c.Changes.ThreatScoreDelta != c.Current.ThreatScore-c.Previous.ThreatScore {
		t.Errorf("ThreatScoreDelta = %d", c.Changes.ThreatScoreDelta)
	}
	if !slices.Contains(c.Reasons, "1 new email(s) discovered") {
		t.Errorf("Reasons = %v", c.Reasons)
	}
	if _, err := f.orch.Compare(ctx, " "); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Compare(blank) error = %v", err)
	}
}

func TestCompareDocumentsThreatOnlyReason(t *testing.T) {
	t.Parallel()

	a := &model.ScanDocument{URL: "http://x/", ThreatScore: 10, RiskLevel: model.RiskLow, Category: "C", Status: model.FetchOnline}
	b := &model.ScanDocument{URL: "http://x/", ThreatScore: 20, RiskLevel: model.RiskLow, Category: "C", Status: model.FetchOnline}
	c := CompareDocuments(a, b)
	if !slices.Equal(c.Reasons, []string{"Threat increased by 10 points"}) {
		t.Errorf("Reasons = %v", c.Reasons)
	}
}

func TestHistoryAndAlerts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.fetcher.page("http://a.example/", html("A", "<p>ransomware exploit malware hack dump leak fraud user@a.example</p>"))
	f.fetcher.page("http://b.example/", html("B", "<p>quiet</p>"))

	if _, err := f.orch.Scan(ctx, "http://a.example/"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orch.Scan(ctx, "http://b.example/"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orch.Scan(ctx, "http://a.example/"); err != nil {
		t.Fatal(err)
	}

	docs, err := f.orch.History(ctx, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(docs) != 2 || docs[0].URL != "http://a.example/" {
		t.Fatalf("History() = %d docs, first %q", len(docs), docs[0].URL)
	}
	entry, err := f.orch.HistoryEntry(ctx, docs[1].ID)
	if err != nil || entry.URL != "http://b.example/" {
		t.Errorf("HistoryEntry() = %v, %v", entry, err)
	}
	if _, err := f.orch.HistoryEntry(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("HistoryEntry(missing) error = %v", err)
	}

	alerts, err := f.orch.Alerts(ctx, 0)
	if err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}
	high := 0
	for _, a := range alerts {
		if a.Kind == model.AlertHighThreat {
			high++
			if a.Severity != model.SeverityHigh {
				t.Errorf("high threat severity = %v", a.Severity)
			}
		}
	}
	if high != 2 {
		t.Fatalf("high threat alerts = %d, want 2", high)
	}

	acked, err := f.orch.Acknowledge(ctx, alerts[0].ID)
	if err != nil || acked.Status != model.AlertAcknowledged || acked.AcknowledgedAt == nil {
		t.Fatalf("Acknowledge() = %+v, %v", acked, err)
	}
	if _, err := f.orch.Acknowledge(ctx, alerts[0].ID); !errors.Is(err, model.ErrAlertAcknowledged) {
		t.Errorf("second Acknowledge() error = %v", err)
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	urls := []string{"http://b1.example/", "not a url", "http://b3.example/"}
	f.fetcher.page(urls[0], html("1", "<p>one</p>"))
	f.fetcher.page(urls[2], html("3", "<p>three</p>"))

	items, err := f.orch.Batch(context.Background(), urls, 2)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.URL != urls[i] {
			t.Errorf("items[%d].URL = %q, want %q", i, item.URL, urls[i])
		}
	}
	if items[0].Result == nil || items[2].Result == nil {
		t.Error("valid URLs produced no result")
	}
	if !errors.Is(items[1].Err, model.ErrInvalidInput) || items[1].Error == "" {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rt := 0.5
	history := make([]model.StatusEntry, 15)
	for i := range history {
		history[i] = model.StatusEntry{Timestamp: time.Unix(int64(i), 0), Status: model.FetchOnline, ResponseTime: &rt}
	}
	doc := &model.ScanDocument{
		URL:           "http://s.example/",
		Category:      threat.CategoryFraud,
		ThreatScore:   40,
		Emails:        []string{"a@b.example"},
		Keywords:      strings.Fields("a b c d e f g h i j k l m n"),
		TextPreview:   "-----BEGIN PGP PUBLIC KEY BLOCK-----",
		StatusHistory: history,
	}

	s := Summarize(doc)
	if !s.PGPDetected {
		t.Error("PGPDetected = false")
	}
	if len(s.Keywords) != 12 {
		t.Errorf("Keywords = %d, want 12", len(s.Keywords))
	}
	if len(s.Timeline) != 12 || !s.Timeline[0].Time.Equal(time.Unix(3, 0)) || s.Timeline[0].Value != 0.5 {
		t.Errorf("Timeline = %+v", s.Timeline)
	}
	if len(s.Categories) != 1 || s.Categories[0].Name != threat.CategoryFraud {
		t.Errorf("Categories = %+v", s.Categories)
	}
	want := []BreakdownItem{{Label: "Emails", Value: 1}, {Label: "Crypto", Value: 0}, {Label: "Threat", Value: 40}}
	if !slices.Equal(s.ThreatBreakdown, want) {
		t.Errorf("ThreatBreakdown = %+v", s.ThreatBreakdown)
	}
	if s.CryptoAddresses == nil || s.Links == nil {
		t.Error("empty lists must not be nil")
	}
}

func TestPipelineStopsOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var ran []string
	steps := []Step{
		stepFunc{"one", func(*Run) error { ran = append(ran, "one"); return nil }},
		stepFunc{"two", func(*Run) error { ran = append(ran, "two"); return boom }},
		stepFunc{"three", func(*Run) error { ran = append(ran, "three"); return nil }},
	}
	p := NewPipeline(steps)
	run := newRun("http://x/", time.Now())
	if err := p.Execute(context.Background(), run); !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v", err)
	}
	if !slices.Equal(ran, []string{"one", "two"}) || !slices.Equal(run.Performed, []string{"one"}) {
		t.Errorf("ran = %v, performed = %v", ran, run.Performed)
	}
	if !slices.Equal(p.StepNames(), []string{"one", "two", "three"}) {
		t.Errorf("StepNames() = %v", p.StepNames())
	}
}

type stepFunc struct {
	name string
	fn   func(*Run) error
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) Do(_ context.Context, r *Run) error { return s.fn(r) }

// slowStore widens the window between reading the previous document and
// inserting the new one, and records how many scans of a URL overlap in it.
type slowStore struct {
	*store.SQLite
	delay time.Duration

	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (s *slowStore) LatestScan(ctx context.Context, url string) (*model.ScanDocument, error) {
	s.mu.Lock()
	s.inFlight++
	s.maxSeen = max(s.maxSeen, s.inFlight)
	s.mu.Unlock()

	doc, err := s.SQLite.LatestScan(ctx, url)
	time.Sleep(s.delay)
	return doc, err
}

func (s *slowStore) InsertScan(ctx context.Context, doc *model.ScanDocument) error {
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	time.Sleep(s.delay)
	return s.SQLite.InsertScan(ctx, doc)
}

func TestScanConcurrentSameURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	slow := &slowStore{SQLite: f.store, delay: 20 * time.Millisecond}
	orch := New(f.fetcher, slow)

	const target = "http://race.example/"
	f.fetcher.page(target, html("Board", "<p>alpha</p>"))
	f.fetcher.page(target, html("Board", "<p>bravo</p>"))
	f.fetcher.page(target, html("Board", "<p>charlie</p>"))

	if _, err := orch.Scan(context.Background(), target); err != nil {
		t.Fatalf("seed Scan() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := orch.Scan(context.Background(), target); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Scan() error = %v", err)
	}

	if slow.maxSeen != 1 {
		t.Errorf("%d scans of one URL overlapped between lookup and insert, want 1", slow.maxSeen)
	}

	docs, err := f.store.ScansByURL(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("stored %d documents, want 3", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		differs := docs[i].ContentHash != docs[i-1].ContentHash
		if docs[i].ContentChanged != differs {
			t.Errorf("document %d: ContentChanged = %v, but hash differs from the preceding one = %v",
				i, docs[i].ContentChanged, differs)
		}
	}
}
