package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

var errWrite = errors.New("write failed")

// createTestResult creates a scan result with sample data for testing.
func createTestResult() *scan.Result {
	code := 200
	rt := 1.25
	prev := 40
	doc := &model.ScanDocument{
		ID:              "scan-1",
		URL:             "http://marketabc.onion/",
		Timestamp:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:          model.FetchOnline,
		StatusCode:      &code,
		ResponseTime:    &rt,
		Title:           "Market",
		TextPreview:     "buy now with bitcoin -----BEGIN PGP PUBLIC KEY BLOCK-----",
		ContentHash:     strings.Repeat("a", 64),
		Emails:          []string{"vendor@mail.onion"},
		CryptoAddresses: []string{"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"},
		ThreatScore:     75,
		Category:        "Illegal Marketplace",
		Confidence:      0.8,
		RiskLevel:       model.RiskHigh,
		Evidence:        model.Evidence{MatchedKeywords: []string{"market", "vendor"}},
		ContentChanged:  true,
		FileAnalysis: []model.FileReport{{
			FileName: "tool.exe",
			FileSize: 68,
			FileHash: strings.Repeat("b", 64),
			Malware: model.MalwareSection{
				Status:   model.MalwareInfected,
				Detected: true,
				Threats:  []model.MalwareHit{{File: "tool.exe", Threat: "Win.Test.EICAR_HDB-1"}},
			},
			Signatures: model.SignaturesSection{Status: model.AnalysisOK, Signatures: []string{"PE32 executable"}},
		}},
		ClamAVStatus:   model.MalwareInfected,
		ClamAVDetected: true,
	}
	return &scan.Result{
		Document: doc,
		Alerts: []*model.Alert{
			{Kind: model.AlertHighThreat, Severity: model.SeverityHigh, Reason: "High Threat Score (75/100)"},
			{Kind: model.AlertMalware, Severity: model.SeverityHigh, Reason: "Malware Detected"},
		},
		PreviousScore: &prev,
		ScoreDelta:    35,
	}
}

func createTestComparison() *scan.Comparison {
	return &scan.Comparison{
		URL:       "http://marketabc.onion/",
		ScanCount: 3,
		Previous:  scan.ScanSnapshot{ThreatScore: 20, RiskLevel: model.RiskLow, Status: model.FetchOnline},
		Current:   scan.ScanSnapshot{ThreatScore: 75, RiskLevel: model.RiskHigh, Status: model.FetchOnline},
		Changes:   scan.ComparisonDelta{ThreatScoreDelta: 55, RiskLevelChanged: true, NewEmails: 1},
		Reasons:   []string{"Risk level changed from LOW to HIGH", "1 new email(s) discovered"},
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes scan report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteScan(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"DARKWATCH SCAN REPORT",
			"http://marketabc.onion/",
			"75/100 HIGH",
			"ONLINE (HTTP 200, 1.25s)",
			"Score change:  +35 (was 40)",
			"CHANGED since last scan",
			"PGP:           detected",
			"vendor@mail.onion",
			"! Win.Test.EICAR_HDB-1",
			"[HIGH] Malware Detected",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "signature: PE32") {
			t.Error("signatures should only be shown in verbose mode")
		}
	})

	t.Run("verbose shows file details", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).WriteScan(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "signature: PE32 executable") {
			t.Errorf("verbose output missing signature:\n%s", buf.String())
		}
	})

	t.Run("writes batch with failures", func(t *testing.T) {
		t.Parallel()

		items := []scan.BatchItem{
			{URL: "http://marketabc.onion/", Result: createTestResult()},
			{URL: "http://down.onion/", Error: "tor proxy unavailable"},
		}
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteBatch(items); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[2/2] http://down.onion/") || !strings.Contains(output, "scan failed: tor proxy unavailable") {
			t.Errorf("failure not reported:\n%s", output)
		}
		if !strings.Contains(output, "Batch complete: 1 scanned, 1 failed") {
			t.Errorf("missing batch summary:\n%s", output)
		}
	})

	t.Run("writes comparison", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "- Risk level changed from LOW to HIGH") {
			t.Errorf("reasons missing:\n%s", output)
		}
		if !strings.Contains(output, "20/100 LOW") || !strings.Contains(output, "75/100 HIGH") {
			t.Errorf("scores missing:\n%s", output)
		}
	})

	t.Run("lists alerts and history", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)
		alerts := []*model.Alert{{
			ID: "a1", URL: "http://x.onion/", Reason: "IOC Reuse Detected - Email", Severity: model.SeverityHigh,
			IOCType: model.IOCEmail, IOCValue: "x@y.zz", ReuseCount: 2, Status: model.AlertAcknowledged, CreatedAt: now,
		}}
		if _, err := w.WriteAlerts(alerts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := w.WriteHistory([]*model.ScanDocument{createTestResult().Document}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{"(acknowledged)", "email: x@y.zz (seen on 2 URLs)", "id: scan-1"} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q\n%s", want, output)
			}
		}
	})

	t.Run("empty listings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)
		_, _ = w.WriteAlerts(nil)
		_, _ = w.WriteHistory(nil)
		if buf.String() != "No alerts.\nNo scans recorded.\n" {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	fixed := func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }

	t.Run("scan report carries summary and document", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithVersion("v0.1.0"), WithJSONClock(fixed))
		if _, err := w.WriteScan(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got struct {
			Version     string         `json:"version"`
			GeneratedAt time.Time      `json:"generated_at"`
			Summary     map[string]any `json:"summary"`
			Document    map[string]any `json:"document"`
			ScoreDelta  int            `json:"score_delta"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v0.1.0" || !got.GeneratedAt.Equal(fixed()) {
			t.Errorf("metadata = %q %v", got.Version, got.GeneratedAt)
		}
		if got.Summary["pgpDetected"] != true || got.Summary["threatScore"] != float64(75) {
			t.Errorf("summary = %v", got.Summary)
		}
		if got.Document["url_status"] != "ONLINE" || got.ScoreDelta != 35 {
			t.Errorf("document = %v, delta = %d", got.Document["url_status"], got.ScoreDelta)
		}
		if strings.Contains(buf.String(), "\n  ") {
			t.Error("compact output should not be indented")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"url\"") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
	})

	t.Run("batch is an array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		items := []scan.BatchItem{
			{URL: "http://marketabc.onion/", Result: createTestResult()},
			{URL: "http://down.onion/", Error: "unavailable"},
		}
		if _, err := NewJSONWriter(&buf).WriteBatch(items); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []BatchEntry
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 || got[0].Report == nil || got[1].Report != nil || got[1].Error != "unavailable" {
			t.Errorf("entries = %+v", got)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("scan report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteScan(createTestResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"# Darkwatch Scan Report",
			"## Threat Breakdown",
			"```mermaid",
			"### Emails",
			"## Downloaded Files",
			"tool.exe",
			"Malware detected in 1 downloaded file(s).",
			"## Alerts",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("output missing %q\n%s", want, output)
			}
		}
	})

	t.Run("placeholder document", func(t *testing.T) {
		t.Parallel()

		doc := model.NewPlaceholderDocument("http://gone.onion/", model.FetchOffline, nil, nil, time.Now())
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteScan(&scan.Result{Document: doc}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "could not be analysed (OFFLINE)") {
			t.Errorf("placeholder notice missing:\n%s", output)
		}
		if strings.Contains(output, "## Downloaded Files") {
			t.Error("placeholder should have no file section")
		}
	})

	t.Run("comparison", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "Threat score rose by 55 points") || !strings.Contains(output, "1 new email(s) discovered") {
			t.Errorf("comparison incomplete:\n%s", output)
		}
	})

	t.Run("batch table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		items := []scan.BatchItem{{URL: "http://down.onion/", Error: "unavailable"}}
		if _, err := NewMarkdownWriter(&buf).WriteBatch(items); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "failed: unavailable") {
			t.Errorf("batch failure missing:\n%s", buf.String())
		}
	})
}

type failingWriter struct{}

func (failingWriter) WriteScan(*scan.Result) (int, error) { return 0, errWrite }
func (failingWriter) WriteBatch([]scan.BatchItem) (int, error) { return 0, errWrite }
func (failingWriter) WriteComparison(*scan.Comparison) (int, error) { return 0, errWrite }

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
	n, err := m.WriteScan(createTestResult())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("n = %d, want %d", n, text.Len()+js.Len())
	}

	var after bytes.Buffer
	m = NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
	if _, err := m.WriteComparison(createTestComparison()); !errors.Is(err, errWrite) {
		t.Errorf("err = %v, want errWrite", err)
	}
	if after.Len() != 0 {
		t.Error("writers after a failure should not run")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, ok := New(FormatJSON, &buf, "v1").(*JSONWriter); !ok {
		t.Error("json format should return a JSONWriter")
	}
	if _, ok := New(FormatMarkdown, &buf, "v1").(*MarkdownWriter); !ok {
		t.Error("markdown format should return a MarkdownWriter")
	}
	if _, ok := New("", &buf, "v1").(*SimpleWriter); !ok {
		t.Error("default format should return a SimpleWriter")
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"ünïcödé text", 8, "ünïcö..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
