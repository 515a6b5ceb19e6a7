package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

const (
	separator     = "================================================================"
	thinSeparator = "----------------------------------------------------------------"
	timeLayout    = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds file metadata, strings and signatures to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteScan implements Writer.
func (w *SimpleWriter) WriteScan(res *scan.Result) (int, error) {
	var sb strings.Builder
	w.writeScan(&sb, res)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch implements Writer.
func (w *SimpleWriter) WriteBatch(items []scan.BatchItem) (int, error) {
	var sb strings.Builder
	failed := 0
	for i, it := range items {
		fmt.Fprintf(&sb, "[%d/%d] %s\n", i+1, len(items), it.URL)
		if it.Result == nil {
			failed++
			fmt.Fprintf(&sb, "  scan failed: %s\n\n", it.Error)
			continue
		}
		w.writeScan(&sb, it.Result)
	}
	fmt.Fprintf(&sb, "Batch complete: %d scanned, %d failed\n", len(items)-failed, failed)
	return io.WriteString(w.output, sb.String())
}

// WriteComparison implements Writer.
func (w *SimpleWriter) WriteComparison(c *scan.Comparison) (int, error) {
	var sb strings.Builder
	sb.WriteString(separator + "\n")
	sb.WriteString("DARKWATCH SCAN COMPARISON\n")
	sb.WriteString(separator + "\n")
	fmt.Fprintf(&sb, "URL:    %s\n", c.URL)
	fmt.Fprintf(&sb, "Scans:  %d\n\n", c.ScanCount)

	fmt.Fprintf(&sb, "%-16s %-26s %-26s\n", "", "BASELINE", "CURRENT")
	row := func(label, prev, cur string) {
		fmt.Fprintf(&sb, "%-16s %-26s %-26s\n", label, prev, cur)
	}
	row("Scanned", c.Previous.Timestamp.Format(timeLayout), c.Current.Timestamp.Format(timeLayout))
	row("Status", string(c.Previous.Status), string(c.Current.Status))
	row("Threat score", scoreText(c.Previous.ThreatScore, c.Previous.RiskLevel), scoreText(c.Current.ThreatScore, c.Current.RiskLevel))
	row("Category", c.Previous.Category, c.Current.Category)
	row("Emails", strconv.Itoa(c.Previous.Emails), strconv.Itoa(c.Current.Emails))
	row("Crypto", strconv.Itoa(c.Previous.Crypto), strconv.Itoa(c.Current.Crypto))
	row("Malicious files", strconv.Itoa(c.Previous.MaliciousFiles), strconv.Itoa(c.Current.MaliciousFiles))
	sb.WriteString("\n")

	sb.WriteString("CHANGES\n")
	sb.WriteString(thinSeparator + "\n")
	if len(c.Reasons) == 0 {
		sb.WriteString("  No significant changes\n")
	}
	for _, r := range c.Reasons {
		fmt.Fprintf(&sb, "  - %s\n", r)
	}
	sb.WriteString("\n")
	return io.WriteString(w.output, sb.String())
}

// WriteAlerts lists alerts newest first.
func (w *SimpleWriter) WriteAlerts(alerts []*model.Alert) (int, error) {
	var sb strings.Builder
	if len(alerts) == 0 {
		sb.WriteString("No alerts.\n")
		return io.WriteString(w.output, sb.String())
	}
	for _, a := range alerts {
		ack := ""
		if a.Status == model.AlertAcknowledged {
			ack = " (acknowledged)"
		}
		fmt.Fprintf(&sb, "%s  [%-6s] %s%s\n", a.CreatedAt.Format(timeLayout), a.Severity, a.Reason, ack)
		fmt.Fprintf(&sb, "    id: %s  url: %s\n", a.ID, a.URL)
		if a.IOCValue != "" {
			fmt.Fprintf(&sb, "    %s: %s (seen on %d URLs)\n", a.IOCType, a.IOCValue, a.ReuseCount)
		}
	}
	return io.WriteString(w.output, sb.String())
}

// WriteHistory lists the latest scan of each URL.
func (w *SimpleWriter) WriteHistory(docs []*model.ScanDocument) (int, error) {
	var sb strings.Builder
	if len(docs) == 0 {
		sb.WriteString("No scans recorded.\n")
		return io.WriteString(w.output, sb.String())
	}
	for _, d := range docs {
		fmt.Fprintf(&sb, "%s  %-7s %-14s %s\n",
			d.Timestamp.Format(timeLayout), d.Status, scoreText(d.ThreatScore, d.RiskLevel), d.URL)
		fmt.Fprintf(&sb, "    id: %s  category: %s  title: %s\n", d.ID, d.Category, truncateString(d.Title, 60))
	}
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeScan(sb *strings.Builder, res *scan.Result) {
	doc := res.Document
	s := scan.Summarize(doc)

	sb.WriteString(separator + "\n")
	sb.WriteString("DARKWATCH SCAN REPORT\n")
	sb.WriteString(separator + "\n")
	fmt.Fprintf(sb, "URL:           %s\n", doc.URL)
	fmt.Fprintf(sb, "Scanned:       %s\n", doc.Timestamp.Format(timeLayout))
	fmt.Fprintf(sb, "Status:        %s\n", statusText(doc))
	if doc.HasContent() {
		fmt.Fprintf(sb, "Title:         %s\n", doc.Title)
	}
	fmt.Fprintf(sb, "Threat score:  %s\n", scoreText(doc.ThreatScore, doc.RiskLevel))
	fmt.Fprintf(sb, "Category:      %s (confidence %.2f)\n", doc.Category, doc.Confidence)
	if res.PreviousScore != nil {
		fmt.Fprintf(sb, "Score change:  %+d (was %d)\n", res.ScoreDelta, *res.PreviousScore)
	}
	if doc.ContentChanged {
		sb.WriteString("Content:       CHANGED since last scan\n")
	}
	if s.PGPDetected {
		sb.WriteString("PGP:           detected\n")
	}
	sb.WriteString("\n")

	w.writeList(sb, "EMAILS", doc.Emails)
	w.writeList(sb, "CRYPTO ADDRESSES", doc.CryptoAddresses)
	w.writeList(sb, "MATCHED KEYWORDS", doc.Evidence.MatchedKeywords)
	w.writeFiles(sb, doc.FileAnalysis)
	w.writeAlertsSection(sb, res.Alerts)
}

func (w *SimpleWriter) writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s (%d)\n", title, len(items))
	sb.WriteString(thinSeparator + "\n")
	for _, it := range items {
		fmt.Fprintf(sb, "  - %s\n", it)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFiles(sb *strings.Builder, files []model.FileReport) {
	if len(files) == 0 {
		return
	}
	fmt.Fprintf(sb, "FILES (%d)\n", len(files))
	sb.WriteString(thinSeparator + "\n")
	for _, f := range files {
		fmt.Fprintf(sb, "  - %s (%d bytes) malware: %s\n", f.FileName, f.FileSize, f.Malware.Status)
		fmt.Fprintf(sb, "    sha256: %s\n", f.FileHash)
		for _, hit := range f.Malware.Threats {
			fmt.Fprintf(sb, "    ! %s\n", hit.Threat)
		}
		if !w.verbose {
			continue
		}
		for _, k := range slices.Sorted(maps.Keys(f.Metadata.Fields)) {
			fmt.Fprintf(sb, "    meta %s: %s\n", k, truncateString(f.Metadata.Fields[k], 60))
		}
		for _, sig := range f.Signatures.Signatures {
			fmt.Fprintf(sb, "    signature: %s\n", sig)
		}
		if f.Strings.Count > 0 {
			fmt.Fprintf(sb, "    strings: %d\n", f.Strings.Count)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeAlertsSection(sb *strings.Builder, alerts []*model.Alert) {
	if len(alerts) == 0 {
		sb.WriteString("No alerts raised.\n\n")
		return
	}
	fmt.Fprintf(sb, "ALERTS (%d)\n", len(alerts))
	sb.WriteString(thinSeparator + "\n")
	for _, a := range alerts {
		fmt.Fprintf(sb, "  [%s] %s\n", a.Severity, a.Reason)
	}
	sb.WriteString("\n")
}

func statusText(doc *model.ScanDocument) string {
	parts := []string{string(doc.Status)}
	if doc.StatusCode != nil {
		parts = append(parts, "HTTP "+strconv.Itoa(*doc.StatusCode))
	}
	if doc.ResponseTime != nil {
		d := time.Duration(*doc.ResponseTime * float64(time.Second))
		parts = append(parts, d.Round(time.Millisecond).String())
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + " (" + strings.Join(parts[1:], ", ") + ")"
}

func scoreText(score int, risk model.RiskLevel) string {
	return fmt.Sprintf("%d/100 %s", score, risk)
}
