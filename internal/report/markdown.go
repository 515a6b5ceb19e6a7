package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

// MarkdownWriter outputs reports as GitHub flavored Markdown with tables,
// alerts and mermaid pie charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteScan implements Writer.
func (w *MarkdownWriter) WriteScan(res *scan.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Darkwatch Scan Report")
	md.PlainText("")
	w.writeScanBody(md, res)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteBatch implements Writer.
func (w *MarkdownWriter) WriteBatch(items []scan.BatchItem) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Darkwatch Batch Scan Report")
	md.PlainText("")

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		if it.Result == nil {
			rows = append(rows, []string{"`" + it.URL + "`", "-", "-", "failed: " + truncateString(it.Error, 60)})
			continue
		}
		d := it.Result.Document
		rows = append(rows, []string{"`" + d.URL + "`", strconv.Itoa(d.ThreatScore), string(d.RiskLevel), d.Category})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Score", "Risk", "Category"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, it := range items {
		if it.Result == nil {
			continue
		}
		md.H2(it.URL)
		md.PlainText("")
		w.writeScanBody(md, it.Result)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteComparison implements Writer.
func (w *MarkdownWriter) WriteComparison(c *scan.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Darkwatch Scan Comparison")
	md.PlainText("")
	md.PlainTextf("Comparing the first and latest of %d scans of `%s`.", c.ScanCount, c.URL)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Baseline", "Current"},
		Rows: [][]string{
			{"Scanned", c.Previous.Timestamp.Format(timeLayout), c.Current.Timestamp.Format(timeLayout)},
			{"Status", string(c.Previous.Status), string(c.Current.Status)},
			{"Threat Score", scoreText(c.Previous.ThreatScore, c.Previous.RiskLevel), scoreText(c.Current.ThreatScore, c.Current.RiskLevel)},
			{"Category", c.Previous.Category, c.Current.Category},
			{"Emails", strconv.Itoa(c.Previous.Emails), strconv.Itoa(c.Current.Emails)},
			{"Crypto Addresses", strconv.Itoa(c.Previous.Crypto), strconv.Itoa(c.Current.Crypto)},
			{"Malicious Files", strconv.Itoa(c.Previous.MaliciousFiles), strconv.Itoa(c.Current.MaliciousFiles)},
		},
	})
	md.PlainText("")

	md.H2("Changes")
	md.PlainText("")
	switch {
	case len(c.Reasons) == 0:
		md.Tip("No significant changes between the baseline and the latest scan.")
	case c.Changes.ThreatScoreDelta > 0:
		md.Warningf("Threat score rose by %d points since the baseline.", c.Changes.ThreatScoreDelta)
	default:
		md.Note("The service changed since the baseline.")
	}
	md.PlainText("")
	if len(c.Reasons) > 0 {
		md.BulletList(c.Reasons...)
		md.PlainText("")
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeScanBody(md *markdown.Markdown, res *scan.Result) {
	doc := res.Document
	s := scan.Summarize(doc)

	rows := [][]string{
		{"URL", "`" + doc.URL + "`"},
		{"Scan Date", doc.Timestamp.Format(timeLayout)},
		{"Status", statusText(doc)},
		{"Title", s.Title},
		{"Threat Score", scoreText(doc.ThreatScore, doc.RiskLevel)},
		{"Category", fmt.Sprintf("%s (confidence %.2f)", doc.Category, doc.Confidence)},
		{"PGP Detected", yesNo(s.PGPDetected)},
		{"Content Changed", yesNo(doc.ContentChanged)},
	}
	if res.PreviousScore != nil {
		rows = append(rows, []string{"Score Change", fmt.Sprintf("%+d (was %d)", res.ScoreDelta, *res.PreviousScore)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeRiskAlert(md, doc)
	w.writeBreakdown(md, s)
	w.writeIndicators(md, doc)
	w.writeFiles(md, doc)
	w.writeAlerts(md, res.Alerts)
}

// writeRiskAlert writes a GitHub alert matching the document risk.
func (w *MarkdownWriter) writeRiskAlert(md *markdown.Markdown, doc *model.ScanDocument) {
	switch {
	case !doc.HasContent():
		md.Importantf("The service could not be analysed (%s).", doc.Status)
	case doc.ClamAVDetected:
		md.Cautionf("Malware detected in %d downloaded file(s).", doc.MalwareFileCount())
	case doc.RiskLevel == model.RiskHigh:
		md.Cautionf("High threat score (%d/100) in category %s.", doc.ThreatScore, doc.Category)
	case doc.RiskLevel == model.RiskMedium:
		md.Warningf("Medium threat score (%d/100) in category %s.", doc.ThreatScore, doc.Category)
	default:
		md.Tip("Low threat score. No strong threat indicators found.")
	}
	md.PlainText("")
}

// writeBreakdown writes the threat breakdown as a mermaid pie chart.
func (w *MarkdownWriter) writeBreakdown(md *markdown.Markdown, s scan.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Threat Breakdown"),
		piechart.WithShowData(true),
	)
	plotted := 0
	for _, item := range s.ThreatBreakdown {
		if item.Value <= 0 {
			continue
		}
		chart.LabelAndIntValue(item.Label, uint64(item.Value))
		plotted++
	}
	if plotted == 0 {
		return
	}
	md.H2("Threat Breakdown")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeIndicators(md *markdown.Markdown, doc *model.ScanDocument) {
	if len(doc.Emails) == 0 && len(doc.CryptoAddresses) == 0 && len(doc.Evidence.MatchedKeywords) == 0 {
		return
	}
	md.H2("Indicators")
	md.PlainText("")
	sections := []struct {
		title string
		items []string
	}{
		{"### Emails", doc.Emails},
		{"### Crypto Addresses", doc.CryptoAddresses},
		{"### Matched Keywords", doc.Evidence.MatchedKeywords},
	}
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		md.PlainText(sec.title)
		md.PlainText("")
		md.BulletList(sec.items...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, doc *model.ScanDocument) {
	if len(doc.FileAnalysis) == 0 {
		return
	}
	md.H2("Downloaded Files")
	md.PlainText("")

	rows := make([][]string, len(doc.FileAnalysis))
	for i, f := range doc.FileAnalysis {
		verdict := string(f.Malware.Status)
		if len(f.Malware.Threats) > 0 {
			verdict += ": " + f.Malware.Threats[0].Threat
		}
		rows[i] = []string{
			f.FileName,
			strconv.FormatInt(f.FileSize, 10),
			"`" + truncateString(f.FileHash, 16) + "`",
			verdict,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"File", "Size", "SHA-256", "Malware"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range doc.FileAnalysis {
		if len(f.Signatures.Signatures) == 0 {
			continue
		}
		md.Details(f.FileName+" signatures", strings.Join(f.Signatures.Signatures, "\n"))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlerts(md *markdown.Markdown, alerts []*model.Alert) {
	md.H2("Alerts")
	md.PlainText("")
	if len(alerts) == 0 {
		md.PlainText("No alerts raised.")
		md.PlainText("")
		return
	}
	rows := make([][]string, len(alerts))
	for i, a := range alerts {
		rows[i] = []string{a.Severity.String(), string(a.Kind), a.Reason}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Kind", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [darkwatch](https://github.com/nao1215/darkwatch)*")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
