package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/darkwatch/internal/ledger"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/scan"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent       bool
	indentPrefix string
	indentString string

	version string
	now     func() time.Time
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the darkwatch version in every report.
func WithVersion(v string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = v
	}
}

// WithJSONClock sets the clock used for generated_at.
func WithJSONClock(now func() time.Time) JSONWriterOption {
	return func(w *JSONWriter) {
		w.now = now
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps one scan with output metadata. The persisted document
// and the presentation summary are both included so consumers can pick
// either shape.
type JSONReport struct {
	Version       string              `json:"version,omitempty"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Summary       scan.Summary        `json:"summary"`
	Document      *model.ScanDocument `json:"document"`
	Alerts        []*model.Alert      `json:"alerts"`
	Reuse         []ledger.Reuse      `json:"reuse"`
	PreviousScore *int                `json:"previous_score,omitempty"`
	ScoreDelta    int                 `json:"score_delta"`
}

// BatchEntry is one element of a batch report.
type BatchEntry struct {
	URL    string      `json:"url"`
	Report *JSONReport `json:"report,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (w *JSONWriter) newReport(res *scan.Result) *JSONReport {
	return &JSONReport{
		Version:       w.version,
		GeneratedAt:   w.now().UTC(),
		Summary:       scan.Summarize(res.Document),
		Document:      res.Document,
		Alerts:        res.Alerts,
		Reuse:         res.Reuse,
		PreviousScore: res.PreviousScore,
		ScoreDelta:    res.ScoreDelta,
	}
}

// WriteScan implements Writer.
func (w *JSONWriter) WriteScan(res *scan.Result) (int, error) {
	return w.writeJSON(w.newReport(res))
}

// WriteBatch implements Writer. The output is a single JSON array.
func (w *JSONWriter) WriteBatch(items []scan.BatchItem) (int, error) {
	entries := make([]BatchEntry, 0, len(items))
	for _, it := range items {
		e := BatchEntry{URL: it.URL, Error: it.Error}
		if it.Result != nil {
			e.Report = w.newReport(it.Result)
		}
		entries = append(entries, e)
	}
	return w.writeJSON(entries)
}

// WriteComparison implements Writer.
func (w *JSONWriter) WriteComparison(c *scan.Comparison) (int, error) {
	return w.writeJSON(c)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// WriteValue writes any JSON-serialisable value, such as an alert list.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	return w.writeJSON(v)
}
