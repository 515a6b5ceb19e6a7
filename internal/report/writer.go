package report

import (
	"io"

	"github.com/nao1215/darkwatch/internal/scan"
)

// Writer renders scan output in one format.
type Writer interface {
	// WriteScan outputs the result of a single scan.
	WriteScan(res *scan.Result) (int, error)

	// WriteBatch outputs the results of a batch scan in input order.
	WriteBatch(items []scan.BatchItem) (int, error)

	// WriteComparison outputs a baseline/current comparison.
	WriteComparison(c *scan.Comparison) (int, error)
}

// MultiWriter writes to multiple Writers in order and stops on the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteScan implements Writer.
func (m *MultiWriter) WriteScan(res *scan.Result) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteScan(res) })
}

// WriteBatch implements Writer.
func (m *MultiWriter) WriteBatch(items []scan.BatchItem) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteBatch(items) })
}

// WriteComparison implements Writer.
func (m *MultiWriter) WriteComparison(c *scan.Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(c) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Format names accepted by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// New returns the Writer for format, falling back to text.
func New(format string, output io.Writer, version string) Writer {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version))
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	default:
		return NewSimpleWriter(output)
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
