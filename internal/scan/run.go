package scan

import (
	"time"

	"github.com/nao1215/darkwatch/internal/fetch"
	"github.com/nao1215/darkwatch/internal/indicator"
	"github.com/nao1215/darkwatch/internal/ledger"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/parser"
	"github.com/nao1215/darkwatch/internal/threat"
)

// Run is the state carried through the steps of one scan.
type Run struct {
	URL       string
	StartedAt time.Time

	Fetch *fetch.Result
	// RawURL is set when the page text came from a paste host's raw view.
	RawURL string
	// Page is nil when the fetch produced nothing parseable.
	Page *parser.Result

	Files      []model.FileReport
	Indicators indicator.Result
	Assessment threat.Assessment

	Document *model.ScanDocument
	Previous *model.ScanDocument

	PreviousScore *int
	ScoreDelta    int

	Reuse  []ledger.Reuse
	Alerts []*model.Alert

	// Performed lists the steps that completed, in order.
	Performed []string
}

func newRun(url string, now time.Time) *Run {
	return &Run{
		URL:       url,
		StartedAt: now,
		Files:     make([]model.FileReport, 0),
		Reuse:     make([]ledger.Reuse, 0),
		Alerts:    make([]*model.Alert, 0),
	}
}

// HasPage reports whether the run produced analysable content.
func (r *Run) HasPage() bool {
	return r.Page != nil
}

// MalwareDetected reports whether any analysed file was flagged.
func (r *Run) MalwareDetected() bool {
	for _, f := range r.Files {
		if f.Malware.Detected {
			return true
		}
	}
	return false
}

// Result is what a completed scan returns to callers.
type Result struct {
	Document      *model.ScanDocument `json:"document"`
	Alerts        []*model.Alert      `json:"alerts"`
	Reuse         []ledger.Reuse      `json:"reuse"`
	PreviousScore *int                `json:"previous_score,omitempty"`
	ScoreDelta    int                 `json:"score_delta"`
	Steps         []string            `json:"steps"`
}

func (r *Run) result() *Result {
	return &Result{
		Document:      r.Document,
		Alerts:        r.Alerts,
		Reuse:         r.Reuse,
		PreviousScore: r.PreviousScore,
		ScoreDelta:    r.ScoreDelta,
		Steps:         r.Performed,
	}
}
