package scan

import (
	"strings"
	"time"

	"github.com/nao1215/darkwatch/internal/model"
)

// Presentation limits for Summary.
const (
	summaryListLimit    = 8
	summaryKeywordLimit = 12
	summaryMalwareLimit = 5
	summaryTimeline     = 12
)

// Summary is the presentation view of a scan document.
type Summary struct {
	URL              string             `json:"url"`
	Status           model.FetchStatus  `json:"status"`
	ThreatScore      int                `json:"threatScore"`
	Category         string             `json:"category"`
	RiskLevel        model.RiskLevel    `json:"riskLevel"`
	Confidence       float64            `json:"confidence"`
	ThreatIndicators model.Evidence     `json:"threatIndicators"`
	PGPDetected      bool               `json:"pgpDetected"`
	Emails           []string           `json:"emails"`
	CryptoAddresses  []string           `json:"cryptoAddresses"`
	ContentChanged   bool               `json:"contentChanged"`
	ContentHash      string             `json:"contentHash"`
	Title            string             `json:"title"`
	TextPreview      string             `json:"textPreview"`
	Keywords         []string           `json:"keywords"`
	Links            []model.Link       `json:"links"`
	FileLinks        []model.FileLink   `json:"fileLinks"`
	FileAnalysis     []model.FileReport `json:"fileAnalysis"`
	ClamAV           ClamAVSummary      `json:"clamav"`
	ResponseTime     *float64           `json:"responseTime,omitempty"`
	StatusCode       *int               `json:"statusCode,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
	Categories       []CategoryShare    `json:"categoryDistribution"`
	ThreatBreakdown  []BreakdownItem    `json:"threatBreakdown"`
	Timeline         []TimelinePoint    `json:"timeline"`
}

// ClamAVSummary is the aggregate malware verdict of a document.
type ClamAVSummary struct {
	Status   model.MalwareScanStatus `json:"status,omitempty"`
	Detected bool                    `json:"detected"`
	Details  []model.MalwareHit      `json:"details"`
}

// CategoryShare is one slice of the category distribution chart.
type CategoryShare struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// BreakdownItem is one bar of the threat breakdown chart.
type BreakdownItem struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// TimelinePoint is one response-time observation.
type TimelinePoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Summarize builds the presentation view of doc.
func Summarize(doc *model.ScanDocument) Summary {
	return Summary{
		URL:              doc.URL,
		Status:           doc.Status,
		ThreatScore:      doc.ThreatScore,
		Category:         doc.Category,
		RiskLevel:        doc.RiskLevel,
		Confidence:       doc.Confidence,
		ThreatIndicators: doc.Evidence,
		PGPDetected:      doc.PGPDetected || DetectPGP(doc.TextPreview),
		Emails:           nonNil(doc.Emails),
		CryptoAddresses:  nonNil(doc.CryptoAddresses),
		ContentChanged:   doc.ContentChanged,
		ContentHash:      doc.ContentHash,
		Title:            doc.Title,
		TextPreview:      doc.TextPreview,
		Keywords:         trim(doc.Keywords, summaryKeywordLimit),
		Links:            trim(doc.Links, summaryListLimit),
		FileLinks:        trim(doc.FileLinks, summaryListLimit),
		FileAnalysis:     trim(doc.FileAnalysis, summaryListLimit),
		ClamAV: ClamAVSummary{
			Status:   doc.ClamAVStatus,
			Detected: doc.ClamAVDetected,
			Details:  trim(doc.ClamAVDetails, summaryMalwareLimit),
		},
		ResponseTime:    doc.ResponseTime,
		StatusCode:      doc.StatusCode,
		Timestamp:       doc.Timestamp,
		Categories:      categoryDistribution(doc.Category),
		ThreatBreakdown: threatBreakdown(doc),
		Timeline:        timeline(doc.StatusHistory),
	}
}

// DetectPGP reports whether text mentions PGP.
func DetectPGP(text string) bool {
	return strings.Contains(strings.ToLower(text), "pgp")
}

func categoryDistribution(category string) []CategoryShare {
	if category == "" {
		return []CategoryShare{}
	}
	return []CategoryShare{{Name: category, Value: 1}}
}

func threatBreakdown(doc *model.ScanDocument) []BreakdownItem {
	return []BreakdownItem{
		{Label: "Emails", Value: len(doc.Emails)},
		{Label: "Crypto", Value: len(doc.CryptoAddresses)},
		{Label: "Threat", Value: doc.ThreatScore},
	}
}

func timeline(history []model.StatusEntry) []TimelinePoint {
	if len(history) > summaryTimeline {
		history = history[len(history)-summaryTimeline:]
	}
	points := make([]TimelinePoint, 0, len(history))
	for _, e := range history {
		p := TimelinePoint{Time: e.Timestamp}
		if e.ResponseTime != nil {
			p.Value = *e.ResponseTime
		}
		points = append(points, p)
	}
	return points
}

func trim[T any](items []T, limit int) []T {
	if len(items) > limit {
		items = items[:limit]
	}
	return nonNil(items)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
