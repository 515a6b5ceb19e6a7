package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/darkwatch/internal/model"
)

// Comparison describes how a URL changed between two scans.
type Comparison struct {
	URL       string          `json:"url"`
	ScanCount int             `json:"scan_count"`
	Current   ScanSnapshot    `json:"current"`
	Previous  ScanSnapshot    `json:"previous"`
	Changes   ComparisonDelta `json:"changes"`
	Reasons   []string        `json:"reasons"`
}

// ScanSnapshot is the part of a document a comparison looks at.
type ScanSnapshot struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	ThreatScore    int               `json:"threat_score"`
	RiskLevel      model.RiskLevel   `json:"risk_level"`
	Category       string            `json:"category"`
	Status         model.FetchStatus `json:"url_status"`
	ContentChanged bool              `json:"content_changed"`
	Emails         int               `json:"emails"`
	Crypto         int               `json:"crypto"`
	MaliciousFiles int               `json:"malicious_files"`
}

// ComparisonDelta holds the differences between two snapshots.
type ComparisonDelta struct {
	ThreatScoreDelta  int  `json:"threat_score_delta"`
	RiskLevelChanged  bool `json:"risk_level_changed"`
	CategoryChanged   bool `json:"category_changed"`
	StatusChanged     bool `json:"status_changed"`
	NewEmails         int  `json:"new_emails"`
	NewCrypto         int  `json:"new_crypto"`
	NewMaliciousFiles int  `json:"new_malicious_files"`
}

// Compare compares the oldest scan of url with its latest one.
func (o *Orchestrator) Compare(ctx context.Context, url string) (*Comparison, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", model.ErrInvalidInput)
	}
	scans, err := o.store.ScansByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(scans) < 2 {
		return nil, fmt.Errorf("%w: %s has been scanned %d time(s)", model.ErrInsufficientHistory, url, len(scans))
	}
	c := CompareDocuments(scans[0], scans[len(scans)-1])
	c.ScanCount = len(scans)
	return c, nil
}

// CompareDocuments compares baseline with current.
func CompareDocuments(baseline, current *model.ScanDocument) *Comparison {
	prev := snapshot(baseline)
	cur := snapshot(current)
	delta := ComparisonDelta{
		ThreatScoreDelta:  cur.ThreatScore - prev.ThreatScore,
		RiskLevelChanged:  cur.RiskLevel != prev.RiskLevel,
		CategoryChanged:   cur.Category != prev.Category,
		StatusChanged:     cur.Status != prev.Status,
		NewEmails:         cur.Emails - prev.Emails,
		NewCrypto:         cur.Crypto - prev.Crypto,
		NewMaliciousFiles: cur.MaliciousFiles - prev.MaliciousFiles,
	}
	return &Comparison{
		URL:       current.URL,
		ScanCount: 2,
		Current:   cur,
		Previous:  prev,
		Changes:   delta,
		Reasons:   reasons(prev, cur, delta),
	}
}

func snapshot(doc *model.ScanDocument) ScanSnapshot {
	return ScanSnapshot{
		ID:             doc.ID,
		Timestamp:      doc.Timestamp,
		ThreatScore:    doc.ThreatScore,
		RiskLevel:      doc.RiskLevel,
		Category:       doc.Category,
		Status:         doc.Status,
		ContentChanged: doc.ContentChanged,
		Emails:         len(doc.Emails),
		Crypto:         len(doc.CryptoAddresses),
		MaliciousFiles: doc.MalwareFileCount(),
	}
}

func reasons(prev, cur ScanSnapshot, d ComparisonDelta) []string {
	out := make([]string, 0)
	if d.NewEmails > 0 {
		out = append(out, fmt.Sprintf("%d new email(s) discovered", d.NewEmails))
	}
	if d.NewCrypto > 0 {
		out = append(out, fmt.Sprintf("%d new crypto address(es) found", d.NewCrypto))
	}
	if cur.ContentChanged && !prev.ContentChanged {
		out = append(out, "Content has changed since baseline")
	}
	if d.RiskLevelChanged {
		out = append(out, fmt.Sprintf("Risk level changed from %s to %s", prev.RiskLevel, cur.RiskLevel))
	}
	if d.StatusChanged {
		out = append(out, fmt.Sprintf("URL status changed from %s to %s", prev.Status, cur.Status))
	}
	if d.CategoryChanged {
		out = append(out, fmt.Sprintf("Category changed from %s to %s", prev.Category, cur.Category))
	}
	if d.NewMaliciousFiles > 0 {
		out = append(out, fmt.Sprintf("%d malicious file(s) detected", d.NewMaliciousFiles))
	}
	if d.ThreatScoreDelta > 0 && len(out) == 0 {
		out = append(out, fmt.Sprintf("Threat increased by %d points", d.ThreatScoreDelta))
	}
	return out
}
