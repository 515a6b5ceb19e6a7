package scan

import (
	"fmt"
	"time"

	"github.com/nao1215/darkwatch/internal/ledger"
	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/threat"
)

// EvaluateAlerts returns one alert per condition triggered by a completed
// run. Conditions are independent and never merged.
func EvaluateAlerts(run *Run, now time.Time) []*model.Alert {
	doc := run.Document
	if doc == nil {
		return nil
	}

	var alerts []*model.Alert
	if threat.IsHighThreat(doc.ThreatScore) {
		a := documentAlert(doc, model.AlertHighThreat, now)
		a.Reason = fmt.Sprintf("High Threat Score (%d/100)", doc.ThreatScore)
		a.Details = map[string]any{
			"threat_reason": fmt.Sprintf("Threat score exceeds threshold: %d", doc.ThreatScore),
		}
		alerts = append(alerts, a)
	}
	if doc.ClamAVDetected {
		a := documentAlert(doc, model.AlertMalware, now)
		a.Reason = "Malware Detected"
		a.Details = map[string]any{
			"malware_info":   doc.ClamAVDetails,
			"infected_files": doc.MalwareFileCount(),
		}
		alerts = append(alerts, a)
	}
	if doc.ContentChanged {
		a := documentAlert(doc, model.AlertContentChange, now)
		a.Reason = "Content Change Detected"
		a.Details = map[string]any{
			"content_change": true,
			"content_hash":   doc.ContentHash,
		}
		if run.Previous != nil {
			a.Details["previous_hash"] = run.Previous.ContentHash
		}
		alerts = append(alerts, a)
	}
	if run.PreviousScore != nil && run.ScoreDelta > 0 {
		a := documentAlert(doc, model.AlertScoreIncrease, now)
		a.Reason = "Threat Score Increase"
		a.PreviousScore = run.PreviousScore
		a.ScoreDelta = run.ScoreDelta
		a.Details = map[string]any{
			"content_changed":  doc.ContentChanged,
			"malware_detected": doc.ClamAVDetected,
			"new_emails":       len(doc.Emails),
			"new_crypto":       len(doc.CryptoAddresses),
		}
		alerts = append(alerts, a)
	}
	for _, r := range run.Reuse {
		if r.CrossURL {
			alerts = append(alerts, reuseAlert(r, now))
		}
	}
	return alerts
}

func documentAlert(doc *model.ScanDocument, kind model.AlertKind, now time.Time) *model.Alert {
	return &model.Alert{
		URL:         doc.URL,
		Kind:        kind,
		Severity:    model.SeverityForRisk(doc.RiskLevel),
		ThreatScore: doc.ThreatScore,
		Category:    doc.Category,
		Confidence:  doc.Confidence,
		Status:      model.AlertNew,
		CreatedAt:   now,
	}
}

func reuseAlert(r ledger.Reuse, now time.Time) *model.Alert {
	severity := model.SeverityHigh
	if r.Type == model.IOCFileHash {
		severity = model.SeverityMedium
	}
	return &model.Alert{
		URL:        r.URL,
		Kind:       model.AlertIOCReuse,
		Reason:     "IOC Reuse Detected - " + iocLabel(r.Type),
		Severity:   severity,
		IOCValue:   r.Value,
		IOCType:    r.Type,
		ReuseCount: r.ReuseCount,
		Details: map[string]any{
			"previous_urls": r.OtherURLs(),
			"first_seen":    r.FirstSeen,
		},
		Status:    model.AlertNew,
		CreatedAt: now,
	}
}

func iocLabel(t model.IOCType) string {
	switch t {
	case model.IOCEmail:
		return "Email"
	case model.IOCCrypto:
		return "Crypto Address"
	case model.IOCFileHash:
		return "File Hash"
	default:
		return string(t)
	}
}
