package model

import (
	"fmt"
	"strings"
)

// Severity ranks alerts. It shares its labels with RiskLevel so that an
// alert raised from a document can inherit the document's risk.
type Severity int

const (
	// SeverityLow is the default for informational alerts.
	SeverityLow Severity = iota
	// SeverityMedium is used for file-hash reuse and medium-risk documents.
	SeverityMedium
	// SeverityHigh is used for indicator reuse and high-risk documents.
	SeverityHigh
)

// String returns the upper-case label of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a label such as "high" into a Severity.
func ParseSeverity(label string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", label)
	}
}

// SeverityForRisk maps a document risk level onto an alert severity.
func SeverityForRisk(r RiskLevel) Severity {
	switch r {
	case RiskHigh:
		return SeverityHigh
	case RiskMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
