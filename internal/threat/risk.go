package threat

import "github.com/nao1215/darkwatch/internal/model"

const (
	// ContentChangePenalty is added to the score of a document whose
	// content hash differs from the previous scan of the same URL.
	ContentChangePenalty = 15

	// HighThreatThreshold is the score above which a high threat alert fires.
	HighThreatThreshold = 60

	// lowRiskCeiling is the first score that is no longer LOW.
	lowRiskCeiling = 30
)

// RiskFor maps a score to its risk level.
// Scores below 30 are LOW, 30 to 60 inclusive are MEDIUM, above 60 HIGH.
func RiskFor(score int) model.RiskLevel {
	switch {
	case score < lowRiskCeiling:
		return model.RiskLow
	case score <= HighThreatThreshold:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// IsHighThreat reports whether score crosses the high threat threshold.
func IsHighThreat(score int) bool {
	return score > HighThreatThreshold
}
