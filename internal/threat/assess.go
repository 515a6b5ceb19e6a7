package threat

import "github.com/nao1215/darkwatch/internal/model"

// Assessment bundles the score, risk level and classification of a document.
type Assessment struct {
	// Keywords is the effective keyword set after full-text expansion.
	Keywords       []string
	Score          int
	Risk           model.RiskLevel
	Classification Classification
}

// Assess expands keywords against text, then scores and classifies.
func Assess(text string, keywords, emails, crypto []string, malware bool) Assessment {
	effective := ExpandKeywords(keywords, text)
	score := Score(emails, crypto, effective, text)
	return Assessment{
		Keywords:       effective,
		Score:          score,
		Risk:           RiskFor(score),
		Classification: Classify(effective, crypto, emails, malware),
	}
}

// WithScore returns a copy of a with the score replaced and the risk
// level recomputed.
func (a Assessment) WithScore(score int) Assessment {
	a.Score = clampScore(score)
	a.Risk = RiskFor(a.Score)
	return a
}
