package threat

import "strings"

// Score computes the additive threat score:
// +30 for any crypto address, +20 for any email and +10 for every distinct
// suspicious term found in keywords or in the lowercased text. The result
// is clamped to [0, 100].
func Score(emails, crypto, keywords []string, text string) int {
	score := 0
	if len(crypto) > 0 {
		score += ScoreCrypto
	}
	if len(emails) > 0 {
		score += ScoreEmail
	}
	score += len(matchedSuspiciousTerms(keywords, text)) * ScoreSuspiciousTerm
	return clampScore(score)
}

// matchedSuspiciousTerms returns each suspicious term present in keywords
// or in text, counted once.
func matchedSuspiciousTerms(keywords []string, text string) map[string]struct{} {
	matched := suspiciousTerms().find(strings.ToLower(text))
	lowered := lowerSet(keywords)
	for _, term := range SuspiciousTerms {
		if _, ok := lowered[term]; ok {
			matched[term] = struct{}{}
		}
	}
	return matched
}

// ApplyContentChangePenalty adds ContentChangePenalty to score, capped at 100.
func ApplyContentChangePenalty(score int) int {
	return clampScore(score + ContentChangePenalty)
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}

func lowerSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}
