package threat

import (
	"math"
	"slices"
	"strings"

	"github.com/nao1215/darkwatch/internal/model"
)

// Classification is the best-fit category for a document.
type Classification struct {
	Category   string
	Confidence float64
	Evidence   model.Evidence
}

type categoryMatch struct {
	category Category
	matched  []string
	weighted float64
}

// Classify selects the category whose keyword intersection has the
// highest weighted score. Ties keep the category declared first in
// Categories. When nothing matches, crypto-only content is classified as
// financial and everything else falls back to the communication category.
// The label is replaced by MarketplaceOverride when keywords contain both
// "escrow" and "carding".
func Classify(keywords, crypto, emails []string, malware bool) Classification {
	kw := lowerSet(keywords)

	var best *categoryMatch
	for _, c := range Categories {
		var matched []string
		for _, k := range c.Keywords {
			if _, ok := kw[k]; ok {
				matched = append(matched, k)
			}
		}
		if len(matched) == 0 {
			continue
		}
		m := &categoryMatch{
			category: c,
			matched:  matched,
			weighted: float64(len(matched)) * c.Weight,
		}
		if best == nil || m.weighted > best.weighted {
			best = m
		}
	}

	if best == nil && len(crypto) > 0 {
		c, _ := categoryByName(CategoryFinancial)
		best = &categoryMatch{
			category: c,
			matched:  []string{cryptoOnlyKeyword},
			weighted: cryptoOnlyWeightedScore,
		}
	}
	if best == nil {
		c, _ := categoryByName(CategoryCommunication)
		best = &categoryMatch{
			category: c,
			matched:  []string{},
			weighted: defaultWeightedScore,
		}
	}

	_, hasEscrow := kw["escrow"]
	_, hasCarding := kw["carding"]
	force := hasEscrow && hasCarding

	label := best.category.Name
	if force {
		label = MarketplaceOverride
	}

	evidenceKeywords := best.matched
	if len(evidenceKeywords) > maxEvidenceKeywords {
		evidenceKeywords = evidenceKeywords[:maxEvidenceKeywords]
	}

	return Classification{
		Category:   label,
		Confidence: confidence(len(best.matched), len(best.category.Keywords)),
		Evidence: model.Evidence{
			KeywordMatches:   len(best.matched),
			MatchedKeywords:  slices.Clone(evidenceKeywords),
			CryptoDetected:   len(crypto) > 0,
			EmailDetected:    len(emails) > 0,
			MalwareDetected:  malware,
			WeightedScore:    best.weighted,
			CategoryBoost:    best.category.Boost,
			MarketplaceForce: force,
		},
	}
}

// confidence is matched/total capped at 0.99 and rounded to two decimals.
// The default fallback has no matches and therefore a confidence of zero.
func confidence(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	c := math.Min(maxConfidence, float64(matched)/float64(total))
	return math.Round(c*100) / 100
}

// ExpandKeywords returns keywords lowercased and extended with every
// category term that occurs as a substring of the lowercased text.
// Substring matching means "hack" is found inside "hackathon"; that
// over-match is accepted.
func ExpandKeywords(keywords []string, text string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(k)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	found := categoryTerms().find(strings.ToLower(text))
	for _, term := range categoryTerms().terms {
		if _, ok := found[term]; !ok {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// KnownCategory reports whether name is a table category or the
// marketplace override label.
func KnownCategory(name string) bool {
	if name == MarketplaceOverride {
		return true
	}
	_, ok := categoryByName(name)
	return ok
}
