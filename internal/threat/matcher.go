package threat

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// termMatcher finds dictionary terms inside arbitrary text in one pass.
type termMatcher struct {
	terms   []string
	matcher *ahocorasick.Matcher
}

func newTermMatcher(terms []string) *termMatcher {
	seen := make(map[string]struct{}, len(terms))
	uniq := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	return &termMatcher{
		terms:   uniq,
		matcher: ahocorasick.NewStringMatcher(uniq),
	}
}

// find returns the set of terms occurring as substrings of lowered.
// lowered must already be lowercase. find is safe for concurrent use.
func (m *termMatcher) find(lowered string) map[string]struct{} {
	found := make(map[string]struct{})
	if lowered == "" || len(m.terms) == 0 {
		return found
	}
	for _, idx := range m.matcher.MatchThreadSafe([]byte(lowered)) {
		if idx < len(m.terms) {
			found[m.terms[idx]] = struct{}{}
		}
	}
	return found
}

var (
	categoryTerms = sync.OnceValue(func() *termMatcher {
		var all []string
		for _, c := range Categories {
			all = append(all, c.Keywords...)
		}
		return newTermMatcher(all)
	})
	suspiciousTerms = sync.OnceValue(func() *termMatcher {
		return newTermMatcher(SuspiciousTerms)
	})
)
