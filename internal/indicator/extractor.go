package indicator

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Scheme names a cryptocurrency address format.
type Scheme string

const (
	SchemeBitcoinLegacy Scheme = "bitcoin_legacy"
	SchemeBitcoinBech32 Scheme = "bitcoin_bech32"
	SchemeEthereum      Scheme = "ethereum"
	SchemeMonero        Scheme = "monero"
)

// Result is the output of Extract.
type Result struct {
	// Emails is the de-duplicated, sorted set of email addresses.
	Emails []string
	// CryptoAddresses is the de-duplicated, sorted union of every scheme.
	CryptoAddresses []string
	// NormalizedText is the text every pattern ran against.
	NormalizedText string
	// ContentHash is the hex SHA-256 of NormalizedText.
	ContentHash string
}

// cryptoPattern pairs a scheme with its token pattern. Patterns carry no
// word boundaries; boundaries are checked on the surrounding runes so the
// check also covers non-ASCII letters.
type cryptoPattern struct {
	scheme Scheme
	re     *regexp.Regexp
}

// Extractor detects emails and cryptocurrency addresses.
// It is safe for concurrent use.
type Extractor struct {
	emailRegex *regexp.Regexp
	atSpacing  *regexp.Regexp
	dotSpacing *regexp.Regexp
	crypto     []cryptoPattern
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		emailRegex: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		atSpacing:  regexp.MustCompile(`\s*@\s*`),
		dotSpacing: regexp.MustCompile(`\s*\.\s*`),
		crypto: []cryptoPattern{
			// Legacy P2PKH / P2SH: 26-35 chars of base58.
			{SchemeBitcoinLegacy, regexp.MustCompile(`[13][a-km-zA-HJ-NP-Z1-9]{25,34}`)},
			// Segwit: 28-65 chars, lowercase only.
			{SchemeBitcoinBech32, regexp.MustCompile(`bc1[0-9a-z]{25,62}`)},
			{SchemeEthereum, regexp.MustCompile(`0x[a-fA-F0-9]{40}`)},
			// Standard (95) and integrated (106) addresses.
			{SchemeMonero, regexp.MustCompile(`[48][0-9AB][1-9A-HJ-NP-Za-km-z]{93}(?:[1-9A-HJ-NP-Za-km-z]{11})?`)},
		},
	}
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor over raw.
func Extract(raw string) Result {
	return defaultExtractor.Extract(raw)
}

// Extract normalizes raw and returns every indicator found in it.
// It never fails; empty input yields empty sets and the hash of the
// empty string.
func (e *Extractor) Extract(raw string) Result {
	text := Normalize(raw)
	return Result{
		Emails:          e.emails(text),
		CryptoAddresses: e.cryptoAddresses(text),
		NormalizedText:  text,
		ContentHash:     ContentHash(text),
	}
}

// Emails returns the email addresses found in raw.
func (e *Extractor) Emails(raw string) []string {
	return e.emails(Normalize(raw))
}

// CryptoAddresses returns the cryptocurrency addresses found in raw.
func (e *Extractor) CryptoAddresses(raw string) []string {
	return e.cryptoAddresses(Normalize(raw))
}

// SchemeOf reports which address format addr matches in full.
func (e *Extractor) SchemeOf(addr string) (Scheme, bool) {
	for _, p := range e.crypto {
		if loc := p.re.FindStringIndex(addr); loc != nil && loc[0] == 0 && loc[1] == len(addr) {
			return p.scheme, true
		}
	}
	return "", false
}

func (e *Extractor) emails(text string) []string {
	if text == "" {
		return []string{}
	}
	// "user @ domain . com" -> "user@domain.com"
	collapsed := e.atSpacing.ReplaceAllString(text, "@")
	collapsed = e.dotSpacing.ReplaceAllString(collapsed, ".")

	seen := make(map[string]struct{})
	for _, m := range e.emailRegex.FindAllString(collapsed, -1) {
		seen[strings.ToLower(m)] = struct{}{}
	}
	return sortedKeys(seen)
}

func (e *Extractor) cryptoAddresses(text string) []string {
	if text == "" {
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, p := range e.crypto {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if !isTokenBoundary(text, loc[0], loc[1]) {
				continue
			}
			seen[text[loc[0]:loc[1]]] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// isTokenBoundary reports whether text[start:end] is not glued to a word
// character on either side.
func isTokenBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Normalize applies NFKC, strips invisible format characters and turns
// non-breaking spaces into plain spaces.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	composed := norm.NFKC.String(raw)
	return strings.Map(func(r rune) rune {
		switch {
		case isInvisible(r):
			return -1
		case r == '\u00a0':
			return ' '
		default:
			return r
		}
	}, composed)
}

// isInvisible matches soft hyphen, zero-width and bidi marks, bidi
// embeddings, word joiners and invisible operators, and the BOM.
func isInvisible(r rune) bool {
	switch {
	case r == '\u00ad', r == '\ufeff':
		return true
	case r >= '\u200b' && r <= '\u200f':
		return true
	case r >= '\u202a' && r <= '\u202e':
		return true
	case r >= '\u2060' && r <= '\u206f':
		return true
	}
	return false
}

// ContentHash returns the hex SHA-256 digest of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
