package parser

import (
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/darkwatch/internal/model"
)

const (
	// MaxLinks bounds the number of links kept per page.
	MaxLinks = 200
	// MaxKeywords is the number of keywords returned.
	MaxKeywords = 10
	// PreviewLength is the preview size in runes.
	PreviewLength = 500
	// DefaultTitle is used when the page has no title.
	DefaultTitle = "No title"
)

// ErrEmptyDocument is returned when there is nothing to parse.
var ErrEmptyDocument = errors.New("empty document")

// DownloadableExtensions lists the extensions treated as file links.
var DownloadableExtensions = map[string]struct{}{
	// archives
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {},
	// executables
	".exe": {}, ".dll": {}, ".so": {}, ".app": {}, ".bin": {}, ".msi": {},
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".txt": {}, ".rtf": {}, ".odt": {},
	// images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".svg": {}, ".webp": {},
	".tiff": {}, ".ico": {}, ".psd": {},
	// media
	".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".flv": {}, ".mp3": {}, ".wav": {},
	".flac": {}, ".aac": {}, ".ogg": {},
	// code
	".py": {}, ".js": {}, ".java": {}, ".cpp": {}, ".c": {}, ".go": {}, ".rs": {},
	".sh": {}, ".bat": {}, ".ps1": {},
	// disk images and packages
	".iso": {}, ".img": {}, ".dmg": {}, ".apk": {}, ".deb": {}, ".rpm": {},
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"can": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "have": {}, "has": {}, "had": {},
}

// Result is everything extracted from one page.
type Result struct {
	Title       string
	Links       []model.Link
	FileLinks   []model.FileLink
	Keywords    []string
	TextContent string
	TextPreview string
}

// Parse extracts a Result from htmlContent. Relative links are resolved
// against baseURL when it is a valid absolute URL.
func Parse(htmlContent, baseURL string) (*Result, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return nil, ErrEmptyDocument
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript").Remove()

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	res := &Result{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: extractLinks(doc, base),
	}
	if res.Title == "" {
		res.Title = DefaultTitle
	}
	res.FileLinks = FileLinks(res.Links)

	parts := []string{visibleText(doc.Nodes)}
	doc.Find("textarea, pre, code").Each(func(_ int, s *goquery.Selection) {
		if block := collapseSpace(visibleText(s.Nodes)); block != "" {
			parts = append(parts, block)
		}
	})
	for _, l := range res.Links {
		parts = append(parts, l.URL)
	}
	res.TextContent = collapseSpace(strings.Join(parts, " "))
	res.TextPreview = truncateRunes(res.TextContent, PreviewLength)
	res.Keywords = Keywords(res.TextContent, MaxKeywords)
	return res, nil
}

func extractLinks(doc *goquery.Document, base *url.URL) []model.Link {
	links := make([]model.Link, 0)
	seen := make(map[string]struct{})
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		resolved := resolve(base, href)
		if resolved == "" {
			return true
		}
		if _, dup := seen[resolved]; dup {
			return true
		}
		seen[resolved] = struct{}{}
		links = append(links, model.Link{
			URL:  resolved,
			Text: collapseSpace(s.Text()),
		})
		return len(links) < MaxLinks
	})
	return links
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || href == "#" ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

// FileLinks returns the links whose path ends in a downloadable extension.
func FileLinks(links []model.Link) []model.FileLink {
	files := make([]model.FileLink, 0)
	for _, l := range links {
		ext := fileExtension(l.URL)
		if ext == "" {
			continue
		}
		files = append(files, model.FileLink{URL: l.URL, Text: l.Text, Extension: ext})
	}
	return files
}

func fileExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := DownloadableExtensions[ext]; !ok {
		return ""
	}
	return ext
}

// Keywords returns the n most frequent lowercase alphabetic words of at
// least three letters, excluding stop words. Ties keep first-seen order.
func Keywords(text string, n int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		if len(tok) < 3 || !isASCIILower(tok) {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// isSeparator splits on anything that is not a word character, so
// "abc1" stays one token and is rejected as a whole.
func isSeparator(r rune) bool {
	return r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isASCIILower(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// visibleText joins every text node under nodes with single spaces.
func visibleText(nodes []*html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
