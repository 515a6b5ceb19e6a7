package fetch

import (
	"net/url"
	"strings"
)

// RawVariant returns the plain-text URL of a paste on a known paste host.
// It reports false for other URLs and for URLs that already are raw.
func RawVariant(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", false
	}
	last := segments[len(segments)-1]

	switch {
	case host == "pastebin.com":
		if segments[0] == "raw" {
			return "", false
		}
		return "https://pastebin.com/raw/" + last, true
	case host == "paste.ee":
		if segments[0] == "r" || len(segments) < 2 || segments[0] != "p" {
			return "", false
		}
		return "https://paste.ee/r/" + last, true
	case strings.Contains(host, "ghostbin"):
		if last == "raw" {
			return "", false
		}
		v := *u
		v.Path = strings.TrimSuffix(u.Path, "/") + "/raw"
		v.RawQuery = ""
		v.Fragment = ""
		return v.String(), true
	default:
		return "", false
	}
}

// LooksTemplated reports whether body is an HTML page rather than the
// plain text a paste host serves on its raw endpoint.
func LooksTemplated(body string) bool {
	head := strings.ToLower(body)
	if len(head) > 4096 {
		head = head[:4096]
	}
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
