package model

import (
	"errors"
	"testing"
	"time"
)

func TestMonitorID(t *testing.T) {
	t.Parallel()

	t.Run("is stable and fixed width", func(t *testing.T) {
		t.Parallel()

		a := MonitorID("http://example.onion/")
		b := MonitorID("http://example.onion/")
		if a != b {
			t.Errorf("expected identical IDs, got %q and %q", a, b)
		}
		if len(a) != MonitorIDLength {
			t.Errorf("expected length %d, got %d", MonitorIDLength, len(a))
		}
	})

	t.Run("matches md5 prefix", func(t *testing.T) {
		t.Parallel()

		// md5("abc") = 900150983cd24fb0d6963f7d28e17f72
		if got := MonitorID("abc"); got != "900150983cd2" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("differs per URL", func(t *testing.T) {
		t.Parallel()

		if MonitorID("http://a.example") == MonitorID("http://b.example") {
			t.Error("expected different IDs")
		}
	})
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "http", input: "http://example.com/a", want: "http://example.com/a"},
		{name: "trims and lowercases host", input: "  HTTPS://Example.COM/Path ", want: "https://example.com/Path"},
		{name: "onion", input: "http://abc.onion", want: "http://abc.onion"},
		{name: "missing scheme", input: "example.com", wantErr: true},
		{name: "ftp scheme", input: "ftp://example.com", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no host", input: "http://", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := SanitizeURL(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPlaceholderDocument(t *testing.T) {
	t.Parallel()

	code := 503
	doc := NewPlaceholderDocument("http://x.onion", FetchError, &code, nil, time.Unix(0, 0))

	if doc.ThreatScore != 0 {
		t.Errorf("expected score 0, got %d", doc.ThreatScore)
	}
	if doc.Category != UnknownCategory {
		t.Errorf("expected category %q, got %q", UnknownCategory, doc.Category)
	}
	if doc.RiskLevel != RiskLow {
		t.Errorf("expected LOW risk, got %s", doc.RiskLevel)
	}
	if doc.HasContent() {
		t.Error("placeholder must not report content")
	}
	entry := doc.StatusEntry()
	if entry.Status != FetchError || entry.StatusCode == nil || *entry.StatusCode != 503 {
		t.Errorf("unexpected status entry %+v", entry)
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  error
		kind error
	}{
		{ErrInvalidURL, ErrInvalidInput},
		{ErrInvalidInterval, ErrInvalidInput},
		{ErrMonitorExists, ErrCapacity},
		{ErrMonitorLimit, ErrCapacity},
		{ErrInsufficientHistory, ErrNotFound},
		{ErrStoreUnavailable, ErrUnavailable},
		{ErrProxyUnavailable, ErrUnavailable},
	}
	for _, tc := range testCases {
		if !errors.Is(tc.err, tc.kind) {
			t.Errorf("%v should wrap %v", tc.err, tc.kind)
		}
	}
}

func TestParseIOCType(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"email", "crypto", "file_hash"} {
		if _, err := ParseIOCType(valid); err != nil {
			t.Errorf("%q: unexpected error %v", valid, err)
		}
	}
	if _, err := ParseIOCType("phone"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
