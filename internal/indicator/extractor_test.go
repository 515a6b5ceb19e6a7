package indicator

import (
	"slices"
	"strings"
	"testing"
)

const (
	btcLegacy = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	btcBech32 = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	ethAddr   = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
)

func moneroAddr(n int) string {
	return "4A" + strings.Repeat("a", n-2)
}

func TestExtractEmpty(t *testing.T) {
	t.Parallel()

	got := Extract("")
	if got.Emails == nil || len(got.Emails) != 0 {
		t.Errorf("Emails = %v, want empty non-nil slice", got.Emails)
	}
	if got.CryptoAddresses == nil || len(got.CryptoAddresses) != 0 {
		t.Errorf("CryptoAddresses = %v, want empty non-nil slice", got.CryptoAddresses)
	}
	// SHA-256 of the empty string.
	if want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"; got.ContentHash != want {
		t.Errorf("ContentHash = %s, want %s", got.ContentHash, want)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text unchanged", in: "hello world", want: "hello world"},
		{name: "zero width space removed", in: "he\u200bllo", want: "hello"},
		{name: "soft hyphen removed", in: "ex\u00adploit", want: "exploit"},
		{name: "bidi override removed", in: "a\u202eb\u202cc", want: "abc"},
		{name: "byte order mark removed", in: "\ufefftext", want: "text"},
		{name: "word joiner removed", in: "in\u2060visible", want: "invisible"},
		{name: "non-breaking space collapsed", in: "a\u00a0b", want: "a b"},
		{name: "fullwidth composed", in: "ａｂｃ", want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractEmails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "simple", in: "contact user@example.com now", want: []string{"user@example.com"}},
		{name: "spaced obfuscation", in: "mail: user @ example . com", want: []string{"user@example.com"}},
		{name: "zero width inside address", in: "us\u200ber@exa\u200dmple.com", want: []string{"user@example.com"}},
		{name: "fullwidth at sign", in: "user＠example.com", want: []string{"user@example.com"}},
		{name: "deduplicated case insensitive", in: "a@b.io A@B.io a@b.io", want: []string{"a@b.io"}},
		{name: "sorted", in: "zed@x.org amy@x.org", want: []string{"amy@x.org", "zed@x.org"}},
		{name: "tld too short", in: "user@example.c", want: []string{}},
		{name: "no domain dot", in: "user@localhost", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.in).Emails
			if !slices.Equal(got, tt.want) {
				t.Errorf("Emails = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractCryptoAddresses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "bitcoin legacy", in: "send to " + btcLegacy + " please", want: []string{btcLegacy}},
		{name: "bitcoin bech32", in: "wallet: " + btcBech32, want: []string{btcBech32}},
		{name: "ethereum", in: "(" + ethAddr + ")", want: []string{ethAddr}},
		{name: "monero standard", in: "xmr " + moneroAddr(95), want: []string{moneroAddr(95)}},
		{name: "monero integrated", in: "xmr " + moneroAddr(106), want: []string{moneroAddr(106)}},
		{name: "monero wrong length", in: "xmr " + moneroAddr(100), want: []string{}},
		{name: "glued to word prefix", in: "x" + btcLegacy, want: []string{}},
		{name: "glued to non-ascii letter", in: "é" + btcLegacy, want: []string{}},
		{name: "ethereum with extra hex digit", in: ethAddr + "a", want: []string{}},
		{name: "bech32 uppercase rejected", in: strings.ToUpper(btcBech32), want: []string{}},
		{name: "zero width inside address", in: btcLegacy[:10] + "\u200b" + btcLegacy[10:], want: []string{btcLegacy}},
		{
			name: "multiple schemes sorted and deduplicated",
			in:   ethAddr + " " + btcLegacy + " " + ethAddr,
			want: []string{ethAddr, btcLegacy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.in).CryptoAddresses
			if !slices.Equal(got, tt.want) {
				t.Errorf("CryptoAddresses = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContentHashDeterministic(t *testing.T) {
	t.Parallel()

	text := "the same page text"
	a := Extract(text).ContentHash
	b := Extract(text).ContentHash
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if c := Extract(text + "!").ContentHash; c == a {
		t.Error("single character change produced the same hash")
	}
	// Invisible characters do not count as a change.
	if d := Extract("the same\u200b page text").ContentHash; d != a {
		t.Error("zero width character changed the hash")
	}
}

func TestSchemeOf(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	tests := []struct {
		addr string
		want Scheme
		ok   bool
	}{
		{btcLegacy, SchemeBitcoinLegacy, true},
		{btcBech32, SchemeBitcoinBech32, true},
		{ethAddr, SchemeEthereum, true},
		{moneroAddr(95), SchemeMonero, true},
		{"not-an-address", "", false},
	}
	for _, tt := range tests {
		got, ok := e.SchemeOf(tt.addr)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SchemeOf(%q) = %q, %v; want %q, %v", tt.addr, got, ok, tt.want, tt.ok)
		}
	}
}
