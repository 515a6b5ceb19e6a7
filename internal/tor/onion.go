package tor

import (
	"encoding/base32"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// OnionSuffix ends every hidden service host name.
	OnionSuffix = ".onion"

	// onionV3Version is the trailing version byte of a v3 address.
	onionV3Version = 0x03

	// onionV3DecodedLength is pubkey (32) + checksum (2) + version (1).
	onionV3DecodedLength = 35
)

var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// checksumPrefix is the constant mixed into v3 onion address checksums.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (optionally with a port) belongs to the
// onion namespace. Subdomains of an onion service count.
func IsOnionHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return strings.HasSuffix(host, OnionSuffix)
}

// IsOnionURL reports whether rawURL points at an onion host.
func IsOnionURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return IsOnionHost(u.Host)
}

// ValidateOnionURL checks the v3 checksum of an onion URL's service
// address. Non-onion URLs pass unchanged.
func ValidateOnionURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !IsOnionHost(u.Host) {
		return nil
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	// Strip subdomains: the service address is the last two labels.
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		host = strings.Join(labels[len(labels)-2:], ".")
	}
	if !IsValidV3Address(host) {
		return ErrInvalidOnionAddress
	}
	return nil
}

// IsValidV3Address verifies format, version byte and checksum of a v3
// onion address including the ".onion" suffix.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != onionV3DecodedLength {
		return false
	}
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// V3AddressFromPublicKey builds the v3 onion address of an ed25519
// public key. It returns "" for keys that are not 32 bytes.
func V3AddressFromPublicKey(pubkey []byte) string {
	if len(pubkey) != 32 {
		return ""
	}
	data := make([]byte, 0, onionV3DecodedLength)
	data = append(data, pubkey...)
	data = append(data, v3Checksum(pubkey, onionV3Version)...)
	data = append(data, onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix
}

// v3Checksum is SHA3-256(".onion checksum" || pubkey || version)[:2].
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}
