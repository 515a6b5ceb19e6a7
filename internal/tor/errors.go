package tor

import (
	"errors"
	"fmt"

	"github.com/nao1215/darkwatch/internal/model"
)

var (
	// ErrProxyNotTor is returned when the proxy answers but does not speak
	// unauthenticated SOCKS5.
	ErrProxyNotTor = fmt.Errorf("%w: proxy is not a Tor SOCKS5 proxy", model.ErrProxyUnavailable)

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyCannotConnect = fmt.Errorf("%w: cannot connect to Tor proxy", model.ErrProxyUnavailable)

	// ErrProxyTimeout is returned when the proxy handshake times out.
	ErrProxyTimeout = fmt.Errorf("%w: timeout connecting to Tor proxy", model.ErrProxyUnavailable)

	// ErrInvalidProxyAddress is returned for proxy addresses that are not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrEmbeddedNotRunning is returned when a client is requested from a
	// stopped embedded daemon.
	ErrEmbeddedNotRunning = errors.New("embedded Tor daemon is not running")

	// ErrInvalidOnionAddress is returned for onion hosts that are not valid
	// v3 addresses. v2 addresses fall in this class too.
	ErrInvalidOnionAddress = fmt.Errorf("%w: invalid v3 onion address", model.ErrInvalidURL)
)

// ProxyStatus is the result of CheckConnection.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy completed a SOCKS5 CONNECT exchange.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType means something answered that is not Tor.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect means the proxy port is closed.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout means the handshake did not finish in time.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not Tor)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error for this status, or nil if OK. Every non-nil
// result wraps model.ErrProxyUnavailable.
func (s ProxyStatus) Err() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotTor
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return model.ErrProxyUnavailable
	}
}
