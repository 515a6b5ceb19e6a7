package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake in CheckConnection.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the redirect limit of clients returned by NewHTTPClient.
const maxRedirects = 10

// Client reaches hidden services through a Tor SOCKS5 proxy.
type Client struct {
	proxyAddress string
	dialer       proxy.ContextDialer
	timeout      time.Duration
	userAgent    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithUserAgent sets the User-Agent sent by HTTP clients from this Client.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client for the proxy at proxyAddress ("host:port").
// It does not contact the proxy; use CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not use authentication.
	d, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("SOCKS5 dialer does not support contexts")
	}

	c := &Client{
		proxyAddress: proxyAddress,
		dialer:       cd,
		timeout:      timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeOnion is a syntactically valid but unused address. Tor
	// answers the CONNECT with a failure code, which is enough to prove
	// the proxy is processing requests.
	socks5ProbeOnion = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
)

// CheckConnection performs a SOCKS5 greeting and a CONNECT request
// against the proxy and reports what it found.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}
	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return readFailure(err)
	}
	if reply[0] != socks5Version || reply[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(socks5ProbeOnion))}
	req = append(req, socks5ProbeOnion...)
	req = append(req, 0x00, 80)
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	// Any reply code counts; only the version byte matters.
	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		return readFailure(err)
	}
	if head[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// NewHTTPClient returns an HTTP client whose connections all go through
// the proxy. TLS verification is off because onion services commonly use
// self-signed certificates and the onion address already authenticates
// the service. Compression is disabled to avoid size side channels.
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: c.dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // onion services
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}
	return newHTTPClient(transport, c.timeout, c.userAgent)
}

// DirectHTTPClient returns a client for clearnet targets that does not use
// the proxy but shares the timeout, redirect and header policy.
func DirectHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true
	return newHTTPClient(transport, timeout, userAgent)
}

func newHTTPClient(base http.RoundTripper, timeout time.Duration, userAgent string) *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = base
	if userAgent != "" {
		rt = &headerInjectingTransport{
			base:    base,
			headers: map[string]string{"User-Agent": userAgent},
		}
	}
	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// headerInjectingTransport sets fixed headers on every request, including
// redirects, unless the request already carries them.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
