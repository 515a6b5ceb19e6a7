package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/nao1215/darkwatch/internal/model"
	"github.com/nao1215/darkwatch/internal/tor"
)

// Defaults applied by New.
const (
	DefaultRetries     = 3
	DefaultBackoff     = 2 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024

	// proxyCheckTTL is how long a successful proxy check is trusted.
	proxyCheckTTL = 30 * time.Second
)

// Result is the outcome of one Fetch.
type Result struct {
	URL         string
	FinalURL    string
	Status      model.FetchStatus
	StatusCode  int
	Body        string
	ContentType string
	Headers     http.Header
	Elapsed     time.Duration
	Attempts    int
}

// StatusCodePtr returns the HTTP status code, or nil when no response arrived.
func (r *Result) StatusCodePtr() *int {
	if r.StatusCode == 0 {
		return nil
	}
	code := r.StatusCode
	return &code
}

// ElapsedSeconds returns the elapsed time in seconds.
func (r *Result) ElapsedSeconds() *float64 {
	s := r.Elapsed.Seconds()
	return &s
}

// HasContent reports whether the fetch produced a usable body.
func (r *Result) HasContent() bool {
	return r.Status == model.FetchOnline && strings.TrimSpace(r.Body) != ""
}

// ProxyChecker verifies that the Tor proxy is usable.
type ProxyChecker interface {
	CheckConnection(ctx context.Context) tor.ProxyStatus
}

// Fetcher performs HTTP GETs with retry, rate limiting and Tor routing.
type Fetcher struct {
	direct      *http.Client
	torClient   *http.Client
	proxy       ProxyChecker
	routeAllTor bool
	retries     int
	backoff     time.Duration
	maxBody     int64
	limiter     *rate.Limiter
	siteHeaders func(host string) map[string]string
	logger      *slog.Logger

	mu          sync.Mutex
	proxyOKTime time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDirectClient sets the client used for clearnet hosts.
func WithDirectClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.direct = c
	}
}

// WithTorClient sets the client used for onion hosts and the checker
// consulted before using it. checker may be nil.
func WithTorClient(c *http.Client, checker ProxyChecker) Option {
	return func(f *Fetcher) {
		f.torClient = c
		f.proxy = checker
	}
}

// WithRouteAllViaTor sends clearnet requests through Tor as well.
func WithRouteAllViaTor(on bool) Option {
	return func(f *Fetcher) {
		f.routeAllTor = on
	}
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithBackoff sets the initial retry delay. It doubles on every retry.
func WithBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.backoff = d
		}
	}
}

// WithMaxBodySize caps the bytes read from a response body.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithRateLimit limits requests per second across the Fetcher.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSiteHeaders sets a lookup for extra request headers per host, such as
// a session cookie for a service that requires a login.
func WithSiteHeaders(lookup func(host string) map[string]string) Option {
	return func(f *Fetcher) {
		f.siteHeaders = lookup
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. Without WithDirectClient it uses a plain client
// with a 30 second timeout.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		maxBody: DefaultMaxBodySize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.direct == nil {
		f.direct = tor.DirectHTTPClient(30*time.Second, "")
	}
	return f
}

// ClientFor returns the client a request to rawURL would use. Onion URLs
// get the Tor client, which is nil when none is configured.
func (f *Fetcher) ClientFor(rawURL string) *http.Client {
	if f.usesTor(rawURL) {
		return f.torClient
	}
	return f.direct
}

func (f *Fetcher) usesTor(rawURL string) bool {
	if f.routeAllTor && f.torClient != nil {
		return true
	}
	return tor.IsOnionURL(rawURL)
}

// Fetch retrieves rawURL. The returned error is non-nil only for invalid
// URLs (model.ErrInvalidInput) and an unusable Tor proxy
// (model.ErrUnavailable).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	target, err := model.SanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := tor.ValidateOnionURL(target); err != nil {
		return nil, err
	}

	viaTor := f.usesTor(target)
	if viaTor {
		if err := f.ensureProxy(ctx); err != nil {
			return nil, err
		}
	}
	client := f.ClientFor(target)

	start := time.Now()
	res := &Result{URL: target, Status: model.FetchError}
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			if !sleep(ctx, f.backoff<<(attempt-1)) {
				break
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				break
			}
		}

		res.Attempts = attempt + 1
		retry := f.attempt(ctx, client, target, res)
		if !retry {
			break
		}
		f.logger.Debug("retrying fetch", "url", target, "attempt", res.Attempts, "status", res.Status, "status_code", res.StatusCode)
	}
	res.Elapsed = time.Since(start)

	f.logger.Info("fetched", "url", target, "status", res.Status, "status_code", res.StatusCode,
		"tor", viaTor, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// attempt performs one request and fills res. It reports whether the
// outcome is worth retrying.
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, target string, res *Result) bool {
	// Nothing from an earlier attempt survives into this one.
	res.StatusCode = 0
	res.Headers = nil
	res.ContentType = ""
	res.FinalURL = ""
	res.Body = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		res.Status = model.FetchError
		return false
	}
	if f.siteHeaders != nil {
		for k, v := range f.siteHeaders(req.URL.Hostname()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		res.Status = classifyError(err)
		// Caller cancellation is final.
		return ctx.Err() == nil
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Headers = resp.Header.Clone()
	res.ContentType = resp.Header.Get("Content-Type")
	res.FinalURL = resp.Request.URL.String()

	if resp.StatusCode != http.StatusOK {
		res.Status = model.FetchError
		res.Body = ""
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // drain for connection reuse
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
	}

	res.Status = model.FetchOnline
	if !isTextual(res.ContentType) {
		res.Body = ""
		return false
	}
	body, err := f.readBody(resp)
	if err != nil {
		if isTimeout(err) {
			res.Status = model.FetchTimeout
		} else {
			res.Status = model.FetchError
		}
		res.Body = ""
		return ctx.Err() == nil
	}
	res.Body = body
	return false
}

// readBody decodes the body to UTF-8 and truncates it at the size cap.
func (f *Fetcher) readBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, f.maxBody)
	r, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset: keep the raw bytes.
		r = limited
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ensureProxy fails with model.ErrProxyUnavailable when onion routing is
// impossible.
func (f *Fetcher) ensureProxy(ctx context.Context) error {
	if f.torClient == nil {
		return fmt.Errorf("%w: no Tor client configured", model.ErrProxyUnavailable)
	}
	if f.proxy == nil {
		return nil
	}

	f.mu.Lock()
	fresh := time.Since(f.proxyOKTime) < proxyCheckTTL
	f.mu.Unlock()
	if fresh {
		return nil
	}

	if err := f.proxy.CheckConnection(ctx).Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.proxyOKTime = time.Now()
	f.mu.Unlock()
	return nil
}

// classifyError maps a transport error to a fetch status.
func classifyError(err error) model.FetchStatus {
	if isTimeout(err) {
		return model.FetchTimeout
	}
	if errors.Is(err, context.Canceled) {
		return model.FetchError
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return model.FetchOffline
	}
	return model.FetchError
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isTextual accepts missing content types and text, JSON and XML bodies.
func isTextual(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(contentType)
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.Contains(mediaType, "json"), strings.Contains(mediaType, "xml"):
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
