package forensics

import (
	"context"
	"crypto/md5" //nolint:gosec // file name fallback, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	// DefaultMaxDownloadSize is the largest file fetched for analysis (50 MiB).
	DefaultMaxDownloadSize int64 = 50 * 1024 * 1024

	// DefaultDownloadTimeout bounds one download including the HEAD request.
	DefaultDownloadTimeout = 30 * time.Second

	// maxFileNameLength bounds the sanitised file name.
	maxFileNameLength = 100

	// fallbackNameLength is the number of hex chars used when a URL has no
	// usable file name.
	fallbackNameLength = 12
)

// ClientSource picks the HTTP client used for a URL so that onion
// downloads go through Tor.
type ClientSource interface {
	ClientFor(rawURL string) *http.Client
}

// ClientSourceFunc adapts a function to ClientSource.
type ClientSourceFunc func(rawURL string) *http.Client

// ClientFor implements ClientSource.
func (f ClientSourceFunc) ClientFor(rawURL string) *http.Client {
	return f(rawURL)
}

// StaticClient returns a ClientSource that always uses c.
func StaticClient(c *http.Client) ClientSource {
	return ClientSourceFunc(func(string) *http.Client { return c })
}

// DownloadedFile describes a file written to the download directory.
type DownloadedFile struct {
	URL         string
	Name        string
	Path        string
	Size        int64
	SHA256      string
	ContentType string
}

// Downloader fetches linked files with a size cap.
type Downloader struct {
	clients   ClientSource
	dir       string
	maxSize   int64
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithMaxSize sets the size cap in bytes.
func WithMaxSize(n int64) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.maxSize = n
		}
	}
}

// WithDownloadTimeout sets the per-download timeout.
func WithDownloadTimeout(t time.Duration) DownloaderOption {
	return func(d *Downloader) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithUserAgent sets the User-Agent header sent with downloads.
func WithUserAgent(ua string) DownloaderOption {
	return func(d *Downloader) {
		d.userAgent = ua
	}
}

// WithDownloadLogger sets the logger.
func WithDownloadLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader writing into dir.
func NewDownloader(clients ClientSource, dir string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		clients: clients,
		dir:     dir,
		maxSize: DefaultMaxDownloadSize,
		timeout: DefaultDownloadTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches fileURL into the download directory. Files larger than
// the cap are rejected by the HEAD pre-check when the server announces a
// Content-Length, and otherwise cut off while streaming.
func (d *Downloader) Download(ctx context.Context, fileURL string) (*DownloadedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	client := d.clients.ClientFor(fileURL)

	if size, ok := d.headSize(ctx, client, fileURL); ok && size > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes announced for %s", ErrFileTooLarge, size, fileURL)
	}

	req, err := d.newRequest(ctx, http.MethodGet, fileURL)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrDownloadFailed, fileURL, resp.StatusCode)
	}
	if resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrFileTooLarge, resp.ContentLength, fileURL)
	}

	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	name := SafeFileName(fileURL)
	f, err := os.CreateTemp(d.dir, "*-"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to create download file: %w", err)
	}

	hasher := sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(f, hasher), io.LimitReader(resp.Body, d.maxSize+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(f.Name()) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("failed to read %s: %w", fileURL, copyErr)
	case n > d.maxSize:
		_ = os.Remove(f.Name()) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%w: exceeded %d bytes while streaming %s", ErrFileTooLarge, d.maxSize, fileURL)
	case closeErr != nil:
		_ = os.Remove(f.Name()) //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("failed to write download file: %w", closeErr)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	d.logger.Debug("downloaded file", "file_url", fileURL, "name", name, "size", n)

	return &DownloadedFile{
		URL:         fileURL,
		Name:        name,
		Path:        f.Name(),
		Size:        n,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		ContentType: contentType,
	}, nil
}

// headSize returns the Content-Length announced by a HEAD request.
// Failures are ignored; the streaming cutoff still applies.
func (d *Downloader) headSize(ctx context.Context, client *http.Client, fileURL string) (int64, bool) {
	req, err := d.newRequest(ctx, http.MethodHead, fileURL)
	if err != nil {
		return 0, false
	}
	resp, err := client.Do(req)
	if err != nil {
		d.logger.Debug("could not verify file size", "file_url", fileURL, "error", err)
		return 0, false
	}
	resp.Body.Close()
	if resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

func (d *Downloader) newRequest(ctx context.Context, method, fileURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid file URL %q: %w", fileURL, err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	return req, nil
}

// SafeFileName derives a file name from the last path segment of rawURL,
// keeping only ASCII letters, digits and "._-" and at most 100 characters.
// URLs without a usable segment get a name derived from their MD5 digest.
func SafeFileName(rawURL string) string {
	var segment string
	if u, err := url.Parse(rawURL); err == nil {
		segment = path.Base(u.Path)
		if segment == "/" || segment == "." {
			segment = ""
		}
	}

	var b strings.Builder
	for _, r := range segment {
		if r < 0x80 && (isASCIIAlnum(byte(r)) || r == '.' || r == '_' || r == '-') {
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		sum := md5.Sum([]byte(rawURL)) //nolint:gosec // see import comment
		name = hex.EncodeToString(sum[:])[:fallbackNameLength]
	}
	if len(name) > maxFileNameLength {
		name = name[:maxFileNameLength]
	}
	return name
}

func isASCIIAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
