package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for hidden services reached over Tor, where
// latency is high and operators notice aggressive clients.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "darkwatch"

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// Port 9050 is the default for the Tor daemon's SOCKS port.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and IPv6 resolution surprises on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap. 3 minutes is enough on most networks.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultTimeout bounds one HTTP request. Onion services routinely take
	// tens of seconds to answer, so this is generous.
	DefaultTimeout = 60 * time.Second

	// DefaultRetries is how many times a 429, 5xx or transport failure is
	// retried before the scan records the failure.
	DefaultRetries = 3

	// DefaultRetryBackoff is the first retry delay. It doubles per retry.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultUserAgent identifies darkwatch in HTTP requests.
	DefaultUserAgent = "darkwatch/1.0 (+https://github.com/nao1215/darkwatch)"

	// DefaultMaxBodySize limits the page body read per fetch.
	// 10MB covers large paste dumps without risking memory exhaustion.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultRateLimit is the number of requests per second across all
	// fetches of one process. Zero disables limiting.
	DefaultRateLimit = 2.0

	// DefaultRateBurst is the number of requests allowed above the rate.
	DefaultRateBurst = 4

	// DefaultStorageDriver is the embedded SQLite engine.
	DefaultStorageDriver = DriverSQLite

	// DefaultMongoDatabase is the database name used by the MongoDB engine.
	DefaultMongoDatabase = "darkwatch"

	// DefaultMaxDownloadSize is the largest file fetched for forensics.
	DefaultMaxDownloadSize int64 = 50 * 1024 * 1024

	// DefaultMaxFiles caps the file links analysed per scan.
	DefaultMaxFiles = 10

	// DefaultFileConcurrency is how many files are analysed at once.
	DefaultFileConcurrency = 4

	// DefaultToolTimeout bounds one run of an external analyzer.
	DefaultToolTimeout = 30 * time.Second

	// DefaultListenAddress is where `darkwatch serve` listens.
	// Loopback only: the API has no authentication.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultMonitorInterval is the interval in minutes used when a monitor
	// is created without one.
	DefaultMonitorInterval = 5

	// DefaultMaxMonitors is the number of monitors (active and paused) one
	// process may register.
	DefaultMaxMonitors = 5

	// DefaultBatchSize is the number of concurrent scans in batch mode.
	// Higher values may overwhelm the local Tor daemon.
	DefaultBatchSize = 4

	// DefaultLogFormat selects slog's text handler.
	DefaultLogFormat = LogFormatText
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ToolPaths names the external analyzer binaries. Entries may be bare names
// resolved through PATH or absolute paths.
type ToolPaths struct {
	Exiftool string `yaml:"exiftool"`
	Strings  string `yaml:"strings"`
	Binwalk  string `yaml:"binwalk"`
	Clamscan string `yaml:"clamscan"`
}

// Config holds all configuration options for darkwatch.
// It is populated from defaults, then the YAML file, then CLI flags, and is
// passed through the application rather than kept in global state.
//
// The struct is flat on purpose. Only the analyzer paths and the per-site
// overrides are grouped, because they are naturally maps or tool sets.
type Config struct {
	// TorProxyAddress is the address of the Tor SOCKS5 proxy in "host:port"
	// format. It is only used with UseExternalTor.
	TorProxyAddress string `yaml:"tor_proxy"`

	// UseExternalTor disables the embedded Tor daemon and uses the proxy at
	// TorProxyAddress instead.
	//
	// Note: The embedded Tor daemon takes 1-3 minutes to bootstrap on first
	// start.
	UseExternalTor bool `yaml:"external_tor"`

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap. Only used when UseExternalTor is false.
	TorStartupTimeout time.Duration `yaml:"tor_startup_timeout"`

	// RouteAllViaTor sends clearnet fetches through Tor as well.
	// Onion hosts always go through Tor.
	RouteAllViaTor bool `yaml:"route_all_via_tor"`

	// Timeout bounds one HTTP request, not the whole scan.
	Timeout time.Duration `yaml:"request_timeout"`

	// Retries is how many times a retryable fetch failure is retried.
	// Zero disables retries.
	Retries int `yaml:"retries"`

	// RetryBackoff is the first retry delay. It doubles on every retry.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// UserAgent is the User-Agent header sent with every request,
	// downloads included.
	UserAgent string `yaml:"user_agent"`

	// MaxBodySize is the maximum page body size in bytes. Larger bodies are
	// truncated.
	MaxBodySize int64 `yaml:"max_body_size"`

	// RateLimit is the number of requests per second across the process.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the number of requests allowed above RateLimit.
	RateBurst int `yaml:"rate_burst"`

	// StorageDriver selects the storage engine: "sqlite" or "mongo".
	StorageDriver string `yaml:"storage_driver"`

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/darkwatch on Linux).
	DBDir string `yaml:"db_dir"`

	// MongoURI is the connection string for the MongoDB engine.
	// Required when StorageDriver is "mongo".
	MongoURI string `yaml:"mongo_uri"`

	// MongoDatabase is the database used by the MongoDB engine.
	MongoDatabase string `yaml:"mongo_database"`

	// DownloadDir is where linked files are saved for forensics.
	// Defaults to the XDG cache directory.
	DownloadDir string `yaml:"download_dir"`

	// MaxDownloadSize is the largest file fetched for forensics, in bytes.
	MaxDownloadSize int64 `yaml:"max_download_size"`

	// MaxFiles caps the file links analysed per scan.
	MaxFiles int `yaml:"max_files"`

	// FileConcurrency is how many files are analysed at once.
	FileConcurrency int `yaml:"file_concurrency"`

	// KeepDownloads keeps downloaded files after analysis.
	KeepDownloads bool `yaml:"keep_downloads"`

	// ToolTimeout bounds one run of an external analyzer.
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// Tools names the external analyzer binaries.
	Tools ToolPaths `yaml:"tools"`

	// ListenAddress is where `darkwatch serve` listens.
	ListenAddress string `yaml:"listen"`

	// DefaultInterval is the monitor interval in minutes used when a create
	// request omits one.
	DefaultInterval int `yaml:"default_interval"`

	// MaxMonitors is the number of monitors one process may register.
	MaxMonitors int `yaml:"max_monitors"`

	// BatchSize is the number of concurrent scans in batch mode.
	BatchSize int `yaml:"batch_size"`

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `yaml:"log_format"`

	// SiteDefaults applies to every host unless overridden in Sites.
	SiteDefaults SiteConfig `yaml:"site_defaults,omitempty"`

	// Sites maps a host (for example "example.onion") to its overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"-"`

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string `yaml:"-"`
}

// NewConfig creates a new Config with default values.
//
// A constructor is used instead of zero values because most defaults are
// non-zero. It also documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Timeout:           DefaultTimeout,
		Retries:           DefaultRetries,
		RetryBackoff:      DefaultRetryBackoff,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RateLimit:         DefaultRateLimit,
		RateBurst:         DefaultRateBurst,
		StorageDriver:     DefaultStorageDriver,
		DBDir:             XDGDataDir(),
		MongoDatabase:     DefaultMongoDatabase,
		DownloadDir:       filepath.Join(XDGCacheDir(), "downloads"),
		MaxDownloadSize:   DefaultMaxDownloadSize,
		MaxFiles:          DefaultMaxFiles,
		FileConcurrency:   DefaultFileConcurrency,
		ToolTimeout:       DefaultToolTimeout,
		Tools: ToolPaths{
			Exiftool: "exiftool",
			Strings:  "strings",
			Binwalk:  "binwalk",
			Clamscan: "clamscan",
		},
		ListenAddress:   DefaultListenAddress,
		DefaultInterval: DefaultMonitorInterval,
		MaxMonitors:     DefaultMaxMonitors,
		BatchSize:       DefaultBatchSize,
		LogFormat:       DefaultLogFormat,
	}
}

// XDGDataDir returns the XDG data directory for darkwatch.
// On Linux: ~/.local/share/darkwatch
// On macOS: ~/Library/Application Support/darkwatch
// On Windows: %LOCALAPPDATA%\darkwatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for darkwatch.
// On Linux: ~/.config/darkwatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for darkwatch.
// On Linux: ~/.cache/darkwatch
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error, because fixing
// one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.RetryBackoff < 0 {
		return ErrInvalidRetryBackoff
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return ErrInvalidRateLimit
	}

	switch c.StorageDriver {
	case DriverSQLite:
		if c.DBDir == "" {
			return ErrMissingDBDir
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return ErrMissingMongoURI
		}
	default:
		return ErrUnknownStorageDriver
	}

	if c.MaxDownloadSize <= 0 {
		return ErrInvalidMaxDownloadSize
	}
	if c.MaxFiles < 0 || c.FileConcurrency < 0 {
		return ErrInvalidMaxFiles
	}
	if c.ToolTimeout <= 0 {
		return ErrInvalidToolTimeout
	}
	if c.DefaultInterval < 1 {
		return ErrInvalidMonitorInterval
	}
	if c.MaxMonitors <= 0 {
		return ErrInvalidMaxMonitors
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	return nil
}
