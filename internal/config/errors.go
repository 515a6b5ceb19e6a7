package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	// Use 0 to disable retries.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidRetryBackoff is returned when the retry backoff is negative.
	ErrInvalidRetryBackoff = errors.New("invalid retry backoff: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit or burst is negative.
	// Use a rate of 0 to disable limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: rate and burst must be non-negative")

	// ErrUnknownStorageDriver is returned for a driver other than sqlite or mongo.
	ErrUnknownStorageDriver = errors.New("unknown storage driver: must be sqlite or mongo")

	// ErrMissingDBDir is returned when the SQLite engine has no directory.
	ErrMissingDBDir = errors.New("missing db dir for the sqlite storage driver")

	// ErrMissingMongoURI is returned when the mongo driver is selected without a URI.
	ErrMissingMongoURI = errors.New("missing mongo uri for the mongo storage driver")

	// ErrInvalidMaxDownloadSize is returned when the download cap is not positive.
	ErrInvalidMaxDownloadSize = errors.New("invalid max download size: must be positive")

	// ErrInvalidMaxFiles is returned when the per-scan file cap or the file
	// concurrency is negative.
	ErrInvalidMaxFiles = errors.New("invalid max files: must be non-negative")

	// ErrInvalidToolTimeout is returned when the analyzer timeout is not positive.
	ErrInvalidToolTimeout = errors.New("invalid tool timeout: must be positive")

	// ErrInvalidMonitorInterval is returned when the default monitor interval
	// is below one minute.
	ErrInvalidMonitorInterval = errors.New("invalid default interval: must be at least 1 minute")

	// ErrInvalidMaxMonitors is returned when the monitor cap is not positive.
	ErrInvalidMaxMonitors = errors.New("invalid max monitors: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
