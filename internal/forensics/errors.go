package forensics

import "errors"

var (
	// ErrToolNotInstalled is returned by a Runner when the binary cannot be found.
	ErrToolNotInstalled = errors.New("tool not installed")

	// ErrToolTimeout is returned by a Runner when the tool exceeded its timeout.
	ErrToolTimeout = errors.New("tool timed out")

	// ErrFileTooLarge is returned when a download exceeds the size limit,
	// either according to the pre-flight HEAD request or while streaming.
	ErrFileTooLarge = errors.New("file exceeds maximum download size")

	// ErrDownloadFailed is returned for non-2xx download responses.
	ErrDownloadFailed = errors.New("download failed")
)
