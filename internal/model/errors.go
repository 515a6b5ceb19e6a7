package model

import (
	"errors"
	"fmt"
)

// Error kinds that cross the core boundary. Concrete errors wrap one of
// these so callers can branch with errors.Is.
var (
	// ErrInvalidInput marks bad URLs, identifiers and parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable marks a collaborator (proxy, network, storage) that
	// could not be reached. Nothing was analysed or persisted.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrNotFound marks an unknown monitor, alert or history entry.
	ErrNotFound = errors.New("not found")

	// ErrCapacity marks monitor limit and duplicate-monitor rejections.
	ErrCapacity = errors.New("capacity exceeded")
)

var (
	// ErrInvalidURL is returned for URLs without an http or https scheme and host.
	ErrInvalidURL = fmt.Errorf("%w: URL must include http:// or https:// and a host", ErrInvalidInput)

	// ErrInvalidInterval is returned for monitor intervals below one minute.
	ErrInvalidInterval = fmt.Errorf("%w: interval must be at least 1 minute", ErrInvalidInput)

	// ErrInsufficientHistory is returned when fewer than two scans exist for a comparison.
	ErrInsufficientHistory = fmt.Errorf("%w: at least 2 scans are required for comparison", ErrNotFound)

	// ErrAlertAcknowledged is returned when an alert was already acknowledged.
	ErrAlertAcknowledged = fmt.Errorf("%w: alert already acknowledged", ErrInvalidInput)

	// ErrMonitorExists is returned when a URL already has an active or paused monitor.
	ErrMonitorExists = fmt.Errorf("%w: monitor already exists for this URL", ErrCapacity)

	// ErrMonitorLimit is returned when the maximum number of monitors is registered.
	ErrMonitorLimit = fmt.Errorf("%w: maximum number of monitors reached", ErrCapacity)

	// ErrStoreUnavailable is returned when the storage engine cannot be reached.
	ErrStoreUnavailable = fmt.Errorf("%w: storage", ErrUnavailable)

	// ErrProxyUnavailable is returned when the anonymizing proxy cannot be reached.
	ErrProxyUnavailable = fmt.Errorf("%w: tor proxy", ErrUnavailable)
)
