package store

import (
	"errors"
	"fmt"

	"github.com/nao1215/darkwatch/internal/model"
)

var (
	// ErrScanNotFound is returned when no scan document has the given ID.
	ErrScanNotFound = fmt.Errorf("%w: scan", model.ErrNotFound)

	// ErrAlertNotFound is returned when no alert has the given ID.
	ErrAlertNotFound = fmt.Errorf("%w: alert", model.ErrNotFound)

	// ErrMonitorNotFound is returned when no monitor has the given ID.
	ErrMonitorNotFound = fmt.Errorf("%w: monitor", model.ErrNotFound)

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// unavailable marks err as a storage outage for callers using errors.Is.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}
