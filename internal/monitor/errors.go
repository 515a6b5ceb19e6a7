package monitor

import (
	"fmt"

	"github.com/nao1215/darkwatch/internal/model"
)

// ErrMonitorNotRegistered is returned by Pause, Resume and Remove for IDs
// that are not active or paused.
var ErrMonitorNotRegistered = fmt.Errorf("%w: monitor", model.ErrNotFound)

// ErrAlreadyInState is returned when pausing a paused monitor or resuming
// an active one.
var ErrAlreadyInState = fmt.Errorf("%w: monitor already in requested state", model.ErrInvalidInput)
