package forensics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultToolTimeout bounds every external analyzer invocation.
const DefaultToolTimeout = 30 * time.Second

// Runner executes an external tool and returns its standard output and
// exit code. A non-zero exit is not an error; err is reserved for tools
// that could not be started (ErrToolNotInstalled) or did not finish
// (ErrToolTimeout).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, exitCode int, err error)
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner returns an ExecRunner that kills tools after timeout.
// A non-positive timeout selects DefaultToolTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ExecRunner{timeout: timeout}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, -1, fmt.Errorf("%w: %s", ErrToolNotInstalled, name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Do not wait forever on pipes held open by grandchildren.
	cmd.WaitDelay = time.Second

	err = cmd.Run()
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.Bytes(), -1, fmt.Errorf("%w after %s: %s", ErrToolTimeout, r.timeout, name)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), exitErr.ExitCode(), nil
		}
		return stdout.Bytes(), -1, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return stdout.Bytes(), 0, nil
}
