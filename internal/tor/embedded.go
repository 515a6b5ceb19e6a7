package tor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds the bootstrap of an embedded daemon.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago for hosts that
// have no system Tor. Bootstrapping usually takes one to three minutes.
type EmbeddedTor struct {
	mu             sync.Mutex
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
	logger         *slog.Logger
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the bootstrap timeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// WithEmbeddedLogger sets the logger.
func WithEmbeddedLogger(logger *slog.Logger) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.logger = logger
	}
}

// NewEmbeddedTor creates a stopped EmbeddedTor.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultStartupTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.process != nil {
		return nil
	}

	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	e.logger.Info("starting embedded tor", "timeout", e.startupTimeout)
	process, err := tornago.StartTorDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best-effort cleanup
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.logger.Info("embedded tor ready", "socks", e.socksAddr)
	return nil
}

// Stop shuts the daemon down. It is safe to call on a stopped instance.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address, or "" when stopped.
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socksAddr
}

// IsRunning reports whether the daemon is up.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// NewClient returns a Client bound to the embedded daemon.
func (e *EmbeddedTor) NewClient(timeout time.Duration, opts ...ClientOption) (*Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrEmbeddedNotRunning
	}
	return NewClient(addr, timeout, opts...)
}
