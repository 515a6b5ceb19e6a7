package scan

import (
	"context"
	"log/slog"
)

// Step is one stage of a scan.
type Step interface {
	// Do executes the step. A returned error aborts the scan; failures
	// that should not abort it are logged and recorded in run instead.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a Pipeline running steps in the given order.
func NewPipeline(steps []Step, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		steps:  steps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs every step and stops at the first error or cancellation.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("scan cancelled", "step", step.Name(), "url", run.URL, "reason", err)
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", run.URL)
		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "url", run.URL, "error", err)
			return err
		}
		run.Performed = append(run.Performed, step.Name())
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
