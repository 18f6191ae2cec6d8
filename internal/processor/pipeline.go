package processor

import (
	"context"
	"log/slog"
)

// Step is one stage of the request pipeline. Steps run in registration
// order; the first failing enabled step aborts the request unless the step
// is best-effort.
type Step interface {
	Name() string
	Enabled() bool
	Execute(ctx context.Context, rc *RequestContext, payload map[string]any) error
}

// BestEffort marks steps whose failures are logged but never abort the
// request (plugin hooks, telemetry).
type BestEffort interface {
	BestEffort() bool
}

// Pipeline runs an ordered list of steps over a request.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger, steps ...Step) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{steps: steps, logger: logger}
}

// Append adds steps after the existing ones.
func (p *Pipeline) Append(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Steps returns the registered step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		names = append(names, s.Name())
	}
	return names
}

// Run executes the pipeline. Disabled steps are skipped, best-effort step
// failures are logged and swallowed, and any other failure stops the run
// and is returned as a ProcessError.
func (p *Pipeline) Run(ctx context.Context, rc *RequestContext, payload map[string]any) error {
	for _, step := range p.steps {
		if !step.Enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return WrapProcessError(KindCancelled, step.Name(), err)
		}

		if err := step.Execute(ctx, rc, payload); err != nil {
			if be, ok := step.(BestEffort); ok && be.BestEffort() {
				p.logger.Warn("pipeline step failed, continuing",
					"step", step.Name(),
					"request_id", rc.RequestID,
					"error", err,
				)
				continue
			}
			pe := AsProcessError(err)
			if pe.Step == "" {
				pe.Step = step.Name()
			}
			return pe
		}
	}
	return nil
}
