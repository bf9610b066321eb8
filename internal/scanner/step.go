package scanner

import (
	"context"

	"lms/internal/scanstats"
)

// Step is one unit of the scan pipeline. Each
// step sees the cumulative effect of all prior steps via ctx. Process does its own
// transaction management (typically one or more store.Store.WithTransaction calls);
// it must check ctx.Cancelled() at its declared checkpoints and return promptly,
// leaving any open transaction committed or rolled back before returning.
type Step interface {
	Kind() scanstats.Step
	Process(ctx context.Context, sc *ScanContext) error
}

// Pipeline runs an ordered list of Steps, stopping early on a step-level DB error or
// cancellation. The list is plain data: each Step consumes a mutable ScanContext, no
// inheritance needed in Go.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes every step in order against sc, publishing stepIndex/stepCount as it
// goes. It returns the first step-level error (an unrecoverable DB error); per-file
// errors are instead recorded into sc.Stats and never returned here.
func (p *Pipeline) Run(ctx context.Context, sc *ScanContext) error {
	sc.stepCount = len(p.steps)
	for i, step := range p.steps {
		if sc.Cancelled() {
			return nil
		}
		sc.stepIndex = i
		if err := step.Process(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}
