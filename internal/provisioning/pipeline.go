package provisioning

import (
	"fmt"
	"time"

	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/observe"
)

// RunResult is the outcome of a full pipeline run.
type RunResult struct {
	// Complete is true when every phase advanced.
	Complete bool
	// Halted names the phase that stopped the run, if any.
	Halted string
	// Evidence is the full run record.
	Evidence *evidence.Store
}

// RunPhases executes the phases sequentially. A phase returning blocked or
// failed halts the run; the evidence accumulated so far is always returned.
func RunPhases(ctx *Context, phases []Phase) (*RunResult, error) {
	start := time.Now()
	ctx.Observer.Printf("Starting run with %d phases...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		ctx.Observer.Printf("[%s] starting", name)

		record, err := phase.Run(ctx)
		if err != nil {
			ctx.Observer.Printf("[%s] error: %v", name, err)
			return &RunResult{Halted: phase.Name(), Evidence: ctx.Evidence},
				fmt.Errorf("%s phase: %w", phase.Name(), err)
		}

		observe.PhaseOutcomes.WithLabelValues(phase.Name(), string(record.Status)).Inc()

		if !record.Status.Advances() {
			ctx.Observer.Printf("[%s] %s: %s", name, record.Status, record.Reason)
			return &RunResult{Halted: phase.Name(), Evidence: ctx.Evidence}, nil
		}

		ctx.Observer.Printf("[%s] %s in %v", name, record.Status,
			time.Since(phaseStart).Round(time.Millisecond))
	}

	ctx.Observer.Printf("Run completed in %v", time.Since(start).Round(time.Millisecond))
	return &RunResult{Complete: true, Evidence: ctx.Evidence}, nil
}
