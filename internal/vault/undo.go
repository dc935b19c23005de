package vault

import (
	"context"
	"errors"
	"fmt"
)

// undoStack records the compensation for every collaborator step an operation has completed.
type undoStack struct {
	steps []undoStep
}

type undoStep struct {
	name string
	undo func(ctx context.Context) error
}

func (u *undoStack) push(name string, undo func(ctx context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, undo: undo})
}

// unwind runs the compensations newest first. It keeps going after a failed step so that as much as
// possible is restored, and reports every failure. Compensation ignores cancellation of ctx.
func (u *undoStack) unwind(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.undo(ctx); err != nil {
			vaultLogger.Error().Err(err).Str("step", step.name).Msg("Compensation step failed")
			errs = append(errs, fmt.Errorf("undo %s: %w", step.name, err))
			continue
		}
		vaultLogger.Debug().Str("step", step.name).Msg("Compensated step")
	}
	u.steps = nil
	return errors.Join(errs...)
}
