// Package saga implements a generic compensating-transaction runner. Its
// step-then-rollback shape generalizes the persist→lock→mutate→commit
// sequence of the teacher's PaymentServiceImpl.ProcessPayment into named,
// independently-testable steps.
package saga

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Step is one unit of saga work. Compensate is optional: a step with no
// side effects to undo (e.g. a read-only validation) may leave it nil.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs a sequence of Steps, compensating already-completed steps in
// reverse order the moment one fails.
type Saga struct {
	name  string
	steps []Step
	log   zerolog.Logger
}

// New builds an empty saga identified by name, for logging.
func New(name string, log zerolog.Logger) *Saga {
	return &Saga{name: name, log: log}
}

// AddStep appends a step and returns the saga for chaining.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Result is the outcome of a Saga run.
type Result struct {
	Success        bool
	Context        context.Context
	Err            error
	FailedStep     string
	CompletedSteps []string
}

// Run executes every step in order. On the first failure it compensates
// every completed step in reverse order, then reports the original error.
// A compensation failure is logged but does not replace the triggering
// error — compensation is best-effort.
func (s *Saga) Run(ctx context.Context) Result {
	completed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		if err := step.Do(ctx); err != nil {
			s.log.Error().Err(err).Str("saga", s.name).Str("step", step.Name).Msg("saga step failed, compensating")
			s.compensate(ctx, completed)
			return Result{
				Success:        false,
				Context:        ctx,
				Err:            fmt.Errorf("saga %s: step %s: %w", s.name, step.Name, err),
				FailedStep:     step.Name,
				CompletedSteps: stepNames(completed),
			}
		}
		completed = append(completed, step)
	}

	return Result{Success: true, Context: ctx, CompletedSteps: stepNames(completed)}
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.Name
	}
	return names
}

func (s *Saga) compensate(ctx context.Context, completed []Step) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.log.Error().Err(err).Str("saga", s.name).Str("step", step.Name).Msg("saga compensation failed")
		}
	}
}
