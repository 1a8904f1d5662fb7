package screening

import (
	"context"
	"fmt"

	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

// Filter is a single screening step applied to a cohort before it is evaluated.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, proposals []rfp.Proposal) ([]rfp.Proposal, Step, error)
}

// Step describes the result of executing a screening step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Screening runs its filters in order. Filters never reorder proposals.
type Screening struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Screening {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Screening{steps: steps, logger: logger}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func (s *Screening) DisableByName(name, reason string) {
	for _, step := range s.steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates every enabled filter and then applies them sequentially.
func (s *Screening) Run(ctx context.Context, proposals []rfp.Proposal) ([]rfp.Proposal, error) {
	for _, step := range s.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range s.steps {
		if !step.IsEnabled() {
			s.logger.Debug("screening filter disabled", zap.String("name", step.Name()))
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, proposals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		s.logger.Info("screening step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		proposals = next
	}

	return proposals, nil
}

// Describe returns status entries for the configured filters.
func (s *Screening) Describe() []Status {
	statuses := make([]Status, 0, len(s.steps))
	for _, step := range s.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the proposals accepted by fn in their original order and the dropped ones.
func keep(proposals []rfp.Proposal, fn func(rfp.Proposal) bool) ([]rfp.Proposal, []rfp.Proposal) {
	kept := make([]rfp.Proposal, 0, len(proposals))
	var dropped []rfp.Proposal
	for _, p := range proposals {
		if fn(p) {
			kept = append(kept, p)
			continue
		}
		dropped = append(dropped, p)
	}
	return kept, dropped
}

func labels(proposals []rfp.Proposal) []string {
	out := make([]string, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, p.Vendor.Label())
	}
	return out
}

func step(initial int, left []rfp.Proposal) Step {
	return Step{Initial: initial, Dropped: initial - len(left), Left: len(left)}
}
