package screening

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

type minimumTextFilter struct {
	minRunes int
	disabled bool
	reason   string
	logger   *zap.Logger
}

// NewMinimumText creates a filter that removes proposals too short to be evaluated.
// Whitespace does not count. Limits below one are raised to one.
func NewMinimumText(minRunes int, logger *zap.Logger) Filter {
	if minRunes < 1 {
		minRunes = 1
	}
	return &minimumTextFilter{minRunes: minRunes, logger: nopIfNil(logger)}
}

func (f *minimumTextFilter) Name() string { return "minimum_text" }

func (f *minimumTextFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minimumTextFilter) IsEnabled() bool { return !f.disabled }

func (f *minimumTextFilter) Validate() error { return nil }

func (f *minimumTextFilter) Apply(_ context.Context, proposals []rfp.Proposal) ([]rfp.Proposal, Step, error) {
	initial := len(proposals)
	kept, dropped := keep(proposals, func(p rfp.Proposal) bool {
		return utf8.RuneCountInString(strings.Join(strings.Fields(p.RawText), "")) >= f.minRunes
	})
	if len(dropped) > 0 {
		f.logger.Info("excluding proposals without enough text to evaluate",
			zap.Int("minimum_length", f.minRunes),
			zap.Strings("excluded_proposals", labels(dropped)),
			zap.Int("proposals_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *minimumTextFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum_length": strconv.Itoa(f.minRunes)},
	}
}
