package evaluation

import (
	"strings"

	"github.com/spigell/rfp-evaluator/internal/rfp"
)

const noDisadvantages = "No competitive disadvantages were identified."

// ComposeSummary appends the competitive outcome to the qualitative summary.
func ComposeSummary(base string, deductions []rfp.Deduction) string {
	var tail string
	if len(deductions) == 0 {
		tail = noDisadvantages
	} else {
		reasons := make([]string, 0, len(deductions))
		for _, d := range deductions {
			reasons = append(reasons, d.Reason)
		}
		tail = "Competitive considerations: " + strings.Join(reasons, "; ") + "."
	}

	base = strings.TrimSpace(base)
	if base == "" {
		return tail
	}
	return base + " " + tail
}
