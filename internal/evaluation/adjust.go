package evaluation

import (
	"fmt"

	"github.com/spigell/rfp-evaluator/internal/rfp"
)

const (
	MetricPrice    = "price"
	MetricDelivery = "delivery"
	MetricWarranty = "warranty"
)

// perfectScoreCap replaces any adjusted score that would reach the maximum.
const perfectScoreCap = 97

// Adjustment is the cohort-relative correction of a base score.
type Adjustment struct {
	Score      int
	Deductions []rfp.Deduction
}

// Reasons returns the human readable deduction reasons in order.
func (a Adjustment) Reasons() []string {
	reasons := make([]string, 0, len(a.Deductions))
	for _, d := range a.Deductions {
		reasons = append(reasons, d.Reason)
	}
	return reasons
}

// Adjust applies benchmark penalties to a base score.
// Deductions are ordered price, delivery, warranty. A would-be perfect score is capped at 97
// and the result never drops below 0.
func Adjust(base int, facts rfp.Facts, bench rfp.Benchmark) Adjustment {
	deductions := make([]rfp.Deduction, 0, 3)

	if points := pricePenalty(facts.TotalPrice, bench.LowestPrice); points > 0 {
		deductions = append(deductions, deduction(MetricPrice, points, "Higher pricing than lowest bidder"))
	}
	if points := deliveryPenalty(facts.DeliveryDays, bench.FastestDelivery); points > 0 {
		deductions = append(deductions, deduction(MetricDelivery, points, "Slower delivery timeline"))
	}
	if points := warrantyPenalty(facts.WarrantyYears, bench.LongestWarranty); points > 0 {
		deductions = append(deductions, deduction(MetricWarranty, points, "Shorter warranty period"))
	}

	score := base
	for _, d := range deductions {
		score -= d.Points
	}
	if score >= rfp.MaxScore {
		score = perfectScoreCap
	}
	if score < 0 {
		score = 0
	}

	return Adjustment{Score: score, Deductions: deductions}
}

func deduction(metric string, points int, label string) rfp.Deduction {
	return rfp.Deduction{
		Metric: metric,
		Points: points,
		Reason: fmt.Sprintf("%s (−%d)", label, points),
	}
}

func pricePenalty(price, lowest rfp.Number) int {
	p, ok := price.Get()
	if !ok {
		return 0
	}
	l, ok := lowest.Get()
	if !ok || p <= l {
		return 0
	}
	if l <= 0 {
		// any positive price is infinitely above a free offer
		return 8
	}

	ratio := (p - l) / l
	switch {
	case ratio > 0.15:
		return 8
	case ratio > 0.10:
		return 6
	case ratio > 0.05:
		return 4
	default:
		return 2
	}
}

func deliveryPenalty(days, fastest rfp.Number) int {
	d, ok := days.Get()
	if !ok {
		return 0
	}
	f, ok := fastest.Get()
	if !ok || d <= f {
		return 0
	}

	switch delay := d - f; {
	case delay > 10:
		return 5
	case delay > 5:
		return 3
	default:
		return 1
	}
}

func warrantyPenalty(years, longest rfp.Number) int {
	y, ok := years.Get()
	if !ok {
		return 0
	}
	l, ok := longest.Get()
	if !ok || y >= l {
		return 0
	}

	if l-y >= 2 {
		return 7
	}
	return 4
}
