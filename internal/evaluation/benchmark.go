package evaluation

import "github.com/spigell/rfp-evaluator/internal/rfp"

// ComputeBenchmark returns the best known value per metric across the cohort.
// A metric nobody reported stays unknown.
func ComputeBenchmark(facts []rfp.Facts) rfp.Benchmark {
	var bench rfp.Benchmark

	for _, f := range facts {
		bench.LowestPrice = best(bench.LowestPrice, f.TotalPrice, lower)
		bench.FastestDelivery = best(bench.FastestDelivery, f.DeliveryDays, lower)
		bench.LongestWarranty = best(bench.LongestWarranty, f.WarrantyYears, higher)
	}

	return bench
}

func lower(candidate, current float64) bool  { return candidate < current }
func higher(candidate, current float64) bool { return candidate > current }

func best(current, candidate rfp.Number, better func(candidate, current float64) bool) rfp.Number {
	value, ok := candidate.Get()
	if !ok {
		return current
	}
	existing, known := current.Get()
	if !known || better(value, existing) {
		return candidate
	}
	return current
}
