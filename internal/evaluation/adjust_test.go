package evaluation

import (
	"math"
	"strings"
	"testing"

	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/stretchr/testify/require"
)

func facts(price, delivery, warranty *float64) rfp.Facts {
	return rfp.Facts{
		TotalPrice:    num(price),
		DeliveryDays:  num(delivery),
		WarrantyYears: num(warranty),
	}
}

func num(v *float64) rfp.Number {
	if v == nil {
		return rfp.Unknown()
	}
	return rfp.Known(*v)
}

func f(v float64) *float64 { return &v }

func TestComputeBenchmark(t *testing.T) {
	bench := ComputeBenchmark([]rfp.Facts{
		facts(f(100), nil, f(1)),
		facts(f(80), f(12), nil),
		facts(nil, f(7), f(3)),
	})

	requireNumber(t, 80, bench.LowestPrice)
	requireNumber(t, 7, bench.FastestDelivery)
	requireNumber(t, 3, bench.LongestWarranty)
}

func TestComputeBenchmarkAllUnknown(t *testing.T) {
	bench := ComputeBenchmark([]rfp.Facts{facts(nil, nil, nil), facts(f(50), nil, nil)})

	requireNumber(t, 50, bench.LowestPrice)
	require.False(t, bench.FastestDelivery.IsKnown())
	require.False(t, bench.LongestWarranty.IsKnown())

	empty := ComputeBenchmark(nil)
	require.False(t, empty.LowestPrice.IsKnown())
	v, _ := empty.LowestPrice.Get()
	require.False(t, math.IsInf(v, 0))
}

func TestComputeBenchmarkZeroIsAValue(t *testing.T) {
	bench := ComputeBenchmark([]rfp.Facts{facts(f(10), f(3), f(0)), facts(f(0), f(0), nil)})

	requireNumber(t, 0, bench.LowestPrice)
	requireNumber(t, 0, bench.FastestDelivery)
	requireNumber(t, 0, bench.LongestWarranty)
}

func TestAdjustPriceTiers(t *testing.T) {
	bench := rfp.Benchmark{LowestPrice: rfp.Known(100)}

	cases := []struct {
		price float64
		want  int
	}{
		{price: 120, want: 8},
		{price: 116, want: 8},
		{price: 115, want: 6},
		{price: 111, want: 6},
		{price: 110, want: 4},
		{price: 107, want: 4},
		{price: 105, want: 2},
		{price: 100.5, want: 2},
		{price: 100, want: 0},
		{price: 90, want: 0},
	}

	for _, tc := range cases {
		got := Adjust(80, facts(f(tc.price), nil, nil), bench)
		require.Equal(t, 80-tc.want, got.Score, "price %v", tc.price)
		if tc.want == 0 {
			require.Empty(t, got.Deductions, "price %v", tc.price)
			continue
		}
		require.Len(t, got.Deductions, 1)
		require.Equal(t, MetricPrice, got.Deductions[0].Metric)
		require.Equal(t, tc.want, got.Deductions[0].Points)
	}
}

func TestAdjustDeliveryTiers(t *testing.T) {
	bench := rfp.Benchmark{FastestDelivery: rfp.Known(5)}

	for days, want := range map[float64]int{16: 5, 15: 3, 11: 3, 10: 1, 6: 1, 5: 0, 3: 0} {
		got := Adjust(50, facts(nil, f(days), nil), bench)
		require.Equal(t, 50-want, got.Score, "delivery %v", days)
	}

	got := Adjust(50, facts(nil, f(16), nil), bench)
	require.Equal(t, []string{"Slower delivery timeline (−5)"}, got.Reasons())
}

func TestAdjustWarrantyTiers(t *testing.T) {
	bench := rfp.Benchmark{LongestWarranty: rfp.Known(3)}

	for years, want := range map[float64]int{0: 7, 1: 7, 1.5: 4, 2: 4, 2.5: 4, 3: 0, 4: 0} {
		got := Adjust(50, facts(nil, nil, f(years)), bench)
		require.Equal(t, 50-want, got.Score, "warranty %v", years)
	}

	got := Adjust(50, facts(nil, nil, f(1)), bench)
	require.Equal(t, []string{"Shorter warranty period (−7)"}, got.Reasons())
}

func TestAdjustAbsence(t *testing.T) {
	bench := rfp.Benchmark{LowestPrice: rfp.Known(10), FastestDelivery: rfp.Known(1), LongestWarranty: rfp.Known(5)}

	got := Adjust(70, facts(nil, nil, nil), bench)
	require.Equal(t, 70, got.Score)
	require.Empty(t, got.Deductions)

	got = Adjust(70, facts(f(1000), f(100), f(0)), rfp.Benchmark{})
	require.Equal(t, 70, got.Score)
	require.Empty(t, got.Deductions)
}

func TestAdjustFreeLowestBid(t *testing.T) {
	got := Adjust(60, facts(f(10), nil, nil), rfp.Benchmark{LowestPrice: rfp.Known(0)})
	require.Equal(t, 52, got.Score)
	require.Equal(t, "Higher pricing than lowest bidder (−8)", got.Deductions[0].Reason)
}

func TestAdjustCapAndFloor(t *testing.T) {
	alone := facts(f(100), f(5), f(2))
	bench := ComputeBenchmark([]rfp.Facts{alone})

	require.Equal(t, 97, Adjust(100, alone, bench).Score)
	require.Equal(t, 99, Adjust(99, alone, bench).Score)

	worst := facts(f(200), f(30), f(0))
	floorBench := rfp.Benchmark{LowestPrice: rfp.Known(100), FastestDelivery: rfp.Known(1), LongestWarranty: rfp.Known(5)}
	got := Adjust(5, worst, floorBench)
	require.Len(t, got.Deductions, 3)
	require.Equal(t, 0, got.Score)
}

func TestAdjustNeverRaisesScore(t *testing.T) {
	bench := rfp.Benchmark{LowestPrice: rfp.Known(100), FastestDelivery: rfp.Known(5), LongestWarranty: rfp.Known(3)}
	prices := []*float64{nil, f(90), f(100), f(104), f(109), f(114), f(300)}
	days := []*float64{nil, f(1), f(5), f(9), f(12), f(40)}
	warranties := []*float64{nil, f(0), f(1), f(2.5), f(3), f(6)}

	for base := 0; base <= rfp.MaxScore; base += 7 {
		for _, p := range prices {
			for _, d := range days {
				for _, w := range warranties {
					got := Adjust(base, facts(p, d, w), bench)
					require.GreaterOrEqual(t, got.Score, 0)
					require.Less(t, got.Score, rfp.MaxScore)
					require.LessOrEqual(t, got.Score, base)
				}
			}
		}
	}
}

func TestAdjustOrdersReasons(t *testing.T) {
	bench := rfp.Benchmark{LowestPrice: rfp.Known(90), FastestDelivery: rfp.Known(5), LongestWarranty: rfp.Known(3)}

	got := Adjust(90, facts(f(120), f(8), f(1)), bench)

	require.Equal(t, 74, got.Score)
	require.Equal(t, []string{
		"Higher pricing than lowest bidder (−8)",
		"Slower delivery timeline (−1)",
		"Shorter warranty period (−7)",
	}, got.Reasons())
}

func TestComposeSummary(t *testing.T) {
	require.Equal(t,
		"Meets every requirement. No competitive disadvantages were identified.",
		ComposeSummary(" Meets every requirement. ", nil),
	)
	require.Equal(t, "No competitive disadvantages were identified.", ComposeSummary("", nil))

	price := []rfp.Deduction{{Metric: MetricPrice, Points: 8, Reason: "Higher pricing than lowest bidder (−8)"}}
	summary := ComposeSummary("Good fit.", price)
	require.Equal(t, "Good fit. Competitive considerations: Higher pricing than lowest bidder (−8).", summary)

	both := append(price, rfp.Deduction{Metric: MetricDelivery, Points: 1, Reason: "Slower delivery timeline (−1)"})
	require.True(t, strings.HasSuffix(ComposeSummary("x", both),
		"Competitive considerations: Higher pricing than lowest bidder (−8); Slower delivery timeline (−1)."))
}

func requireNumber(t *testing.T, want float64, n rfp.Number) {
	t.Helper()
	got, ok := n.Get()
	require.True(t, ok, "expected a known value")
	require.Equal(t, want, got)
}
