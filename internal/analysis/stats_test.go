package analysis

import (
	"math"
	"testing"
	"time"

	"cpidash/internal/core"
	"cpidash/internal/metrics"
)

// rampSeries builds a single-category table whose YoY rate ramps up over
// time: values compound at a monthly rate that itself grows.
func rampSeries(category string, months int) metrics.Table {
	start := core.NewMonthDate(2019, time.January)
	obs := make([]core.Observation, months)
	value := 100.0
	for i := 0; i < months; i++ {
		obs[i] = core.Observation{Date: start.AddMonths(i), Category: category, Value: value}
		monthlyRate := 0.001 + 0.0002*float64(i)
		value *= 1 + monthlyRate
	}
	return metrics.FromObservations(obs)
}

func TestComparePeriods(t *testing.T) {
	table := fixture(60)
	p1From, p1To := core.NewMonthDate(2020, time.June), core.NewMonthDate(2021, time.May)
	p2From, p2To := core.NewMonthDate(2022, time.June), core.NewMonthDate(2023, time.May)

	got := ComparePeriods(table, "Food", p1From, p1To, p2From, p2To)
	if got.Category != "Food" {
		t.Fatalf("category = %q", got.Category)
	}
	for name, ps := range map[string]PeriodStats{"period1": got.Period1, "period2": got.Period2} {
		if !ps.Mean.Valid || !ps.Median.Valid || !ps.Std.Valid || !ps.Min.Valid || !ps.Max.Valid {
			t.Errorf("%s incomplete: %+v", name, ps)
		}
		if math.Abs(ps.Mean.Float64-5.0) > 0.1 {
			t.Errorf("%s mean = %v, want ~5.0", name, ps.Mean)
		}
	}
}

func TestComparePeriodsEmptyRange(t *testing.T) {
	table := fixture(60)
	// Period 1 predates any defined YoY; period 2 is normal.
	got := ComparePeriods(table, "Food",
		core.NewMonthDate(2019, time.January), core.NewMonthDate(2019, time.June),
		core.NewMonthDate(2022, time.January), core.NewMonthDate(2022, time.December))

	if got.Period1.Mean.Valid {
		t.Errorf("period with no YoY data has stats: %+v", got.Period1)
	}
	if !got.Period2.Mean.Valid {
		t.Errorf("normal period missing stats: %+v", got.Period2)
	}
}

func TestInflationPercentile(t *testing.T) {
	table := fixture(60)

	// Gasoline has the highest YoY of five categories: 4 of 5 below it.
	got := InflationPercentile(table, "Gasoline", core.MonthDate{})
	if !got.Valid || got.Float64 != 80 {
		t.Errorf("Gasoline percentile = %v, want 80", got)
	}

	// Transportation is the coolest: nothing below it.
	got = InflationPercentile(table, "Transportation", core.MonthDate{})
	if !got.Valid || got.Float64 != 0 {
		t.Errorf("Transportation percentile = %v, want 0", got)
	}

	if got := InflationPercentile(table, "Unknown", core.MonthDate{}); got.Valid {
		t.Errorf("unknown category percentile = %v, want undefined", got)
	}
}

func TestDetectTrendIncreasing(t *testing.T) {
	got := DetectTrend(rampSeries(core.AllItems, 48), core.AllItems, 6)
	if got.Trend != TrendIncreasing {
		t.Fatalf("trend = %q (slope %v), want increasing", got.Trend, got.Slope)
	}
	if !got.Slope.Valid || got.Slope.Float64 <= slopeThreshold {
		t.Errorf("slope = %v, want > %v", got.Slope, slopeThreshold)
	}
	if !got.Change.Valid || got.Change.Float64 <= 0 {
		t.Errorf("change = %v, want positive", got.Change)
	}
}

func TestDetectTrendStable(t *testing.T) {
	got := DetectTrend(fixture(60), core.AllItems, 6)
	if got.Trend != TrendStable {
		t.Errorf("constant-growth trend = %q (slope %v), want stable", got.Trend, got.Slope)
	}
}

func TestDetectTrendInsufficientData(t *testing.T) {
	start := core.NewMonthDate(2024, time.January)
	table := metrics.FromObservations([]core.Observation{
		{Date: start, Category: core.AllItems, Value: 100},
	})
	got := DetectTrend(table, core.AllItems, 6)
	if got.Trend != TrendInsufficient {
		t.Fatalf("trend = %q, want %q", got.Trend, TrendInsufficient)
	}
	if got.Slope.Valid {
		t.Errorf("insufficient result carries a slope: %v", got.Slope)
	}

	if got := DetectTrend(fixture(60), "Unknown", 6); got.Trend != TrendInsufficient {
		t.Errorf("unknown category trend = %q, want %q", got.Trend, TrendInsufficient)
	}
}

func TestVolatility(t *testing.T) {
	got := Volatility(fixture(60), "Food", 24)
	if !got.Defined {
		t.Fatal("24-month volatility undefined")
	}
	if !got.Std.Valid || got.Std.Float64 < 0 {
		t.Errorf("std = %v", got.Std)
	}
	if !got.Range.Valid || got.Range.Float64 != got.Max.Float64-got.Min.Float64 {
		t.Errorf("range = %v, want max-min", got.Range)
	}
	if !got.CV.Valid {
		t.Errorf("CV undefined for a nonzero-mean series")
	}

	if got := Volatility(fixture(60), "Unknown", 24); got.Defined {
		t.Error("unknown category reported volatility")
	}
}

func TestVolatilityZeroMean(t *testing.T) {
	// Flat values give YoY = 0 everywhere except one blip: mean near zero
	// is fine, an exactly-zero mean must leave CV undefined.
	start := core.NewMonthDate(2020, time.January)
	obs := make([]core.Observation, 36)
	for i := range obs {
		obs[i] = core.Observation{Date: start.AddMonths(i), Category: core.AllItems, Value: 100}
	}
	got := Volatility(metrics.FromObservations(obs), core.AllItems, 24)
	if !got.Defined {
		t.Fatal("volatility undefined for 24 flat YoY points")
	}
	if got.CV.Valid {
		t.Errorf("CV = %v, want undefined when mean is zero", got.CV)
	}
}

func TestAcceleration(t *testing.T) {
	got := Acceleration(rampSeries(core.AllItems, 48), core.AllItems)
	if !got.Defined || got.Label != "accelerating" {
		t.Errorf("ramping series acceleration = %+v, want accelerating", got)
	}

	steady := Acceleration(fixture(60), core.AllItems)
	if !steady.Defined || steady.Label != "steady" {
		t.Errorf("constant-growth acceleration = %+v, want steady", steady)
	}

	if got := Acceleration(fixture(60), "Unknown"); got.Defined {
		t.Error("unknown category reported acceleration")
	}
}

func TestTrendDirection(t *testing.T) {
	got := TrendDirection(rampSeries(core.AllItems, 48), core.AllItems)
	if !got.Defined || got.Label != "rising" {
		t.Errorf("ramping series direction = %+v, want rising", got)
	}

	steady := TrendDirection(fixture(60), core.AllItems)
	if !steady.Defined || steady.Label != "stable" {
		t.Errorf("constant-growth direction = %+v, want stable", steady)
	}

	short := metrics.FromObservations([]core.Observation{
		{Date: core.NewMonthDate(2024, time.January), Category: core.AllItems, Value: 100},
	})
	if got := TrendDirection(short, core.AllItems); got.Defined {
		t.Error("single-point series reported a direction")
	}
}
