package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"cpidash/internal/core"
	"cpidash/internal/metrics"
)

// Trend classification labels.
const (
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// slopeThreshold is the linear-fit slope (percentage points per month)
// separating stable from trending.
const slopeThreshold = 0.05

// directionThreshold separates steady from moving for the dashboard's
// 3-month trend and momentum cards.
const directionThreshold = 0.1

type (
	// PeriodStats summarizes YoY inflation within one date range. A range
	// with no defined YoY observations leaves every field undefined.
	PeriodStats struct {
		Start  core.MonthDate `json:"start"`
		End    core.MonthDate `json:"end"`
		Mean   core.NullFloat `json:"mean_inflation"`
		Median core.NullFloat `json:"median_inflation"`
		Min    core.NullFloat `json:"min_inflation"`
		Max    core.NullFloat `json:"max_inflation"`
		Std    core.NullFloat `json:"std_inflation"`
	}

	// PeriodComparison holds side-by-side statistics for two periods of one
	// category.
	PeriodComparison struct {
		Category string      `json:"category"`
		Period1  PeriodStats `json:"period1"`
		Period2  PeriodStats `json:"period2"`
	}

	// TrendResult classifies whether a category's inflation is trending up,
	// down, or holding. Trend is TrendInsufficient when either comparison
	// window has fewer than two defined points.
	TrendResult struct {
		Trend        string         `json:"trend"`
		Slope        core.NullFloat `json:"slope"`
		RecentMean   core.NullFloat `json:"recent_mean"`
		PreviousMean core.NullFloat `json:"previous_mean"`
		Change       core.NullFloat `json:"change"`
	}

	// VolatilityResult reports dispersion of a category's recent YoY
	// readings. Defined is false below two usable points.
	VolatilityResult struct {
		Defined bool           `json:"defined"`
		Std     core.NullFloat `json:"std"`
		Range   core.NullFloat `json:"range"`
		CV      core.NullFloat `json:"cv"`
		Min     core.NullFloat `json:"min"`
		Max     core.NullFloat `json:"max"`
	}

	// AccelerationResult is the dashboard momentum card: the change in the
	// YoY rate versus the previous month.
	AccelerationResult struct {
		Defined      bool           `json:"defined"`
		Label        string         `json:"label"`
		Acceleration core.NullFloat `json:"acceleration"`
	}

	// DirectionResult is the dashboard 3-month trend card: the recent
	// 3-month YoY average versus the previous one.
	DirectionResult struct {
		Defined bool           `json:"defined"`
		Label   string         `json:"label"`
		Change  core.NullFloat `json:"change"`
	}
)

// ComparePeriods computes independent YoY summary statistics for two date
// ranges of one category. A range with no defined YoY observations yields an
// empty statistics object, not an error.
func ComparePeriods(t metrics.Table, category string, p1From, p1To, p2From, p2To core.MonthDate) PeriodComparison {
	rows := metrics.AddAllMetrics(t).FilterCategory(category)
	return PeriodComparison{
		Category: category,
		Period1:  periodStats(rows, p1From, p1To),
		Period2:  periodStats(rows, p2From, p2To),
	}
}

func periodStats(rows metrics.Table, from, to core.MonthDate) PeriodStats {
	ps := PeriodStats{Start: from, End: to}
	yoy := validYoY(rows.FilterDateRange(from, to))
	if len(yoy) == 0 {
		return ps
	}
	ps.Mean = core.Float(stat.Mean(yoy, nil))
	ps.Median = core.Float(medianOf(yoy))
	ps.Min, ps.Max = minMax(yoy)
	if len(yoy) > 1 {
		ps.Std = core.Float(stat.StdDev(yoy, nil))
	}
	return ps
}

// InflationPercentile ranks a category's snapshot YoY against all categories
// present at the target date (zero date means latest), scaled 0-100. A
// category absent from the snapshot yields an undefined result.
func InflationPercentile(t metrics.Table, category string, date core.MonthDate) core.NullFloat {
	snapshot := CategoryBreakdown(t, date)

	var own core.NullFloat
	for _, r := range snapshot {
		if r.Category == category {
			own = r.YoYChange
			break
		}
	}
	if !own.Valid {
		return core.NullFloat{}
	}

	below := 0
	for _, r := range snapshot {
		if r.YoYChange.Float64 < own.Float64 {
			below++
		}
	}
	return core.Float(float64(below) / float64(len(snapshot)) * 100)
}

// DetectTrend compares the mean YoY over the most recent lookback months
// against the immediately preceding, non-overlapping window of equal length,
// and classifies the direction by the slope of a linear fit to the recent
// window.
func DetectTrend(t metrics.Table, category string, lookbackMonths int) TrendResult {
	rows := metrics.AddAllMetrics(t).FilterCategory(category)
	yoy := validYoY(rows)

	if len(yoy) < lookbackMonths+2 || lookbackMonths < 2 {
		return TrendResult{Trend: TrendInsufficient}
	}
	recent := yoy[len(yoy)-lookbackMonths:]
	prevStart := len(yoy) - 2*lookbackMonths
	if prevStart < 0 {
		prevStart = 0
	}
	previous := yoy[prevStart : len(yoy)-lookbackMonths]
	if len(previous) < 2 {
		return TrendResult{Trend: TrendInsufficient}
	}

	xs := make([]float64, len(recent))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, recent, nil, false)

	trend := TrendStable
	switch {
	case slope > slopeThreshold:
		trend = TrendIncreasing
	case slope < -slopeThreshold:
		trend = TrendDecreasing
	}

	recentMean := stat.Mean(recent, nil)
	previousMean := stat.Mean(previous, nil)
	return TrendResult{
		Trend:        trend,
		Slope:        core.Float(slope),
		RecentMean:   core.Float(recentMean),
		PreviousMean: core.Float(previousMean),
		Change:       core.Float(recentMean - previousMean),
	}
}

// Volatility reports dispersion of a category's YoY changes over its last
// `months` rows. Fewer than two defined points yields an undefined result.
func Volatility(t metrics.Table, category string, months int) VolatilityResult {
	rows := metrics.AddAllMetrics(t).FilterCategory(category)
	if len(rows) > months {
		rows = rows[len(rows)-months:]
	}
	yoy := validYoY(rows)
	if len(yoy) < 2 {
		return VolatilityResult{}
	}

	std := stat.StdDev(yoy, nil)
	mean := stat.Mean(yoy, nil)
	min, max := minMax(yoy)

	res := VolatilityResult{
		Defined: true,
		Std:     core.Float(std),
		Range:   core.Float(max.Float64 - min.Float64),
		Min:     min,
		Max:     max,
	}
	if mean != 0 {
		res.CV = core.Float(std / absOf(mean))
	}
	return res
}

// Acceleration reports the change in a category's YoY rate versus the
// previous month, with a label for the dashboard's momentum card.
func Acceleration(t metrics.Table, category string) AccelerationResult {
	rows := metrics.AddAllMetrics(t).FilterCategory(category)
	if len(rows) < 2 {
		return AccelerationResult{}
	}
	cur, prev := rows[len(rows)-1].YoYChange, rows[len(rows)-2].YoYChange
	if !cur.Valid || !prev.Valid {
		return AccelerationResult{}
	}

	accel := cur.Float64 - prev.Float64
	label := "steady"
	switch {
	case accel > directionThreshold:
		label = "accelerating"
	case accel < -directionThreshold:
		label = "decelerating"
	}
	return AccelerationResult{Defined: true, Label: label, Acceleration: core.Float(accel)}
}

// TrendDirection reports the 3-month YoY average against the previous
// 3-month window (computed over the category's last four rows, matching the
// dashboard card).
func TrendDirection(t metrics.Table, category string) DirectionResult {
	rows := metrics.AddAllMetrics(t).FilterCategory(category)
	if len(rows) < 4 {
		return DirectionResult{}
	}
	tail := rows[len(rows)-4:]
	recent := validYoY(tail[1:])
	previous := validYoY(tail[:3])
	if len(recent) == 0 || len(previous) == 0 {
		return DirectionResult{}
	}

	change := stat.Mean(recent, nil) - stat.Mean(previous, nil)
	label := "stable"
	switch {
	case change > directionThreshold:
		label = "rising"
	case change < -directionThreshold:
		label = "falling"
	}
	return DirectionResult{Defined: true, Label: label, Change: core.Float(change)}
}

func validYoY(rows metrics.Table) []float64 {
	var out []float64
	for _, r := range rows {
		if r.YoYChange.Valid {
			out = append(out, r.YoYChange.Float64)
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minMax(values []float64) (core.NullFloat, core.NullFloat) {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return core.Float(min), core.Float(max)
}

func absOf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
