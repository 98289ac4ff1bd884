package metrics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"cpidash/internal/core"
)

// LatestRate is the most recent reading for one category, used by the
// dashboard's headline cards.
type LatestRate struct {
	Date      core.MonthDate `json:"date"`
	CPIValue  float64        `json:"cpi_value"`
	MoMChange core.NullFloat `json:"mom_change"`
	YoYChange core.NullFloat `json:"yoy_change"`
}

// SummaryStats summarizes a category's YoY inflation over a period. A period
// with no defined YoY observations reports Count 0 and undefined fields.
type SummaryStats struct {
	Mean    core.NullFloat `json:"mean_yoy"`
	Median  core.NullFloat `json:"median_yoy"`
	Std     core.NullFloat `json:"std_yoy"`
	Min     core.NullFloat `json:"min_yoy"`
	Max     core.NullFloat `json:"max_yoy"`
	Current core.NullFloat `json:"current_yoy"`
	Count   int            `json:"count"`
}

// GetLatestRate returns the most recent row with a defined YoY change for
// the category. ok is false when the category is absent or its history is
// too short to have any defined YoY reading yet.
func GetLatestRate(t Table, category string) (LatestRate, bool) {
	rows := AddAllMetrics(t).FilterCategory(category)
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].YoYChange.Valid {
			return LatestRate{
				Date:      rows[i].Date,
				CPIValue:  rows[i].Value,
				MoMChange: rows[i].MoMChange,
				YoYChange: rows[i].YoYChange,
			}, true
		}
	}
	return LatestRate{}, false
}

// CompareCategories derives full metrics and restricts the result to the
// given categories and optional date range, ordered by category then date.
func CompareCategories(t Table, categories []string, from, to core.MonthDate) Table {
	out := AddAllMetrics(t).FilterCategories(categories).FilterDateRange(from, to)
	return out.SortByCategoryDate()
}

// AddCumulativeInflation returns one category's rows with the cumulative
// percentage change from the first observation at or after start (zero start
// means the start of history). An absent category yields an empty table.
func AddCumulativeInflation(t Table, category string, start core.MonthDate) Table {
	rows := t.FilterCategory(category).FilterDateRange(start, core.MonthDate{})
	if len(rows) == 0 {
		return rows
	}
	baseline := rows[0].Value
	for i := range rows {
		if baseline == 0 {
			rows[i].CumulativeInflation = &core.NullFloat{}
			continue
		}
		c := core.Float((rows[i].Value/baseline - 1) * 100)
		rows[i].CumulativeInflation = &c
	}
	return rows
}

// GetSummaryStats computes YoY summary statistics for a category over an
// optional date range.
func GetSummaryStats(t Table, category string, from, to core.MonthDate) SummaryStats {
	rows := AddAllMetrics(t).FilterCategory(category).FilterDateRange(from, to)
	var yoy []float64
	var current core.NullFloat
	for _, r := range rows {
		if r.YoYChange.Valid {
			yoy = append(yoy, r.YoYChange.Float64)
			current = r.YoYChange
		}
	}
	if len(yoy) == 0 {
		return SummaryStats{}
	}

	s := SummaryStats{
		Mean:    core.Float(stat.Mean(yoy, nil)),
		Median:  core.Float(median(yoy)),
		Min:     core.Float(minOf(yoy)),
		Max:     core.Float(maxOf(yoy)),
		Current: current,
		Count:   len(yoy),
	}
	if len(yoy) > 1 {
		s.Std = core.Float(stat.StdDev(yoy, nil))
	}
	return s
}

// median uses the conventional midpoint-interpolated definition.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
