// Package analysis provides the dashboard-facing queries built on the
// metrics engine. Every function is a stateless query over an immutable
// snapshot: metrics are re-derived from the raw series on each call rather
// than trusted from a caller-supplied pre-derived table.
package analysis

import (
	"sort"

	"cpidash/internal/core"
	"cpidash/internal/metrics"
)

// RecentTrends returns full metrics for the last `months` months of the
// table, anchored to the maximum date present (not wall-clock now),
// restricted to the given categories (default headline set). Rows are
// ordered by category then date.
func RecentTrends(t metrics.Table, months int, categories []string) metrics.Table {
	derived := metrics.AddAllMetrics(t)
	maxDate, ok := derived.MaxDate()
	if !ok {
		return metrics.Table{}
	}
	if len(categories) == 0 {
		categories = core.DefaultRecentCategories
	}
	cutoff := maxDate.AddMonths(-months)
	out := derived.FilterDateRange(cutoff, core.MonthDate{}).FilterCategories(categories)
	return out.SortByCategoryDate()
}

// HistoricalComparison returns full metrics over the whole history (or an
// optional date range) for the given categories (default headline set).
func HistoricalComparison(t metrics.Table, categories []string, from, to core.MonthDate) metrics.Table {
	if len(categories) == 0 {
		categories = core.DefaultHistoricalCategories
	}
	out := metrics.AddAllMetrics(t).FilterCategories(categories).FilterDateRange(from, to)
	return out.SortByCategoryDate()
}

// CategoryBreakdown returns the cross-category snapshot at the target date
// (zero date means the table's maximum), keeping only rows with a defined
// YoY change, sorted descending by YoY.
func CategoryBreakdown(t metrics.Table, date core.MonthDate) metrics.Table {
	derived := metrics.AddAllMetrics(t)
	if date.IsZero() {
		maxDate, ok := derived.MaxDate()
		if !ok {
			return metrics.Table{}
		}
		date = maxDate
	}

	out := make(metrics.Table, 0)
	for _, r := range derived {
		if r.Date.Equal(date) && r.YoYChange.Valid {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].YoYChange.Float64 > out[j].YoYChange.Float64
	})
	return out
}

// TopInflating returns the n highest-YoY categories at the target date.
func TopInflating(t metrics.Table, date core.MonthDate, n int) metrics.Table {
	snapshot := CategoryBreakdown(t, date)
	if n > len(snapshot) {
		n = len(snapshot)
	}
	if n < 0 {
		n = 0
	}
	return snapshot[:n]
}

// BottomInflating returns the n lowest-YoY categories at the target date,
// still in descending YoY order (the tail of the sorted snapshot).
func BottomInflating(t metrics.Table, date core.MonthDate, n int) metrics.Table {
	snapshot := CategoryBreakdown(t, date)
	if n > len(snapshot) {
		n = len(snapshot)
	}
	if n < 0 {
		n = 0
	}
	return snapshot[len(snapshot)-n:]
}

// CategoryTrends returns full metrics for all categories over an optional
// date range.
func CategoryTrends(t metrics.Table, from, to core.MonthDate) metrics.Table {
	return metrics.AddAllMetrics(t).FilterDateRange(from, to).SortByCategoryDate()
}

// MonthlySummary returns all rows for one calendar month, optionally
// restricted to a category set, sorted descending by YoY change (rows with
// undefined YoY sort last).
func MonthlySummary(t metrics.Table, month core.MonthDate, categories []string) metrics.Table {
	derived := metrics.AddAllMetrics(t)

	out := make(metrics.Table, 0)
	for _, r := range derived {
		if r.Date.Equal(month) {
			out = append(out, r)
		}
	}
	if len(categories) > 0 {
		out = out.FilterCategories(categories)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].YoYChange, out[j].YoYChange
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Float64 > b.Float64
	})
	return out
}
