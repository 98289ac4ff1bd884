// Package metrics implements the inflation metrics engine: deterministic,
// per-category transforms over a long-format CPI series. Every transform
// copies its input; a Table handed to the engine is never mutated.
package metrics

import (
	"sort"

	"cpidash/internal/core"
)

type (
	// Row is one observation plus the metric cells the pipeline layers on.
	// A cell is undefined until the transform that owns it has run and its
	// lag/window requirement is satisfiable at that position.
	Row struct {
		core.Observation
		MoMChange              core.NullFloat `json:"mom_change"`
		YoYChange              core.NullFloat `json:"yoy_change"`
		YoYRolling3M           core.NullFloat `json:"yoy_change_rolling_3m"`
		YoYRolling6M           core.NullFloat `json:"yoy_change_rolling_6m"`
		YoYRolling12M          core.NullFloat `json:"yoy_change_rolling_12m"`
		AnnualizedMoM          core.NullFloat `json:"annualized_mom"`
		BaseEffectContribution core.NullFloat `json:"base_effect_contribution"`
		Value12MAgo            core.NullFloat `json:"value_12m_ago"`
		// Pointer columns only exist after their transform ran; nil is
		// omitted from JSON, a pointed-to invalid cell serializes as null.
		AnnualizedRate      *core.NullFloat `json:"annualized_rate,omitempty"`
		CumulativeInflation *core.NullFloat `json:"cumulative_inflation,omitempty"`
		YoYChangeDelta      *core.NullFloat `json:"yoy_change_delta,omitempty"`
		IsBaseEffect        bool            `json:"is_base_effect,omitempty"`
	}

	// Table is a long-format CPI series, one Row per (date, category).
	// Row order carries no meaning; transforms regroup and sort internally.
	Table []Row
)

// FromObservations builds a Table from loader output.
func FromObservations(obs []core.Observation) Table {
	t := make(Table, len(obs))
	for i, o := range obs {
		t[i] = Row{Observation: o}
	}
	return t
}

// Clone returns an independent copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Categories returns the sorted set of category labels present.
func (t Table) Categories() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range t {
		if _, ok := seen[r.Category]; !ok {
			seen[r.Category] = struct{}{}
			out = append(out, r.Category)
		}
	}
	sort.Strings(out)
	return out
}

// MaxDate returns the most recent date present, false on an empty table.
func (t Table) MaxDate() (core.MonthDate, bool) {
	var max core.MonthDate
	found := false
	for _, r := range t {
		if !found || r.Date.After(max) {
			max = r.Date
			found = true
		}
	}
	return max, found
}

// FilterCategories returns the rows whose category is in the given set.
// Categories absent from the table are simply not represented in the result.
func (t Table) FilterCategories(categories []string) Table {
	want := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		want[c] = struct{}{}
	}
	out := make(Table, 0, len(t))
	for _, r := range t {
		if _, ok := want[r.Category]; ok {
			out = append(out, r)
		}
	}
	return out
}

// FilterDateRange clips the table to [from, to]. A zero bound is open.
func (t Table) FilterDateRange(from, to core.MonthDate) Table {
	out := make(Table, 0, len(t))
	for _, r := range t {
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterCategory returns one category's rows sorted by date ascending.
func (t Table) FilterCategory(category string) Table {
	out := make(Table, 0)
	for _, r := range t {
		if r.Category == category {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SortByCategoryDate returns a copy ordered by category, then date.
func (t Table) SortByCategoryDate() Table {
	out := t.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// groups partitions the table into per-category runs of indices, each run
// sorted by date ascending. Positional lag/window math operates on one run
// at a time and never crosses a category boundary.
func (t Table) groups() map[string][]int {
	groups := make(map[string][]int)
	for i, r := range t {
		groups[r.Category] = append(groups[r.Category], i)
	}
	for _, idx := range groups {
		sort.Slice(idx, func(a, b int) bool {
			return t[idx[a]].Date.Before(t[idx[b]].Date)
		})
	}
	return groups
}
