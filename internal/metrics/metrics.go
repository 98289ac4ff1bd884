package metrics

import (
	"fmt"

	"cpidash/internal/core"
)

// RollingWindows are the standard rolling-average windows, each with its own
// output column.
var RollingWindows = []int{3, 6, 12}

// pctChange computes (cur/prev - 1) * 100. A zero denominator yields an
// undefined cell, never an infinity.
func pctChange(cur, prev float64) core.NullFloat {
	if prev == 0 {
		return core.NullFloat{}
	}
	return core.Float((cur/prev - 1) * 100)
}

// AddMoMChange sets the month-over-month percentage change for every row.
// The first observation of each category has no prior month and stays
// undefined.
func AddMoMChange(t Table) Table {
	out := t.Clone()
	for _, idx := range out.groups() {
		for pos, i := range idx {
			if pos == 0 {
				out[i].MoMChange = core.NullFloat{}
				continue
			}
			out[i].MoMChange = pctChange(out[i].Value, out[idx[pos-1]].Value)
		}
	}
	return out
}

// AddYoYChange sets the year-over-year percentage change. The lookback is
// positional: the 12th-preceding row in the category's sorted sequence, not
// twelve calendar months.
func AddYoYChange(t Table) Table {
	return addLaggedChange(t, 12, func(r *Row, v core.NullFloat) { r.YoYChange = v })
}

// AddAnnualizedRate sets the percentage change over the given number of
// months (default horizon is 12), using the same positional lookback rule
// as AddYoYChange.
func AddAnnualizedRate(t Table, months int) (Table, error) {
	if months < 1 {
		return nil, fmt.Errorf("annualized rate: invalid horizon %d", months)
	}
	return addLaggedChange(t, months, func(r *Row, v core.NullFloat) { r.AnnualizedRate = &v }), nil
}

func addLaggedChange(t Table, lag int, set func(*Row, core.NullFloat)) Table {
	out := t.Clone()
	for _, idx := range out.groups() {
		for pos, i := range idx {
			if pos < lag {
				set(&out[i], core.NullFloat{})
				continue
			}
			set(&out[i], pctChange(out[i].Value, out[idx[pos-lag]].Value))
		}
	}
	return out
}

// AddRollingAverage sets the right-aligned rolling mean of the YoY column
// for one of the standard windows. Near the start of a category's history
// the window averages over however many defined points exist (at least one);
// a window with no defined points stays undefined.
func AddRollingAverage(t Table, window int) (Table, error) {
	var set func(*Row, core.NullFloat)
	switch window {
	case 3:
		set = func(r *Row, v core.NullFloat) { r.YoYRolling3M = v }
	case 6:
		set = func(r *Row, v core.NullFloat) { r.YoYRolling6M = v }
	case 12:
		set = func(r *Row, v core.NullFloat) { r.YoYRolling12M = v }
	default:
		return nil, fmt.Errorf("rolling average: unsupported window %d (want 3, 6 or 12)", window)
	}

	out := t.Clone()
	for _, idx := range out.groups() {
		for pos, i := range idx {
			start := pos - window + 1
			if start < 0 {
				start = 0
			}
			var sum float64
			var n int
			for _, j := range idx[start : pos+1] {
				if out[j].YoYChange.Valid {
					sum += out[j].YoYChange.Float64
					n++
				}
			}
			if n == 0 {
				set(&out[i], core.NullFloat{})
				continue
			}
			set(&out[i], core.Float(sum/float64(n)))
		}
	}
	return out, nil
}

// AddBaseEffects decomposes the YoY rate into current momentum and the base
// effect inherited from twelve months ago:
//
//	annualized_mom           = mom * 12 (linear extrapolation, not compounded)
//	base_effect_contribution = yoy - annualized_mom
//	value_12m_ago            = the positional 12-back index value
//
// A positive contribution means a low base a year ago is inflating the
// current YoY reading; a negative one means a high base is deflating it.
func AddBaseEffects(t Table) Table {
	out := t.Clone()
	for _, idx := range out.groups() {
		for pos, i := range idx {
			r := &out[i]
			if r.MoMChange.Valid {
				r.AnnualizedMoM = core.Float(r.MoMChange.Float64 * 12)
			} else {
				r.AnnualizedMoM = core.NullFloat{}
			}
			if r.YoYChange.Valid && r.AnnualizedMoM.Valid {
				r.BaseEffectContribution = core.Float(r.YoYChange.Float64 - r.AnnualizedMoM.Float64)
			} else {
				r.BaseEffectContribution = core.NullFloat{}
			}
			if pos >= 12 {
				r.Value12MAgo = core.Float(out[idx[pos-12]].Value)
			} else {
				r.Value12MAgo = core.NullFloat{}
			}
		}
	}
	return out
}

// AddAllMetrics runs the full pipeline in dependency order: MoM, YoY, the
// three rolling YoY averages, then the base-effect decomposition. This is
// the single entry point the analysis layer and all presentation callers
// derive metrics through; calling it on an already-derived table recomputes
// the same values.
func AddAllMetrics(t Table) Table {
	out := AddMoMChange(t)
	out = AddYoYChange(out)
	for _, w := range RollingWindows {
		out, _ = AddRollingAverage(out, w)
	}
	return AddBaseEffects(out)
}

// DetectBaseEffectPeriods flags months where the YoY rate jumped while
// current momentum stayed calm, implicating the 12-months-ago base rather
// than present price action: |Δyoy| > yoyThreshold and |mom| < momThreshold.
// Only the flagged rows are returned, with YoYChangeDelta and IsBaseEffect
// populated, ordered by category then date.
func DetectBaseEffectPeriods(t Table, yoyThreshold, momThreshold float64) Table {
	derived := AddAllMetrics(t)
	var out Table
	for _, idx := range derived.groups() {
		for pos, i := range idx {
			if pos == 0 {
				continue
			}
			r := derived[i]
			prev := derived[idx[pos-1]]
			if !r.YoYChange.Valid || !prev.YoYChange.Valid || !r.MoMChange.Valid {
				continue
			}
			delta := r.YoYChange.Float64 - prev.YoYChange.Float64
			if abs(delta) > yoyThreshold && abs(r.MoMChange.Float64) < momThreshold {
				d := core.Float(delta)
				r.YoYChangeDelta = &d
				r.IsBaseEffect = true
				out = append(out, r)
			}
		}
	}
	return out.SortByCategoryDate()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
