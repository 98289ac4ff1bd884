package metrics

import (
	"fmt"

	"cpidash/internal/core"
)

// MoMAssumption selects the month-over-month rate used to compound a series
// forward when projecting future YoY inflation.
type MoMAssumption string

const (
	// AssumptionZero holds the index flat.
	AssumptionZero MoMAssumption = "zero"
	// AssumptionCurrent repeats the latest observed MoM change.
	AssumptionCurrent MoMAssumption = "current"
	// AssumptionRecentAverage repeats the mean of the last three observed
	// MoM changes.
	AssumptionRecentAverage MoMAssumption = "recent_average"
)

// Projection is one projected future month. Projections are a distinct
// record type, never mixed into historical tables.
type Projection struct {
	Date       core.MonthDate `json:"date"`
	Category   string         `json:"category"`
	Value      float64        `json:"value"`
	YoYChange  float64        `json:"yoy_change"`
	Assumption MoMAssumption  `json:"assumption"`
	Projected  bool           `json:"is_projection"`
}

// ProjectFutureYoY compounds the category's latest index value forward month
// by month under the given MoM assumption, and computes each projected
// month's YoY against the actual observation exactly twelve calendar months
// earlier. Future months with no such actual observation yield no projection
// row. An unknown category or a history too short to price the assumption
// yields an empty result, not an error.
func ProjectFutureYoY(t Table, category string, monthsAhead int, assumption MoMAssumption) ([]Projection, error) {
	switch assumption {
	case AssumptionZero, AssumptionCurrent, AssumptionRecentAverage:
	default:
		return nil, fmt.Errorf("project future yoy: unknown assumption %q", assumption)
	}
	if monthsAhead < 1 {
		return nil, fmt.Errorf("project future yoy: invalid horizon %d", monthsAhead)
	}

	hist := AddMoMChange(t).FilterCategory(category)
	if len(hist) == 0 {
		return nil, nil
	}

	rate, ok := assumedRate(hist, assumption)
	if !ok {
		return nil, nil
	}

	byDate := make(map[core.MonthDate]float64, len(hist))
	for _, r := range hist {
		byDate[r.Date] = r.Value
	}

	latest := hist[len(hist)-1]
	value := latest.Value
	var out []Projection
	for k := 1; k <= monthsAhead; k++ {
		value *= 1 + rate/100
		date := latest.Date.AddMonths(k)
		base, exists := byDate[date.AddMonths(-12)]
		if !exists || base == 0 {
			continue
		}
		out = append(out, Projection{
			Date:       date,
			Category:   category,
			Value:      value,
			YoYChange:  (value/base - 1) * 100,
			Assumption: assumption,
			Projected:  true,
		})
	}
	return out, nil
}

// assumedRate prices the MoM assumption off the (sorted) category history.
func assumedRate(hist Table, assumption MoMAssumption) (float64, bool) {
	switch assumption {
	case AssumptionZero:
		return 0, true
	case AssumptionCurrent:
		for i := len(hist) - 1; i >= 0; i-- {
			if hist[i].MoMChange.Valid {
				return hist[i].MoMChange.Float64, true
			}
		}
		return 0, false
	case AssumptionRecentAverage:
		var sum float64
		var n int
		for i := len(hist) - 1; i >= 0 && n < 3; i-- {
			if hist[i].MoMChange.Valid {
				sum += hist[i].MoMChange.Float64
				n++
			}
		}
		if n == 0 {
			return 0, false
		}
		return sum / float64(n), true
	}
	return 0, false
}
