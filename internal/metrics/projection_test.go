package metrics

import (
	"math"
	"testing"
	"time"

	"cpidash/internal/core"
)

func TestProjectFutureYoYZeroAssumption(t *testing.T) {
	table := FromObservations(compoundingSeries(core.AllItems, 24, 0.02))
	rows := table.FilterCategory(core.AllItems)
	latest := rows[len(rows)-1]

	got, err := ProjectFutureYoY(table, core.AllItems, 3, AssumptionZero)
	if err != nil {
		t.Fatalf("ProjectFutureYoY: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("projected %d rows, want 3", len(got))
	}
	for k, p := range got {
		if p.Value != latest.Value {
			t.Errorf("month %d: value = %v, want latest %v held flat", k+1, p.Value, latest.Value)
		}
		wantDate := latest.Date.AddMonths(k + 1)
		if !p.Date.Equal(wantDate) {
			t.Errorf("month %d: date = %s, want %s", k+1, p.Date, wantDate)
		}
		base := rows[len(rows)-12+k].Value
		wantYoY := (latest.Value/base - 1) * 100
		if math.Abs(p.YoYChange-wantYoY) > 1e-9 {
			t.Errorf("month %d: YoY = %v, want %v", k+1, p.YoYChange, wantYoY)
		}
		if !p.Projected || p.Assumption != AssumptionZero {
			t.Errorf("month %d: missing projection tags: %+v", k+1, p)
		}
	}
}

func TestProjectFutureYoYCurrentAssumption(t *testing.T) {
	table := FromObservations(compoundingSeries(core.AllItems, 24, 0.02))
	rows := AddMoMChange(table).FilterCategory(core.AllItems)
	latest := rows[len(rows)-1]
	rate := latest.MoMChange.Float64

	got, err := ProjectFutureYoY(table, core.AllItems, 2, AssumptionCurrent)
	if err != nil {
		t.Fatalf("ProjectFutureYoY: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("projected %d rows, want 2", len(got))
	}
	want := latest.Value * (1 + rate/100)
	if math.Abs(got[0].Value-want) > 1e-9 {
		t.Errorf("first projected value = %v, want %v", got[0].Value, want)
	}
	want *= 1 + rate/100
	if math.Abs(got[1].Value-want) > 1e-9 {
		t.Errorf("second projected value = %v, want %v", got[1].Value, want)
	}
}

func TestProjectFutureYoYSkipsMonthsWithoutActuals(t *testing.T) {
	// Projecting 14 months past the end of history: only the first 12
	// future months have an actual observation 12 months earlier.
	table := FromObservations(compoundingSeries(core.AllItems, 24, 0.02))
	got, err := ProjectFutureYoY(table, core.AllItems, 14, AssumptionZero)
	if err != nil {
		t.Fatalf("ProjectFutureYoY: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("projected %d rows, want 12", len(got))
	}
}

func TestProjectFutureYoYEdgeCases(t *testing.T) {
	table := FromObservations(compoundingSeries(core.AllItems, 24, 0.02))

	if _, err := ProjectFutureYoY(table, core.AllItems, 3, MoMAssumption("guess")); err == nil {
		t.Error("unknown assumption accepted")
	}
	if _, err := ProjectFutureYoY(table, core.AllItems, 0, AssumptionZero); err == nil {
		t.Error("zero horizon accepted")
	}

	got, err := ProjectFutureYoY(table, "Unknown", 3, AssumptionZero)
	if err != nil || len(got) != 0 {
		t.Errorf("unknown category: got %d rows, err %v; want empty, nil", len(got), err)
	}

	// A single observation has no MoM history to price "current" from.
	short := FromObservations(compoundingSeries(core.AllItems, 1, 0.02))
	got, err = ProjectFutureYoY(short, core.AllItems, 3, AssumptionCurrent)
	if err != nil || len(got) != 0 {
		t.Errorf("insufficient history: got %d rows, err %v; want empty, nil", len(got), err)
	}
}

func TestProjectFutureYoYRecentAverage(t *testing.T) {
	// Last three MoM changes of 1%, 2%, 3% average to 2%.
	start := core.NewMonthDate(2023, time.January)
	values := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 101, 103.02, 106.1106}
	obs := make([]core.Observation, len(values))
	for i, v := range values {
		obs[i] = core.Observation{Date: start.AddMonths(i), Category: core.AllItems, Value: v}
	}

	got, err := ProjectFutureYoY(FromObservations(obs), core.AllItems, 1, AssumptionRecentAverage)
	if err != nil {
		t.Fatalf("ProjectFutureYoY: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("projected %d rows, want 1", len(got))
	}
	want := 106.1106 * 1.02
	if math.Abs(got[0].Value-want) > 1e-6 {
		t.Errorf("projected value = %v, want %v", got[0].Value, want)
	}
}
