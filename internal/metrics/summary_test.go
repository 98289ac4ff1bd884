package metrics

import (
	"math"
	"testing"
	"time"

	"cpidash/internal/core"
)

func TestGetLatestRate(t *testing.T) {
	table := FromObservations(compoundingSeries(core.AllItems, 24, 0.02))

	latest, ok := GetLatestRate(table, core.AllItems)
	if !ok {
		t.Fatal("no latest rate for a 24-month series")
	}
	if !latest.Date.Equal(core.NewMonthDate(2021, time.December)) {
		t.Errorf("latest date = %s, want 2021-12", latest.Date)
	}
	if !latest.YoYChange.Valid || math.Abs(latest.YoYChange.Float64-2.0) > 0.05 {
		t.Errorf("latest YoY = %v, want ~2.0", latest.YoYChange)
	}

	if _, ok := GetLatestRate(table, "Unknown"); ok {
		t.Error("unknown category reported a latest rate")
	}

	// Too short for any defined YoY.
	short := FromObservations(compoundingSeries("Food", 6, 0.02))
	if _, ok := GetLatestRate(short, "Food"); ok {
		t.Error("6-month series reported a latest YoY rate")
	}
}

func TestCompareCategories(t *testing.T) {
	obs := append(compoundingSeries(core.AllItems, 24, 0.02), compoundingSeries("Food", 24, 0.05)...)
	obs = append(obs, compoundingSeries("Shelter", 24, 0.03)...)
	table := FromObservations(obs)

	from := core.NewMonthDate(2021, time.January)
	got := CompareCategories(table, []string{core.AllItems, "Food", "Absent"}, from, core.MonthDate{})

	cats := got.Categories()
	if len(cats) != 2 || cats[0] != core.AllItems || cats[1] != "Food" {
		t.Fatalf("categories = %v, want [All-items Food] with the absent one omitted", cats)
	}
	for _, r := range got {
		if r.Date.Before(from) {
			t.Errorf("row %s predates the range start", r.Date)
		}
	}
}

func TestAddCumulativeInflation(t *testing.T) {
	table := FromObservations(compoundingSeries(core.AllItems, 24, 0.02))

	got := AddCumulativeInflation(table, core.AllItems, core.MonthDate{})
	if len(got) != 24 {
		t.Fatalf("got %d rows, want 24", len(got))
	}
	if !got[0].CumulativeInflation.Valid || got[0].CumulativeInflation.Float64 != 0 {
		t.Errorf("baseline cumulative = %v, want 0", got[0].CumulativeInflation)
	}
	last := got[len(got)-1]
	want := (last.Value/got[0].Value - 1) * 100
	if math.Abs(last.CumulativeInflation.Float64-want) > 1e-9 {
		t.Errorf("final cumulative = %v, want %v", last.CumulativeInflation.Float64, want)
	}

	if got := AddCumulativeInflation(table, "Unknown", core.MonthDate{}); len(got) != 0 {
		t.Errorf("unknown category produced %d rows", len(got))
	}
}

func TestGetSummaryStats(t *testing.T) {
	table := FromObservations(compoundingSeries(core.AllItems, 48, 0.02))

	stats := GetSummaryStats(table, core.AllItems, core.MonthDate{}, core.MonthDate{})
	if stats.Count != 36 {
		t.Fatalf("count = %d, want 36 defined YoY points", stats.Count)
	}
	if !stats.Mean.Valid || math.Abs(stats.Mean.Float64-2.0) > 0.05 {
		t.Errorf("mean = %v, want ~2.0", stats.Mean)
	}
	if !stats.Median.Valid || !stats.Std.Valid || !stats.Min.Valid || !stats.Max.Valid || !stats.Current.Valid {
		t.Errorf("incomplete stats: %+v", stats)
	}
	if stats.Min.Float64 > stats.Median.Float64 || stats.Median.Float64 > stats.Max.Float64 {
		t.Errorf("ordering violated: min %v median %v max %v", stats.Min, stats.Median, stats.Max)
	}

	empty := GetSummaryStats(table, "Unknown", core.MonthDate{}, core.MonthDate{})
	if empty.Count != 0 || empty.Mean.Valid {
		t.Errorf("unknown category stats = %+v, want empty", empty)
	}
}

func TestMedian(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{7}, 7},
	}
	for _, tc := range cases {
		if got := median(tc.in); got != tc.want {
			t.Errorf("median(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
