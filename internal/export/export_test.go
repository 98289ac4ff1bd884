package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"cpidash/internal/core"
	"cpidash/internal/metrics"
)

func testTable(t *testing.T) metrics.Table {
	t.Helper()

	var obs []core.Observation
	start := core.NewMonthDate(2022, time.January)
	for _, category := range []string{"All-items", "Food", "Alcoholic beverages"} {
		for i := 0; i < 15; i++ {
			obs = append(obs, core.Observation{
				Date:     start.AddMonths(i),
				Category: category,
				Value:    100 + float64(i),
			})
		}
	}
	return metrics.AddAllMetrics(metrics.FromObservations(obs))
}

func TestParseValueType(t *testing.T) {
	for input, want := range map[string]ValueType{
		"":    ValueCPI,
		"cpi": ValueCPI,
		"yoy": ValueYoY,
		"mom": ValueMoM,
	} {
		got, err := ParseValueType(input)
		if err != nil || got != want {
			t.Errorf("ParseValueType(%q) = %q, %v, want %q", input, got, err, want)
		}
	}

	if _, err := ParseValueType("median"); err == nil {
		t.Error("unknown value type accepted")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testTable(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back CSV: %v", err)
	}

	// Header plus 3 categories x 15 months.
	if len(records) != 46 {
		t.Fatalf("CSV has %d records, want 46", len(records))
	}
	if records[0][0] != "date" || records[0][4] != "yoy_change" {
		t.Errorf("header = %v", records[0])
	}

	// First data row is the first month, so derived changes are empty.
	first := records[1]
	if first[0] != "2022-01" {
		t.Errorf("first date = %q", first[0])
	}
	if first[3] != "" || first[4] != "" {
		t.Errorf("first month should have empty change cells: %v", first)
	}

	// A later row carries a month over month change.
	if records[2][3] == "" {
		t.Errorf("second month missing mom_change: %v", records[2])
	}
}

func TestPivotOrdersPriorityCategoriesFirst(t *testing.T) {
	wide := Pivot(testTable(t), ValueCPI, 0)

	want := []string{"All-items", "Food", "Alcoholic beverages"}
	if strings.Join(wide.Categories, "|") != strings.Join(want, "|") {
		t.Errorf("Categories = %v, want %v", wide.Categories, want)
	}
	if len(wide.Rows) != 15 {
		t.Fatalf("pivot has %d rows, want 15", len(wide.Rows))
	}

	first := wide.Rows[0]
	if !first.Date.Equal(core.NewMonthDate(2022, time.January)) {
		t.Errorf("first row date = %s", first.Date)
	}
	if len(first.Values) != 3 || !first.Values[0].Valid || first.Values[0].Float64 != 100 {
		t.Errorf("first row values = %v", first.Values)
	}
}

func TestPivotLimitsMonths(t *testing.T) {
	wide := Pivot(testTable(t), ValueCPI, 6)

	if len(wide.Rows) != 6 {
		t.Fatalf("pivot has %d rows, want 6", len(wide.Rows))
	}
	if !wide.Rows[5].Date.Equal(core.NewMonthDate(2023, time.March)) {
		t.Errorf("last row date = %s", wide.Rows[5].Date)
	}
}

func TestPivotValueTypes(t *testing.T) {
	yoy := Pivot(testTable(t), ValueYoY, 0)

	// Months before a full year of history have no year over year value.
	if yoy.Rows[0].Values[0].Valid {
		t.Error("first month should have undefined yoy cell")
	}
	last := yoy.Rows[len(yoy.Rows)-1]
	if !last.Values[0].Valid {
		t.Error("last month should have a yoy cell")
	}

	mom := Pivot(testTable(t), ValueMoM, 0)
	if !mom.Rows[1].Values[0].Valid {
		t.Error("second month should have a mom cell")
	}
}

func TestWriteWideCSV(t *testing.T) {
	var buf bytes.Buffer
	wide := Pivot(testTable(t), ValueCPI, 3)
	if err := WriteWideCSV(&buf, wide); err != nil {
		t.Fatalf("WriteWideCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("CSV has %d records, want 4", len(records))
	}
	if records[0][0] != "date" || records[0][1] != "All-items" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] == "" {
		t.Errorf("value cell empty: %v", records[1])
	}
}
