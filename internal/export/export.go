// Package export renders metric tables as CSV downloads and as the
// wide month-by-category table shown on the dashboard.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"cpidash/internal/core"
	"cpidash/internal/metrics"
)

// ValueType selects which series fills the wide table cells.
type ValueType string

const (
	ValueCPI ValueType = "cpi"
	ValueYoY ValueType = "yoy"
	ValueMoM ValueType = "mom"
)

// ParseValueType validates a value type from a query parameter.
func ParseValueType(s string) (ValueType, error) {
	switch ValueType(s) {
	case ValueCPI, ValueYoY, ValueMoM:
		return ValueType(s), nil
	case "":
		return ValueCPI, nil
	}
	return "", fmt.Errorf("unknown value type %q", s)
}

var csvHeader = []string{
	"date",
	"category",
	"value",
	"mom_change",
	"yoy_change",
	"yoy_change_rolling_3m",
	"yoy_change_rolling_6m",
	"yoy_change_rolling_12m",
}

// WriteCSV writes the long-format metric table.
func WriteCSV(w io.Writer, t metrics.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range t {
		record := []string{
			row.Date.String(),
			row.Category,
			formatFloat(core.Float(row.Value)),
			formatFloat(row.MoMChange),
			formatFloat(row.YoYChange),
			formatFloat(row.YoYRolling3M),
			formatFloat(row.YoYRolling6M),
			formatFloat(row.YoYRolling12M),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WideTable is the dashboard pivot: one row per month, one column per
// category, priority categories first.
type WideTable struct {
	ValueType  ValueType        `json:"value_type"`
	Categories []string         `json:"categories"`
	Rows       []WideRow        `json:"rows"`
	Dates      []core.MonthDate `json:"-"`
}

type WideRow struct {
	Date   core.MonthDate   `json:"date"`
	Values []core.NullFloat `json:"values"`
}

// Pivot reshapes the table for display. months limits the output to
// the most recent N months, 0 means everything.
func Pivot(t metrics.Table, valueType ValueType, months int) *WideTable {
	categories := orderCategories(t.Categories())

	if months > 0 {
		if max, ok := t.MaxDate(); ok {
			t = t.FilterDateRange(max.AddMonths(-(months - 1)), core.MonthDate{})
		}
	}

	colIndex := make(map[string]int, len(categories))
	for i, c := range categories {
		colIndex[c] = i
	}

	cells := make(map[core.MonthDate][]core.NullFloat)
	var dates []core.MonthDate
	for _, row := range t {
		values, ok := cells[row.Date]
		if !ok {
			values = make([]core.NullFloat, len(categories))
			cells[row.Date] = values
			dates = append(dates, row.Date)
		}
		values[colIndex[row.Category]] = cellValue(row, valueType)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	wide := &WideTable{
		ValueType:  valueType,
		Categories: categories,
		Dates:      dates,
	}
	for _, d := range dates {
		wide.Rows = append(wide.Rows, WideRow{Date: d, Values: cells[d]})
	}
	return wide
}

// WriteWideCSV writes the pivot as CSV with a date column first.
func WriteWideCSV(w io.Writer, wide *WideTable) error {
	cw := csv.NewWriter(w)

	header := append([]string{"date"}, wide.Categories...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range wide.Rows {
		record := make([]string, 0, len(row.Values)+1)
		record = append(record, row.Date.String())
		for _, v := range row.Values {
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func cellValue(row metrics.Row, valueType ValueType) core.NullFloat {
	switch valueType {
	case ValueYoY:
		return row.YoYChange
	case ValueMoM:
		return row.MoMChange
	default:
		return core.Float(row.Value)
	}
}

// orderCategories puts the headline categories first, the rest
// alphabetically after them.
func orderCategories(categories []string) []string {
	present := make(map[string]bool, len(categories))
	for _, c := range categories {
		present[c] = true
	}

	var ordered []string
	seen := make(map[string]bool)
	for _, c := range core.PriorityCategories {
		if present[c] {
			ordered = append(ordered, c)
			seen[c] = true
		}
	}

	var rest []string
	for _, c := range categories {
		if !seen[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}

func formatFloat(v core.NullFloat) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
