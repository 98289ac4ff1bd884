package statcan

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"cpidash/internal/core"
)

// ErrNoDataTable means the CSV contained no recognizable month-header row.
var ErrNoDataTable = errors.New("no data table header in CSV")

// ParseCSV parses the Statistics Canada wide-format CPI CSV into long-format
// observations. The file carries a metadata preamble, a header row whose
// columns are month labels like "January 2008", a base-year row, then one
// row per product category. Cells that are empty or non-numeric are dropped,
// never zero-filled.
func ParseCSV(data []byte) ([]core.Observation, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")) // UTF-8 BOM

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		records = append(records, rec)
	}

	headerIdx, months := findMonthHeader(records)
	if headerIdx < 0 {
		return nil, ErrNoDataTable
	}

	var obs []core.Observation
	for _, rec := range records[headerIdx+1:] {
		if len(rec) < 2 {
			continue
		}
		category := strings.TrimSpace(rec[0])
		if category == "" {
			continue // base-year row and blank separators
		}
		for col, month := range months {
			if month.IsZero() || col+1 >= len(rec) {
				continue
			}
			value, err := parseValue(rec[col+1])
			if err != nil {
				continue
			}
			o := core.Observation{Date: month, Category: category, Value: value}
			if o.Validate() != nil {
				continue
			}
			obs = append(obs, o)
		}
	}

	if len(obs) == 0 {
		return nil, errors.New("no observations parsed from CSV")
	}
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Category != obs[j].Category {
			return obs[i].Category < obs[j].Category
		}
		return obs[i].Date.Before(obs[j].Date)
	})
	return obs, nil
}

// findMonthHeader locates the row whose trailing columns are month labels
// and returns the parsed month per column (zero for columns that are not
// months, such as trailing footnote columns).
func findMonthHeader(records [][]string) (int, []core.MonthDate) {
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		months := make([]core.MonthDate, len(rec)-1)
		parsed := 0
		for col, cell := range rec[1:] {
			t, err := time.Parse("January 2006", strings.TrimSpace(cell))
			if err != nil {
				continue
			}
			months[col] = core.MonthOf(t)
			parsed++
		}
		// A real header row is mostly month labels.
		if parsed >= 2 && parsed*2 >= len(rec)-1 {
			return i, months
		}
	}
	return -1, nil
}

func parseValue(cell string) (float64, error) {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cell == "" {
		return 0, errors.New("empty cell")
	}
	return strconv.ParseFloat(cell, 64)
}
