package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// AllItems is the headline CPI aggregate every dashboard view defaults to.
const AllItems = "All-items"

var (
	// DefaultRecentCategories is the category set used by the recent-trends
	// view when the caller does not supply one.
	DefaultRecentCategories = []string{
		AllItems,
		"Food",
		"Shelter",
		"Transportation",
		"Gasoline",
	}

	// DefaultHistoricalCategories is the category set used by the
	// historical-comparison view when the caller does not supply one.
	DefaultHistoricalCategories = []string{
		AllItems,
		"Food",
		"Shelter",
		"Transportation",
	}

	// PriorityCategories are pinned to the top of wide-format exports,
	// ahead of the alphabetical remainder.
	PriorityCategories = []string{
		AllItems,
		"Goods",
		"Services",
		"Food",
		"Shelter",
		"Transportation",
		"Gasoline",
	}
)

var (
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidValue  = errors.New("invalid index value")
	ErrInvalidDate   = errors.New("invalid date")
)

type (
	// MonthDate is a calendar date at month granularity. The day component
	// is always pinned to the first of the month, UTC.
	MonthDate struct {
		time.Time
	}

	// NullFloat is a float64 cell that may be undefined. The zero value is
	// undefined. Metric columns never encode "missing" as a sentinel number.
	NullFloat struct {
		Float64 float64
		Valid   bool
	}

	// Observation is one CPI data point: a category's index value
	// (base 2002=100) for one calendar month.
	Observation struct {
		Date     MonthDate `json:"date"`
		Category string    `json:"category"`
		Value    float64   `json:"value"`
	}
)

// NewMonthDate builds a MonthDate for the given year and month.
func NewMonthDate(year int, month time.Month) MonthDate {
	return MonthDate{Time: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf truncates an arbitrary timestamp to its calendar month.
func MonthOf(t time.Time) MonthDate {
	return NewMonthDate(t.Year(), t.Month())
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (MonthDate, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthDate{}, err
	}
	return MonthOf(t), nil
}

// AddMonths returns the month n months after (or before, for negative n).
func (m MonthDate) AddMonths(n int) MonthDate {
	return MonthOf(m.Time.AddDate(0, n, 0))
}

// Before reports whether m is chronologically before other.
func (m MonthDate) Before(other MonthDate) bool {
	return m.Time.Before(other.Time)
}

// After reports whether m is chronologically after other.
func (m MonthDate) After(other MonthDate) bool {
	return m.Time.After(other.Time)
}

// Equal reports whether two MonthDates name the same calendar month.
func (m MonthDate) Equal(other MonthDate) bool {
	return m.Time.Equal(other.Time)
}

// String renders the month as "YYYY-MM".
func (m MonthDate) String() string {
	return m.Format("2006-01")
}

// MarshalJSON renders the month as a "YYYY-MM" JSON string.
func (m MonthDate) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte(`null`), nil
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a "YYYY-MM" JSON string or null.
func (m *MonthDate) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*m = MonthDate{}
		return nil
	}
	parsed, err := ParseMonth(*s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Float wraps a defined float64 value.
func Float(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// MarshalJSON renders a defined cell as a number and an undefined one as null.
func (f NullFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte(`null`), nil
	}
	return json.Marshal(f.Float64)
}

// UnmarshalJSON accepts a JSON number or null.
func (f *NullFloat) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*f = NullFloat{}
		return nil
	}
	*f = Float(*v)
	return nil
}

func (o Observation) Validate() error {
	if o.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(o.Category) == "" {
		return ErrEmptyCategory
	}
	if o.Value < 0 {
		return ErrInvalidValue
	}
	return nil
}
