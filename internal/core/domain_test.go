package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		year int
		mon  time.Month
		ok   bool
	}{
		{"2024-01", 2024, time.January, true},
		{"2008-12", 2008, time.December, true},
		{" 2020-06 ", 2020, time.June, true},
		{"2024-13", 0, 0, false},
		{"2024", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMonth(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseMonth(%q) unexpected error: %v", tc.in, err)
			}
			if got.Year() != tc.year || got.Time.Month() != tc.mon || got.Day() != 1 {
				t.Fatalf("ParseMonth(%q) = %v", tc.in, got)
			}
		} else if err == nil {
			t.Fatalf("ParseMonth(%q) expected error", tc.in)
		}
	}
}

func TestMonthDateAddMonths(t *testing.T) {
	m := NewMonthDate(2023, time.November)

	next := m.AddMonths(3)
	if next.String() != "2024-02" {
		t.Errorf("AddMonths(3) = %s, want 2024-02", next)
	}

	prev := m.AddMonths(-12)
	if prev.String() != "2022-11" {
		t.Errorf("AddMonths(-12) = %s, want 2022-11", prev)
	}
}

func TestMonthDateJSONRoundTrip(t *testing.T) {
	m := NewMonthDate(2024, time.March)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2024-03"` {
		t.Fatalf("marshal = %s", data)
	}

	var back MonthDate
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(m) {
		t.Fatalf("round trip = %v, want %v", back, m)
	}
}

func TestNullFloatJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A NullFloat `json:"a"`
		B NullFloat `json:"b"`
	}{A: Float(2.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":2.5,"b":null}` {
		t.Fatalf("marshal = %s", data)
	}

	var back struct {
		A NullFloat `json:"a"`
		B NullFloat `json:"b"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.A.Valid || back.A.Float64 != 2.5 || back.B.Valid {
		t.Fatalf("round trip = %+v", back)
	}
}

func TestObservationValidate(t *testing.T) {
	valid := Observation{Date: NewMonthDate(2024, time.January), Category: AllItems, Value: 158.3}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid observation rejected: %v", err)
	}

	cases := []struct {
		name string
		obs  Observation
		want error
	}{
		{"zero date", Observation{Category: AllItems, Value: 100}, ErrInvalidDate},
		{"empty category", Observation{Date: NewMonthDate(2024, 1), Category: "  ", Value: 100}, ErrEmptyCategory},
		{"negative value", Observation{Date: NewMonthDate(2024, 1), Category: AllItems, Value: -1}, ErrInvalidValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.obs.Validate(); err != tc.want {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}
