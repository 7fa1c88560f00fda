package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and display format of POI dates.
const DateLayout = "2006-01-02"

// POI is one row of the POI table. ID is assigned by the store when the row
// enters it and is not part of the persisted layout.
type POI struct {
	ID          string   `json:"id"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Category    []string `json:"category"`
	Date        Date     `json:"date"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// Clone returns a deep copy so callers never share the category slice with
// the store.
func (p POI) Clone() POI {
	p.Category = append([]string(nil), p.Category...)
	return p
}

// HasCategory reports whether any of the POI's categories is in set.
func (p POI) HasCategory(set map[string]struct{}) bool {
	for _, c := range p.Category {
		if _, ok := set[c]; ok {
			return true
		}
	}
	return false
}

// Date is a calendar date, held as UTC midnight.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// DaysSinceEpoch is the columnar DATE representation.
func (d Date) DaysSinceEpoch() int32 {
	return int32(d.Unix() / 86400)
}

// DateFromDays is the inverse of DaysSinceEpoch.
func DateFromDays(days int32) Date {
	return Date{time.Unix(int64(days)*86400, 0).UTC()}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
