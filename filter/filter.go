// Package filter selects POI rows by category and date range.
package filter

import (
	"fmt"
	"strings"

	"poi-map/models"
)

// DateRange is inclusive of both endpoints. A nil endpoint is open.
type DateRange struct {
	Start *models.Date `json:"start,omitempty"`
	End   *models.Date `json:"end,omitempty"`
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d models.Date) bool {
	if r.Start != nil && d.Before(*r.Start) {
		return false
	}
	if r.End != nil && d.After(*r.End) {
		return false
	}
	return true
}

// ParseRange builds a range from two YYYY-MM-DD strings; an empty string
// leaves that endpoint open. Both empty returns nil (no date filter).
func ParseRange(from, to string) (*DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}
	var r DateRange
	if from != "" {
		d, err := models.ParseDate(from)
		if err != nil {
			return nil, err
		}
		r.Start = &d
	}
	if to != "" {
		d, err := models.ParseDate(to)
		if err != nil {
			return nil, err
		}
		r.End = &d
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return nil, fmt.Errorf("date range end %s is before start %s", r.End, r.Start)
	}
	return &r, nil
}

// Criteria is the active filter.
//
// Categories nil means no category filter. A non-nil selection matches rows
// with at least one category in it, so an empty selection matches nothing.
type Criteria struct {
	Categories []string   `json:"categories"`
	Range      *DateRange `json:"range,omitempty"`
}

// IsIdentity reports whether the criteria let every row through.
func (c Criteria) IsIdentity() bool {
	return c.Categories == nil && c.Range == nil
}

// Filter returns the rows matching c, in input order.
func Filter(rows []models.POI, c Criteria) []models.POI {
	if c.IsIdentity() {
		return rows
	}
	var selected map[string]struct{}
	if c.Categories != nil {
		selected = make(map[string]struct{}, len(c.Categories))
		for _, name := range c.Categories {
			selected[name] = struct{}{}
		}
	}

	out := make([]models.POI, 0, len(rows))
	for _, row := range rows {
		if selected != nil && !row.HasCategory(selected) {
			continue
		}
		if c.Range != nil && !c.Range.Contains(row.Date) {
			continue
		}
		out = append(out, row)
	}
	return out
}
