// Package schema checks POI records against the table shape before they are
// accepted into memory or persisted.
package schema

import (
	"fmt"
	"math"
	"strings"

	"poi-map/models"
	"poi-map/utils/errors"
)

// Column bounds.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Violation is one failed column constraint.
type Violation struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("row %d: %s %s", v.Row, v.Column, v.Reason)
}

// SchemaError lists every violation found in a candidate set.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	msgs := e.ViolationMessages()
	return fmt.Sprintf("schema validation failed: %s", strings.Join(msgs, "; "))
}

// Unwrap lets callers match the error against errors.ErrValidation.
func (e *SchemaError) Unwrap() error { return errors.ErrValidation }

// ViolationMessages returns one human readable line per violation.
func (e *SchemaError) ViolationMessages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.String()
	}
	return out
}

// Validator validates POI records against a fixed set of known categories.
type Validator struct {
	categories map[string]struct{}
}

// NewValidator returns a Validator accepting the given category names.
func NewValidator(categories []string) *Validator {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return &Validator{categories: set}
}

// Validate returns rows unchanged if every row conforms, or a *SchemaError
// naming each offending row and column.
func (v *Validator) Validate(rows []models.POI) ([]models.POI, error) {
	var violations []Violation
	for i, row := range rows {
		violations = append(violations, v.check(i, row)...)
	}
	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}
	return rows, nil
}

// ValidateOne validates a single candidate record.
func (v *Validator) ValidateOne(row models.POI) error {
	_, err := v.Validate([]models.POI{row})
	return err
}

func (v *Validator) check(i int, row models.POI) []Violation {
	var out []Violation
	add := func(column, reason string) {
		out = append(out, Violation{Row: i, Column: column, Reason: reason})
	}

	if math.IsNaN(row.Latitude) || row.Latitude < MinLatitude || row.Latitude > MaxLatitude {
		add("latitude", fmt.Sprintf("%v not in [%v, %v]", row.Latitude, MinLatitude, MaxLatitude))
	}
	if math.IsNaN(row.Longitude) || row.Longitude < MinLongitude || row.Longitude > MaxLongitude {
		add("longitude", fmt.Sprintf("%v not in [%v, %v]", row.Longitude, MinLongitude, MaxLongitude))
	}
	if len(row.Category) == 0 {
		add("category", "must not be empty")
	}
	for _, c := range row.Category {
		if _, ok := v.categories[c]; !ok {
			add("category", fmt.Sprintf("unknown category %q", c))
		}
	}
	if row.Date.IsZero() {
		add("date", "is required")
	}
	return out
}
