package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poi-map/models"
	"poi-map/utils/errors"
)

func validPOI() models.POI {
	return models.POI{
		Latitude:    56.1,
		Longitude:   10.2,
		Category:    []string{"city"},
		Date:        models.NewDate(2020, 1, 1),
		Title:       "Aarhus",
		Description: "Harbour town",
	}
}

func TestValidate(t *testing.T) {
	v := NewValidator([]string{"city", "sea"})

	tests := []struct {
		name       string
		mutate     func(*models.POI)
		wantColumn string
	}{
		{"valid", func(p *models.POI) {}, ""},
		{"latitude too high", func(p *models.POI) { p.Latitude = 95 }, "latitude"},
		{"latitude too low", func(p *models.POI) { p.Latitude = -90.5 }, "latitude"},
		{"latitude NaN", func(p *models.POI) { p.Latitude = math.NaN() }, "latitude"},
		{"longitude out of range", func(p *models.POI) { p.Longitude = 180.01 }, "longitude"},
		{"empty category", func(p *models.POI) { p.Category = nil }, "category"},
		{"unknown category", func(p *models.POI) { p.Category = []string{"city", "desert"} }, "category"},
		{"missing date", func(p *models.POI) { p.Date = models.Date{} }, "date"},
		{"boundaries are inclusive", func(p *models.POI) { p.Latitude, p.Longitude = -90, 180 }, ""},
		{"empty title is allowed", func(p *models.POI) { p.Title = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPOI()
			tt.mutate(&p)
			_, err := v.Validate([]models.POI{p})
			if tt.wantColumn == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
			var se *SchemaError
			require.True(t, errors.As(err, &se))
			require.NotEmpty(t, se.Violations)
			assert.Equal(t, tt.wantColumn, se.Violations[0].Column)
		})
	}
}

func TestValidateListsEveryOffendingRow(t *testing.T) {
	v := NewValidator([]string{"city"})
	good := validPOI()
	bad1 := validPOI()
	bad1.Latitude = 95
	bad2 := validPOI()
	bad2.Category = nil
	bad2.Longitude = -200

	_, err := v.Validate([]models.POI{good, bad1, bad2})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Violations, 3)
	assert.Equal(t, 1, se.Violations[0].Row)
	assert.Equal(t, 2, se.Violations[1].Row)
	assert.Equal(t, "longitude", se.Violations[1].Column)
	assert.Equal(t, "category", se.Violations[2].Column)
	assert.Contains(t, err.Error(), "row 1: latitude")
}

func TestValidateReturnsRowsOnSuccess(t *testing.T) {
	v := NewValidator([]string{"city"})
	rows := []models.POI{validPOI(), validPOI()}
	got, err := v.Validate(rows)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NoError(t, v.ValidateOne(validPOI()))
}
