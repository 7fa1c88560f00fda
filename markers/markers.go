// Package markers projects POI rows into map marker descriptors.
package markers

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"poi-map/models"
)

// CategorySeparator joins a POI's categories into its marker label.
const CategorySeparator = ", "

// Projector turns rows into markers. Icons maps a category to the URL of its
// icon; categories without one use the map's default marker.
type Projector struct {
	icons  map[string]string
	policy *bluemonday.Policy
}

// NewProjector builds a projector. iconCategories lists the categories that
// have an icon configured; their icons are served under iconBase.
func NewProjector(iconBase string, iconCategories []string) *Projector {
	icons := make(map[string]string, len(iconCategories))
	base := strings.TrimSuffix(iconBase, "/")
	for _, c := range iconCategories {
		icons[c] = base + "/" + url.PathEscape(c)
	}
	return &Projector{
		icons:  icons,
		policy: bluemonday.UGCPolicy(),
	}
}

// Project returns one marker per row, in row order.
func (p *Projector) Project(rows []models.POI) []models.Marker {
	out := make([]models.Marker, len(rows))
	for i, row := range rows {
		out[i] = models.Marker{
			ID:              row.ID,
			Lat:             row.Latitude,
			Lon:             row.Longitude,
			Title:           row.Title,
			Date:            row.Date.String(),
			Category:        strings.Join(row.Category, CategorySeparator),
			Description:     row.Description,
			DescriptionHTML: p.policy.Sanitize(row.Description),
			Icon:            p.icon(row.Category),
		}
	}
	return out
}

func (p *Projector) icon(categories []string) string {
	for _, c := range categories {
		if u, ok := p.icons[c]; ok {
			return u
		}
	}
	return ""
}
