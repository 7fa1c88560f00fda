package models

// Marker is what the map renders for one POI. Title and Description are the
// record's text as stored; DescriptionHTML is the description reduced to
// markup that is safe to insert into the popup.
type Marker struct {
	ID              string  `json:"id"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	Title           string  `json:"title"`
	Date            string  `json:"date"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	DescriptionHTML string  `json:"description_html"`
	Icon            string  `json:"icon,omitempty"`
}

// GeoPoint is a GeoJSON point, [lon, lat].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from latitude and longitude.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

// NearbyPOI is a POI together with its distance from a query point.
type NearbyPOI struct {
	POI
	Distance float64 `json:"distance"` // meters
}
