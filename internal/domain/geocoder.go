package domain

import "context"

// Place is a geocoded location.
type Place struct {
	Location  Point   `json:"location"`
	Name      string  `json:"name"`      // short label, e.g. "Vail Pass"
	Address   string  `json:"address"`   // full label, e.g. "Vail Pass, Colorado, United States"
	Relevance float64 `json:"relevance"` // provider match score in [0,1]
}

// Found reports whether the provider matched anything.
func (p Place) Found() bool { return p.Address != "" }

// Geocoder names waypoints and places them on the map. A query that
// matches nothing returns a zero Place and no error.
type Geocoder interface {
	Locate(ctx context.Context, query string) (Place, error)
	Describe(ctx context.Context, p Point) (Place, error)
}
