package domain

import (
	"context"
	"log/slog"
)

// GeoSource records how a waypoint got its coordinates or name.
type GeoSource string

const (
	GeoOriginal GeoSource = "original"
	GeoForward  GeoSource = "forward"
	GeoReverse  GeoSource = "reverse"
	GeoFailed   GeoSource = "failed"
)

// Waypoint is a point on a route, given by coordinates, by name, or both.
type Waypoint struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Name      string    `json:"name,omitempty"`
	PlaceName string    `json:"place_name,omitempty"`
	GeoSource GeoSource `json:"geo_source,omitempty"`
}

// Point returns the waypoint coordinates.
func (w Waypoint) Point() Point { return Point{Lat: w.Lat, Lon: w.Lon} }

// HasCoords reports whether the waypoint carries coordinates.
func (w Waypoint) HasCoords() bool { return w.Lat != 0 || w.Lon != 0 }

// ResolveWaypoint places a name-only waypoint on the map and names a
// coordinate-only one. Lookup failures leave the waypoint as given with
// GeoSource set to failed; route analysis decides whether that is fatal.
func ResolveWaypoint(ctx context.Context, wp Waypoint, geocoder Geocoder, logger *slog.Logger) Waypoint {
	if geocoder == nil {
		return wp
	}

	switch {
	case !wp.HasCoords() && wp.Name != "":
		place, err := geocoder.Locate(ctx, wp.Name)
		if err != nil {
			logger.Warn("waypoint lookup failed", "name", wp.Name, "error", err)
			wp.GeoSource = GeoFailed
			return wp
		}
		if place.Found() && (place.Location.Lat != 0 || place.Location.Lon != 0) {
			wp.Lat, wp.Lon = place.Location.Lat, place.Location.Lon
			wp.PlaceName = place.Address
			wp.GeoSource = GeoForward
			return wp
		}

	case wp.HasCoords() && wp.Name == "":
		place, err := geocoder.Describe(ctx, wp.Point())
		if err != nil {
			logger.Warn("waypoint naming failed", "lat", wp.Lat, "lon", wp.Lon, "error", err)
			wp.GeoSource = GeoFailed
			return wp
		}
		if place.Found() {
			wp.Name = place.Address
			wp.PlaceName = place.Name
			wp.GeoSource = GeoReverse
			return wp
		}
	}

	wp.GeoSource = GeoOriginal
	return wp
}
