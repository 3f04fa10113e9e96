package risk

import (
	"math"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// Model names of the thermal scorers.
const (
	ModelBridgeFreeze     = "bridge_freeze"
	ModelOvernightCooling = "overnight_cooling"
	ModelRoadSurface      = "road_surface"
)

// surfaceRisk scores a surface temperature in °C.
func surfaceRisk(tempC float64) float64 {
	switch {
	case tempC <= -2:
		return 85
	case tempC <= 0:
		return 70
	case tempC <= 2:
		return 45
	case tempC <= 4:
		return 20
	default:
		return 5
	}
}

// moistureRisk scores how much water is available to freeze.
func moistureRisk(cond domain.Conditions, surfaceC float64) float64 {
	switch {
	case cond.PrecipitationMM > 0:
		return 15
	case surfaceC-cond.DewPointC <= 1:
		return 12
	case cond.Humidity >= 85:
		return 8
	default:
		return 0
	}
}

// BridgeDeckTemperature estimates the deck temperature of a bridge. Decks
// run colder than the road at night and lose more heat as wind rises.
func BridgeDeckTemperature(cond domain.Conditions) float64 {
	offset := 1.0
	if !cond.IsDay {
		offset = 2.0
	}
	return cond.TemperatureC - offset - math.Min(0.15*cond.WindSpeedMS, 2)
}

// BridgeFreeze scores freeze risk on a bridge deck.
func BridgeFreeze(cond domain.Conditions) Assessment {
	deck := BridgeDeckTemperature(cond)
	c := map[string]float64{
		"deck_temperature": surfaceRisk(deck),
		"moisture":         moistureRisk(cond, deck),
	}
	a := newAssessment(ModelBridgeFreeze, c["deck_temperature"]+c["moisture"], c)
	a.Components["deck_temperature_c"] = round1(deck)
	return a
}

// ProjectedMinimum estimates the pre-dawn minimum temperature. Clear calm
// nights cool the most; the dew point bounds how far the air can fall
// before condensation slows it.
func ProjectedMinimum(cond domain.Conditions) float64 {
	cooling := 6.0 * (1 - 0.7*clamp(cond.CloudCover, 0, 100)/100)
	switch {
	case cond.WindSpeedMS < 2:
	case cond.WindSpeedMS < 5:
		cooling *= 0.7
	default:
		cooling *= 0.4
	}
	return math.Max(cond.TemperatureC-cooling, cond.DewPointC-1)
}

// OvernightCooling scores the risk of ice forming before sunrise.
func OvernightCooling(cond domain.Conditions) Assessment {
	low := ProjectedMinimum(cond)
	c := map[string]float64{
		"projected_minimum": surfaceRisk(low),
		"moisture":          moistureRisk(cond, low),
	}
	a := newAssessment(ModelOvernightCooling, c["projected_minimum"]+c["moisture"], c)
	a.Components["projected_minimum_c"] = round1(low)
	return a
}

// RoadSurfaceTemperature estimates pavement temperature from a simple heat
// balance: solar gain by day, radiative loss on clear nights, and wind
// convection pulling the surface back toward air temperature. A measured
// road temperature wins.
func RoadSurfaceTemperature(cond domain.Conditions) float64 {
	if cond.RoadTemperatureC != nil {
		return *cond.RoadTemperatureC
	}
	clear := 1 - clamp(cond.CloudCover, 0, 100)/100
	var balance float64
	if cond.IsDay {
		balance = 4 * clear
	} else {
		balance = -2.5 * clear
	}
	return cond.TemperatureC + balance/(1+0.2*cond.WindSpeedMS)
}

// RoadSurface scores ice risk on the pavement itself.
func RoadSurface(cond domain.Conditions) Assessment {
	surface := RoadSurfaceTemperature(cond)
	score := surfaceRisk(surface) + moistureRisk(cond, surface)
	if cond.PrecipitationMM <= 0 && cond.Humidity < 60 {
		score *= 0.6
	}
	c := map[string]float64{
		"surface_temperature": surfaceRisk(surface),
		"moisture":            moistureRisk(cond, surface),
	}
	a := newAssessment(ModelRoadSurface, score, c)
	a.Components["surface_temperature_c"] = round1(surface)
	return a
}
