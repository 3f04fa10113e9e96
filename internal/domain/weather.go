package domain

import (
	"math"
	"time"
)

// Conditions holds the weather attributes the scorers consume, in metric units.
type Conditions struct {
	TemperatureC     float64   `json:"temperature"`
	Humidity         float64   `json:"humidity"`
	DewPointC        float64   `json:"dew_point"`
	WindSpeedMS      float64   `json:"wind_speed"`
	PrecipitationMM  float64   `json:"precipitation"`
	RoadTemperatureC *float64  `json:"road_temperature,omitempty"`
	FeelsLikeC       float64   `json:"feels_like"`
	CloudCover       float64   `json:"cloud_cover"`
	IsDay            bool      `json:"is_day"`
	IsBridge         bool      `json:"is_bridge,omitempty"`
	ObservedAt       time.Time `json:"observed_at"`
}

// WeatherReading is the result of a weather lookup. Degraded is true when no
// provider answered and Conditions holds conservative defaults.
type WeatherReading struct {
	Conditions Conditions `json:"conditions"`
	Source     Source     `json:"source,omitempty"`
	Provider   string     `json:"provider"`
	Degraded   bool       `json:"degraded"`
	Error      string     `json:"error,omitempty"`
}

// Sources returns the data sources that fed this reading.
func (r WeatherReading) Sources() []Source {
	if r.Degraded || r.Source == "" {
		return nil
	}
	out := []Source{r.Source}
	if r.Conditions.RoadTemperatureC != nil && r.Source != SourceRWIS {
		out = append(out, SourceRWIS)
	}
	return out
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 { return c*9/5 + 32 }

// FToC converts Fahrenheit to Celsius.
func FToC(f float64) float64 { return (f - 32) * 5 / 9 }

// MSToMPH converts metres per second to miles per hour.
func MSToMPH(ms float64) float64 { return ms * 2.23694 }

// DewPoint estimates the dew point in Celsius with the Magnus formula.
func DewPoint(tempC, humidity float64) float64 {
	if humidity <= 0 {
		humidity = 1
	}
	const a, b = 17.62, 243.12
	gamma := math.Log(humidity/100) + a*tempC/(b+tempC)
	return b * gamma / (a - gamma)
}

// WindChill returns the NWS wind chill in Celsius. Outside the formula's
// validity range (above 10C or wind under 4.8 km/h) the air temperature is returned.
func WindChill(tempC, windMS float64) float64 {
	kmh := windMS * 3.6
	if tempC > 10 || kmh < 4.8 {
		return tempC
	}
	v := math.Pow(kmh, 0.16)
	return 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
}

// DewPointSpreadF is the air temperature minus dew point, in Fahrenheit degrees.
func (c Conditions) DewPointSpreadF() float64 {
	return (c.TemperatureC - c.DewPointC) * 9 / 5
}

// SurfaceTemperatureC prefers a measured road temperature over air temperature.
func (c Conditions) SurfaceTemperatureC() float64 {
	if c.RoadTemperatureC != nil {
		return *c.RoadTemperatureC
	}
	return c.TemperatureC
}

// Hour returns the local hour of the observation, falling back to the package clock.
func (c Conditions) Hour() int {
	if c.ObservedAt.IsZero() {
		return clock.Now().Hour()
	}
	return c.ObservedAt.Hour()
}

// DefaultConditions are the conservative values served when every provider fails.
func DefaultConditions() Conditions {
	return Conditions{
		TemperatureC:    0,
		Humidity:        80,
		DewPointC:       -2,
		WindSpeedMS:     3,
		PrecipitationMM: 0,
		FeelsLikeC:      WindChill(0, 3),
		CloudCover:      50,
		ObservedAt:      clock.Now(),
	}
}
