package risk

import (
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// BIFI model names.
const (
	ModelBIFIv1 = "bifi_v1"
	ModelBIFIv2 = "bifi_v2"
	ModelBIFIv3 = "bifi_v3"
)

// Component risks are each scored 0–100.

func temperatureRisk(tempF float64) float64 {
	switch {
	case tempF >= 40:
		return 0
	case tempF >= 34:
		return (40 - tempF) / 6 * 60
	case tempF >= 28:
		return 100
	case tempF >= 20:
		return 80
	default:
		return 50
	}
}

func humidityRisk(humidity float64) float64 {
	return clamp((humidity-50)/45*100, 0, 100)
}

func dewPointRisk(spreadF float64) float64 {
	switch {
	case spreadF <= 2:
		return 100
	case spreadF <= 5:
		return 70
	case spreadF <= 10:
		return 30
	default:
		return 0
	}
}

func windRisk(windMPH float64) float64 {
	switch {
	case windMPH < 5:
		return 60
	case windMPH < 15:
		return 40
	default:
		return 20
	}
}

func timeRisk(hour int) float64 {
	switch {
	case hour >= 0 && hour <= 8:
		return 90
	case hour >= 17:
		return 60
	default:
		return 20
	}
}

func precipitationRisk(mm float64) float64 {
	if mm <= 0 {
		return 0
	}
	return clamp(40+mm*30, 0, 100)
}

// bifiComponents scores each component. tempC is the surface temperature
// the caller chose (air or road).
func bifiComponents(cond domain.Conditions, tempC float64) map[string]float64 {
	return map[string]float64{
		"temperature":   temperatureRisk(domain.CToF(tempC)),
		"humidity":      humidityRisk(cond.Humidity),
		"dew_point":     dewPointRisk(domain.CToF(tempC) - domain.CToF(cond.DewPointC)),
		"wind":          windRisk(domain.MSToMPH(cond.WindSpeedMS)),
		"time":          timeRisk(cond.Hour()),
		"precipitation": precipitationRisk(cond.PrecipitationMM),
	}
}

func weigh(c map[string]float64, w domain.Weights) float64 {
	return c["temperature"]*w.Temperature +
		c["humidity"]*w.Humidity +
		c["dew_point"]*w.DewPoint +
		c["wind"]*w.Wind +
		c["time"]*w.Time +
		c["precipitation"]*w.Precipitation
}

// BIFI computes the Black Ice Formation Index from air temperature with the
// given weights.
func BIFI(cond domain.Conditions, w domain.Weights) Assessment {
	c := bifiComponents(cond, cond.TemperatureC)
	return newAssessment(ModelBIFIv1, weigh(c, w), c)
}

// BIFIv1 is BIFI with the default weights.
func BIFIv1(cond domain.Conditions) Assessment {
	return BIFI(cond, domain.DefaultWeights())
}

// BIFIv2 scores the road surface temperature when one is measured and adds
// the bridge-wind interaction: exposed decks lose heat from both sides and
// wind accelerates it.
func BIFIv2(cond domain.Conditions) Assessment {
	return bifiV2(cond, domain.DefaultWeights(), ModelBIFIv2)
}

func bifiV2(cond domain.Conditions, w domain.Weights, model string) Assessment {
	c := bifiComponents(cond, cond.SurfaceTemperatureC())
	score := weigh(c, w)
	if bonus := bridgeWindBonus(cond); bonus > 0 {
		c["bridge_wind"] = bonus
		score += bonus
	}
	return newAssessment(model, score, c)
}

func bridgeWindBonus(cond domain.Conditions) float64 {
	if !cond.IsBridge || domain.CToF(cond.SurfaceTemperatureC()) > 38 {
		return 0
	}
	bonus := 10.0
	if domain.MSToMPH(cond.WindSpeedMS) >= 10 {
		bonus += 5
	}
	return bonus
}

// BIFIv3 is BIFIv2 with calibrated weights and an attached confidence.
func BIFIv3(cond domain.Conditions, cal *domain.Calibrator) Assessment {
	a := bifiV2(cond, cal.Weights(), ModelBIFIv3)
	conf := cal.Confidence(cond)
	a.Confidence = &conf
	return a
}
