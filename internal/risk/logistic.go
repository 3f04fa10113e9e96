package risk

import (
	"math"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// ModelLogistic is the name of the logistic scorer.
const ModelLogistic = "logistic"

// LogisticCoefficients weight each feature of the logistic model. Signs are
// fixed so the probability rises as conditions get colder, more humid,
// closer to saturation, calmer and wetter.
type LogisticCoefficients struct {
	Intercept     float64
	Cold          float64 // per °C below 1°C
	Humidity      float64 // per % above 70
	Spread        float64 // per °C of dew point spread
	Wind          float64 // per m/s
	Precipitation float64 // per mm, capped at 3 mm
}

// DefaultLogistic are hand-fitted coefficients.
var DefaultLogistic = LogisticCoefficients{
	Intercept:     -1.2,
	Cold:          0.45,
	Humidity:      0.04,
	Spread:        0.35,
	Wind:          0.12,
	Precipitation: 0.8,
}

// Probability returns the modelled probability of black ice in [0,1].
func (k LogisticCoefficients) Probability(cond domain.Conditions) float64 {
	spread := math.Max(cond.TemperatureC-cond.DewPointC, 0)
	z := k.Intercept +
		k.Cold*(1-cond.TemperatureC) +
		k.Humidity*(cond.Humidity-70) -
		k.Spread*spread -
		k.Wind*math.Max(cond.WindSpeedMS, 0) +
		k.Precipitation*clamp(cond.PrecipitationMM, 0, 3)
	return 1 / (1 + math.Exp(-z))
}

// Logistic scores conditions with the default coefficients.
func Logistic(cond domain.Conditions) Assessment {
	p := DefaultLogistic.Probability(cond)
	return newAssessment(ModelLogistic, p*100, map[string]float64{"probability": math.Round(p*1000) / 1000})
}
