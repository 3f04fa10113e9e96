package risk

// AccidentRisk combines ice risk (0–1) with road geometry into an accident
// likelihood in [0,1].
func AccidentRisk(iceRisk float64, isBridge, isCurve bool, temperatureF float64) float64 {
	r := clamp(iceRisk, 0, 1) * 0.6
	if isBridge {
		r += 0.15
	}
	if isCurve {
		r += 0.10
	}
	if temperatureF <= 32 {
		r += 0.10
	}
	return clamp(r, 0, 1)
}
