package domain

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Calibration tuning constants.
const (
	MinSamplesForRecalibration = 10
	RecalibrationWindow        = 50
	RecalibrationErrorLimit    = 20.0
	LearningRate               = 0.01
	MaxTemperatureWeight       = 0.40
	MinTimeWeight              = 0.01
	maxHistory                 = 1000

	similarTempF            = 5.0
	similarHumidity         = 15.0
	minSimilarCases         = 3
	lowSimilarityCap        = 0.65
	noHistoryConfidence     = 0.75
	minCalibratedConfidence = 0.30
	maxCalibratedConfidence = 0.95
)

// Weights are the relative importance of each BIFI risk component.
// All weights sum to 1.0.
type Weights struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	DewPoint      float64 `json:"dew_point"`
	Wind          float64 `json:"wind"`
	Time          float64 `json:"time"`
	Precipitation float64 `json:"precipitation"`
}

// DefaultWeights returns the uncalibrated weight distribution.
func DefaultWeights() Weights {
	return Weights{
		Temperature:   0.30,
		Humidity:      0.15,
		DewPoint:      0.20,
		Wind:          0.10,
		Time:          0.10,
		Precipitation: 0.15,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return floats.Sum(w.slice())
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range w.slice() {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

func (w Weights) slice() []float64 {
	return []float64{w.Temperature, w.Humidity, w.DewPoint, w.Wind, w.Time, w.Precipitation}
}

// CalibrationSample is one prediction compared against ground truth.
type CalibrationSample struct {
	Timestamp      time.Time `json:"timestamp"`
	PredictedScore float64   `json:"predicted_score"`
	ExpectedScore  float64   `json:"expected_score"`
	Error          float64   `json:"error"`
	TemperatureF   float64   `json:"temperature_f"`
	Humidity       float64   `json:"humidity"`
	Actual         Condition `json:"actual"`
}

// AccuracySnapshot records the state after a recalibration run.
type AccuracySnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	MeanAbsError float64   `json:"mean_abs_error"`
	Samples      int       `json:"samples"`
	Weights      Weights   `json:"weights"`
}

// Calibrator learns BIFI weights from ground-truth feedback.
type Calibrator struct {
	mu        sync.RWMutex
	weights   Weights
	history   []CalibrationSample
	snapshots []AccuracySnapshot
}

// NewCalibrator starts from the default weights with empty history.
func NewCalibrator() *Calibrator {
	return &Calibrator{weights: DefaultWeights()}
}

// Weights returns the current weights.
func (c *Calibrator) Weights() Weights {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights
}

// Samples returns a copy of the learning history.
func (c *Calibrator) Samples() []CalibrationSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CalibrationSample(nil), c.history...)
}

// Snapshots returns a copy of the recalibration history.
func (c *Calibrator) Snapshots() []AccuracySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]AccuracySnapshot(nil), c.snapshots...)
}

// Restore replaces the weights and samples, typically from persisted state.
// Invalid weights are rejected and the current ones kept.
func (c *Calibrator) Restore(w Weights, samples []CalibrationSample) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("restore calibration: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weights = w
	c.history = append([]CalibrationSample(nil), samples...)
	return nil
}

// LearnFromFeedback records the error between a predicted BIFI score and the
// score expected for the observed condition. Once enough samples exist the
// weights are recalibrated; the return value reports whether they changed.
func (c *Calibrator) LearnFromFeedback(predictedScore float64, actual Condition, cond Conditions) bool {
	expected := actual.ExpectedScore()
	sample := CalibrationSample{
		Timestamp:      clock.Now(),
		PredictedScore: predictedScore,
		ExpectedScore:  expected,
		Error:          predictedScore - expected,
		TemperatureF:   CToF(cond.TemperatureC),
		Humidity:       cond.Humidity,
		Actual:         actual,
	}

	c.mu.Lock()
	c.history = append(c.history, sample)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	enough := len(c.history) >= MinSamplesForRecalibration
	c.mu.Unlock()

	if !enough {
		return false
	}
	return c.Recalibrate()
}

// Recalibrate nudges the temperature weight up and the time weight down when
// the mean absolute error of the recent window exceeds the limit. The other
// weights are rescaled so the total stays 1.0.
func (c *Calibrator) Recalibrate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) < MinSamplesForRecalibration {
		return false
	}
	mae := meanAbsError(recent(c.history, RecalibrationWindow))
	if mae <= RecalibrationErrorLimit {
		return false
	}

	old := c.weights
	w := old
	w.Temperature = math.Min(old.Temperature+LearningRate, MaxTemperatureWeight)
	w.Time = math.Max(old.Time-LearningRate/2, MinTimeWeight)

	rest := []*float64{&w.Humidity, &w.DewPoint, &w.Wind, &w.Time, &w.Precipitation}
	var restSum float64
	for _, v := range rest {
		restSum += *v
	}
	if restSum > 0 {
		scale := (1 - w.Temperature) / restSum
		for _, v := range rest {
			*v *= scale
		}
	}

	c.weights = w
	c.snapshots = append(c.snapshots, AccuracySnapshot{
		Timestamp:    clock.Now(),
		MeanAbsError: mae,
		Samples:      len(c.history),
		Weights:      w,
	})
	return w != old
}

// MeanAbsError returns the mean absolute error of the recent window, or
// false when there is no history.
func (c *Calibrator) MeanAbsError() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return 0, false
	}
	return meanAbsError(recent(c.history, RecalibrationWindow)), true
}

// Confidence estimates how much to trust a prediction for the given
// conditions. Without at least three similar historical cases the result is
// capped regardless of global accuracy.
func (c *Calibrator) Confidence(cond Conditions) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conf := noHistoryConfidence
	if len(c.history) > 0 {
		mae := meanAbsError(recent(c.history, RecalibrationWindow))
		conf = clamp(1-mae/100, minCalibratedConfidence, maxCalibratedConfidence)
	}

	tempF := CToF(cond.TemperatureC)
	similar := 0
	for _, s := range c.history {
		if math.Abs(s.TemperatureF-tempF) <= similarTempF && math.Abs(s.Humidity-cond.Humidity) <= similarHumidity {
			similar++
		}
	}
	if similar < minSimilarCases {
		conf = math.Min(conf, lowSimilarityCap)
	}
	return conf
}

func recent(samples []CalibrationSample, n int) []CalibrationSample {
	if len(samples) > n {
		return samples[len(samples)-n:]
	}
	return samples
}

func meanAbsError(samples []CalibrationSample) float64 {
	errs := make([]float64, len(samples))
	for i, s := range samples {
		errs[i] = math.Abs(s.Error)
	}
	return stat.Mean(errs, nil)
}
