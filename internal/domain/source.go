package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownSource is returned when a source name is not one of the known kinds.
var ErrUnknownSource = errors.New("unknown data source")

// Source identifies an upstream data feed.
type Source string

const (
	SourceRWIS       Source = "rwis"
	SourceRadar      Source = "radar"
	SourceWeatherAPI Source = "weather_api"
	SourceNOAA       Source = "noaa"
	SourceSatellite  Source = "satellite"
	SourceForecast   Source = "forecast"
	SourceTraffic    Source = "traffic"
)

// AllSources lists every known source in display order.
var AllSources = []Source{
	SourceRWIS,
	SourceRadar,
	SourceWeatherAPI,
	SourceNOAA,
	SourceSatellite,
	SourceForecast,
	SourceTraffic,
}

var freshnessThresholds = map[Source]time.Duration{
	SourceRWIS:       5 * time.Minute,
	SourceRadar:      10 * time.Minute,
	SourceWeatherAPI: 15 * time.Minute,
	SourceNOAA:       30 * time.Minute,
	SourceSatellite:  30 * time.Minute,
	SourceForecast:   60 * time.Minute,
	SourceTraffic:    5 * time.Minute,
}

var sourceWeights = map[Source]float64{
	SourceRWIS:       2.0,
	SourceRadar:      1.5,
	SourceWeatherAPI: 1.0,
	SourceNOAA:       1.0,
	SourceSatellite:  0.5,
	SourceForecast:   0.3,
	SourceTraffic:    0.5,
}

const (
	defaultThreshold    = 15 * time.Minute
	defaultSourceWeight = 1.0
)

// ParseSource validates a source name at the boundary.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := freshnessThresholds[src]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
	return src, nil
}

// ParseSources validates a list of source names, stopping at the first unknown one.
func ParseSources(names []string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		src, err := ParseSource(n)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// Threshold is the expected refresh interval of the source.
func (s Source) Threshold() time.Duration {
	if t, ok := freshnessThresholds[s]; ok {
		return t
	}
	return defaultThreshold
}

// Weight is the importance of the source when combining freshness signals.
func (s Source) Weight() float64 {
	if w, ok := sourceWeights[s]; ok {
		return w
	}
	return defaultSourceWeight
}
