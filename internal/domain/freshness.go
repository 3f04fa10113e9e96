package domain

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FreshnessBand classifies how old a source's last reading is relative to its threshold.
type FreshnessBand string

const (
	BandFresh     FreshnessBand = "fresh"
	BandRecent    FreshnessBand = "recent"
	BandStale     FreshnessBand = "stale"
	BandVeryStale FreshnessBand = "very_stale"
	BandOutdated  FreshnessBand = "outdated"
	BandUnknown   FreshnessBand = "unknown"
)

// UnknownMultiplier applies to sources that were never fetched and to
// requests that name no sources at all.
const UnknownMultiplier = 0.70

type band struct {
	maxRatio   float64
	band       FreshnessBand
	multiplier float64
	color      string
	message    string
}

// bands are checked in order; the first with ratio <= maxRatio wins.
var bands = []band{
	{1.0, BandFresh, 1.00, "#22c55e", "Data is current"},
	{1.5, BandRecent, 0.95, "#84cc16", "Data is recent"},
	{2.0, BandStale, 0.80, "#eab308", "Data is getting stale"},
	{3.0, BandVeryStale, 0.60, "#f97316", "Data is very stale"},
	{math.Inf(1), BandOutdated, 0.30, "#ef4444", "Data is outdated; treat with caution"},
}

// FreshnessStatus describes the staleness of one source at a point in time.
type FreshnessStatus struct {
	Source               Source        `json:"source"`
	Status               FreshnessBand `json:"status"`
	AgeMinutes           *float64      `json:"age_minutes"`
	ConfidenceMultiplier float64       `json:"confidence_multiplier"`
	Message              string        `json:"message"`
	Color                string        `json:"color"`
	ThresholdMinutes     float64       `json:"threshold_minutes"`
}

// ConfidenceResult is a model confidence discounted by input freshness.
type ConfidenceResult struct {
	OverallConfidence float64           `json:"overall_confidence"`
	BaseConfidence    float64           `json:"base_confidence"`
	FreshnessFactor   float64           `json:"freshness_factor"`
	Sources           []FreshnessStatus `json:"sources"`
	StaleSources      []Source          `json:"stale_sources"`
	Message           string            `json:"message"`
}

// Tracker records the last successful fetch time of each source.
type Tracker struct {
	clock clockwork.Clock
	mu    sync.RWMutex
	last  map[Source]time.Time
}

// NewTracker creates a Tracker. Pass nil to use the real clock.
func NewTracker(c clockwork.Clock) *Tracker {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Tracker{clock: c, last: make(map[Source]time.Time)}
}

// Update records or overwrites the last fetch time for a source.
func (t *Tracker) Update(src Source, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[src] = at
}

// Advance records at for src only when it is newer than what is held, so
// late-arriving observations never age a source.
func (t *Tracker) Advance(src Source, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[src]; ok && !at.After(prev) {
		return
	}
	t.last[src] = at
}

// Touch records a fetch that happened now.
func (t *Tracker) Touch(src Source) {
	t.Update(src, t.clock.Now())
}

// Age returns how long ago the source was last fetched. The bool is false
// when the source has never been recorded.
func (t *Tracker) Age(src Source) (time.Duration, bool) {
	t.mu.RLock()
	at, ok := t.last[src]
	t.mu.RUnlock()
	if !ok {
		return 0, false
	}
	age := t.clock.Since(at)
	if age < 0 {
		age = 0
	}
	return age, true
}

// Status classifies the source into a freshness band.
func (t *Tracker) Status(src Source) FreshnessStatus {
	threshold := src.Threshold()
	age, ok := t.Age(src)
	if !ok {
		return FreshnessStatus{
			Source:               src,
			Status:               BandUnknown,
			ConfidenceMultiplier: UnknownMultiplier,
			Message:              "No data received from this source yet",
			Color:                "#6b7280",
			ThresholdMinutes:     threshold.Minutes(),
		}
	}
	return classify(src, age, threshold)
}

// Statuses returns the status of every known source.
func (t *Tracker) Statuses() []FreshnessStatus {
	out := make([]FreshnessStatus, 0, len(AllSources))
	for _, src := range AllSources {
		out = append(out, t.Status(src))
	}
	return out
}

func classify(src Source, age, threshold time.Duration) FreshnessStatus {
	ratio := age.Minutes() / threshold.Minutes()
	ageMin := math.Round(age.Minutes()*10) / 10

	for _, b := range bands {
		if ratio <= b.maxRatio {
			return FreshnessStatus{
				Source:               src,
				Status:               b.band,
				AgeMinutes:           &ageMin,
				ConfidenceMultiplier: b.multiplier,
				Message:              fmt.Sprintf("%s (%.1f min old)", b.message, ageMin),
				Color:                b.color,
				ThresholdMinutes:     threshold.Minutes(),
			}
		}
	}
	// Unreachable: the last band is unbounded.
	return FreshnessStatus{Source: src, Status: BandOutdated, ConfidenceMultiplier: 0.30}
}

// OverallConfidence discounts base by the importance-weighted average of the
// freshness multipliers of the given sources. An empty source list is not an
// error: the unknown multiplier applies.
func (t *Tracker) OverallConfidence(sources []Source, base float64) ConfidenceResult {
	base = clamp(base, 0, 1)

	if len(sources) == 0 {
		return ConfidenceResult{
			OverallConfidence: base * UnknownMultiplier,
			BaseConfidence:    base,
			FreshnessFactor:   UnknownMultiplier,
			Sources:           []FreshnessStatus{},
			StaleSources:      []Source{},
			Message:           "No data sources specified; applying conservative confidence",
		}
	}

	var weighted, totalWeight float64
	statuses := make([]FreshnessStatus, 0, len(sources))
	stale := make([]Source, 0)
	for _, src := range sources {
		st := t.Status(src)
		w := src.Weight()
		weighted += w * st.ConfidenceMultiplier
		totalWeight += w
		statuses = append(statuses, st)
		if st.ConfidenceMultiplier < 0.95 {
			stale = append(stale, src)
		}
	}

	factor := clamp(weighted/totalWeight, 0, 1)
	msg := "All data sources are fresh"
	if len(stale) > 0 {
		msg = fmt.Sprintf("%d of %d data sources are stale or missing; confidence reduced", len(stale), len(sources))
	}

	return ConfidenceResult{
		OverallConfidence: base * factor,
		BaseConfidence:    base,
		FreshnessFactor:   factor,
		Sources:           statuses,
		StaleSources:      stale,
		Message:           msg,
	}
}

// Sweep removes observations older than maxAge and returns how many were removed.
func (t *Tracker) Sweep(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	removed := 0
	for src, at := range t.last {
		if now.Sub(at) > maxAge {
			delete(t.last, src)
			removed++
		}
	}
	return removed
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
