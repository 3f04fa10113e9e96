package domain

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// SensorMaxAge is how old a reading may be before Nearest ignores it.
// Road surface temperature drifts quickly, so this is far tighter than
// the rwis expiry used for confidence.
const SensorMaxAge = time.Hour

// SensorNetwork keeps the latest reading of every roadside sensor.
type SensorNetwork struct {
	tracker *Tracker
	maxAge  time.Duration
	mu      sync.RWMutex
	latest  map[string]SensorReading
}

// NewSensorNetwork creates an empty network. Readings refresh the rwis
// source on tracker when it is non-nil.
func NewSensorNetwork(tracker *Tracker) *SensorNetwork {
	return &SensorNetwork{tracker: tracker, maxAge: SensorMaxAge, latest: make(map[string]SensorReading)}
}

// Record stores a reading unless a newer one from the same sensor is already held.
func (n *SensorNetwork) Record(r SensorReading) error {
	if r.SensorID == "" {
		return errors.New("sensor reading has no sensor_id")
	}
	if !(Point{Lat: r.Lat, Lon: r.Lon}).Valid() {
		return errors.New("sensor reading has invalid coordinates")
	}
	if r.ObservedAt.IsZero() {
		r.ObservedAt = n.now()
	}

	n.mu.Lock()
	if prev, ok := n.latest[r.SensorID]; ok && prev.ObservedAt.After(r.ObservedAt) {
		n.mu.Unlock()
		return nil
	}
	n.latest[r.SensorID] = r
	n.mu.Unlock()

	if n.tracker != nil {
		n.tracker.Advance(SourceRWIS, r.ObservedAt)
	}
	return nil
}

// now reads the tracker clock so reading ages agree with rwis freshness.
func (n *SensorNetwork) now() time.Time {
	if n.tracker != nil {
		return n.tracker.clock.Now()
	}
	return clock.Now()
}

// Nearest returns the closest reading within radiusMiles of p that is no
// older than SensorMaxAge.
func (n *SensorNetwork) Nearest(p Point, radiusMiles float64) (SensorReading, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	now := n.now()
	var best SensorReading
	bestDist := radiusMiles
	found := false
	for _, r := range n.latest {
		if now.Sub(r.ObservedAt) > n.maxAge {
			continue
		}
		d := HaversineMiles(p, Point{Lat: r.Lat, Lon: r.Lon})
		if d <= bestDist {
			best, bestDist, found = r, d, true
		}
	}
	return best, found
}

// Sweep drops readings older than maxAge and returns how many were removed.
func (n *SensorNetwork) Sweep(maxAge time.Duration) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	removed := 0
	for id, r := range n.latest {
		if now.Sub(r.ObservedAt) > maxAge {
			delete(n.latest, id)
			removed++
		}
	}
	return removed
}

// Readings returns all latest readings ordered by sensor id.
func (n *SensorNetwork) Readings() []SensorReading {
	n.mu.RLock()
	out := make([]SensorReading, 0, len(n.latest))
	for _, r := range n.latest {
		out = append(out, r)
	}
	n.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}
