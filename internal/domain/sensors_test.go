package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorNetwork_RecordKeepsNewest(t *testing.T) {
	tr, fc := newFakeTracker()
	net := NewSensorNetwork(tr)

	newer := SensorReading{SensorID: "co-i70-12", Lat: 39.63, Lon: -106.07, RoadTempC: -2, ObservedAt: fc.Now().Add(-2 * time.Minute)}
	older := newer
	older.RoadTempC = 3
	older.ObservedAt = fc.Now().Add(-10 * time.Minute)

	require.NoError(t, net.Record(newer))
	require.NoError(t, net.Record(older))

	got := net.Readings()
	require.Len(t, got, 1)
	assert.Equal(t, -2.0, got[0].RoadTempC)
	assert.Equal(t, BandFresh, tr.Status(SourceRWIS).Status)
}

func TestSensorNetwork_RejectsInvalid(t *testing.T) {
	net := NewSensorNetwork(nil)

	assert.Error(t, net.Record(SensorReading{Lat: 39, Lon: -105}))
	assert.Error(t, net.Record(SensorReading{SensorID: "x", Lat: 120, Lon: -105}))
	assert.Empty(t, net.Readings())
}

func TestSensorNetwork_Nearest(t *testing.T) {
	net := NewSensorNetwork(nil)
	now := time.Now()
	require.NoError(t, net.Record(SensorReading{SensorID: "a", Lat: 39.70, Lon: -105.00, ObservedAt: now}))
	require.NoError(t, net.Record(SensorReading{SensorID: "b", Lat: 39.74, Lon: -104.99, ObservedAt: now}))

	got, ok := net.Nearest(Point{Lat: 39.7392, Lon: -104.9903}, 10)
	require.True(t, ok)
	assert.Equal(t, "b", got.SensorID)

	_, ok = net.Nearest(Point{Lat: 45, Lon: -100}, 10)
	assert.False(t, ok)
}

func TestSensorNetwork_LateReadingDoesNotAgeRWIS(t *testing.T) {
	tr, fc := newFakeTracker()
	net := NewSensorNetwork(tr)

	require.NoError(t, net.Record(SensorReading{SensorID: "a", Lat: 39.70, Lon: -105.00, ObservedAt: fc.Now().Add(-time.Minute)}))
	require.NoError(t, net.Record(SensorReading{SensorID: "b", Lat: 39.74, Lon: -104.99, ObservedAt: fc.Now().Add(-30 * time.Minute)}))

	age, ok := tr.Age(SourceRWIS)
	require.True(t, ok)
	assert.Equal(t, time.Minute, age)
	assert.Equal(t, BandFresh, tr.Status(SourceRWIS).Status)
	assert.Len(t, net.Readings(), 2)
}

func TestTracker_AdvanceIgnoresOlder(t *testing.T) {
	tr, fc := newFakeTracker()
	tr.Advance(SourceNOAA, fc.Now())
	tr.Advance(SourceNOAA, fc.Now().Add(-time.Hour))

	age, ok := tr.Age(SourceNOAA)
	require.True(t, ok)
	assert.Zero(t, age)
}

func TestSensorNetwork_StaleReadingsIgnoredAndSwept(t *testing.T) {
	tr, fc := newFakeTracker()
	net := NewSensorNetwork(tr)
	denver := Point{Lat: 39.7392, Lon: -104.9903}
	require.NoError(t, net.Record(SensorReading{SensorID: "a", Lat: 39.74, Lon: -104.99, RoadTempC: -4, ObservedAt: fc.Now()}))

	_, ok := net.Nearest(denver, 10)
	require.True(t, ok)

	fc.Advance(72 * time.Hour)

	_, ok = net.Nearest(denver, 10)
	assert.False(t, ok, "stale road temperature must not be attached")
	assert.Equal(t, 1, net.Sweep(SensorMaxAge))
	assert.Empty(t, net.Readings())
}

func TestHaversineMiles(t *testing.T) {
	denver := Point{Lat: 39.7392, Lon: -104.9903}
	boulder := Point{Lat: 40.0150, Lon: -105.2705}

	assert.InDelta(t, 24.0, HaversineMiles(denver, boulder), 1.0)
	assert.Zero(t, HaversineMiles(denver, denver))
}
