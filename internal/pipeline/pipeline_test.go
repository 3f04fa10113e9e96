package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
	"github.com/couchcryptid/black-ice-advisory/internal/pipeline"
	"github.com/couchcryptid/black-ice-advisory/internal/risk"
)

// --- mocks ---

type mockLocations struct {
	locs  []domain.MonitoredLocation
	err   error
	calls atomic.Int64
}

func (m *mockLocations) Locations(context.Context) ([]domain.MonitoredLocation, error) {
	m.calls.Add(1)
	return m.locs, m.err
}

type mockAssessor struct {
	mu     sync.Mutex
	levels map[int64]domain.RiskLevel
	fail   map[int64]bool
}

func (m *mockAssessor) set(id int64, level domain.RiskLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[id] = level
}

func (m *mockAssessor) AssessLocation(_ context.Context, loc domain.MonitoredLocation) (risk.CombinedHazard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[loc.ID] {
		return risk.CombinedHazard{}, errors.New("weather lookup failed")
	}
	level := m.levels[loc.ID]
	return risk.CombinedHazard{Level: level, Score: float64(level.Rank() * 20), Confidence: domain.ConfidenceResult{OverallConfidence: 0.6}}, nil
}

type mockSink struct {
	name string
	err  error

	mu     sync.Mutex
	alerts []domain.Alert
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) PublishAlerts(_ context.Context, alerts []domain.Alert) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alerts...)
	return nil
}

func (m *mockSink) got() []domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Alert(nil), m.alerts...)
}

type mockSweeper struct {
	maxAge time.Duration
}

func (m *mockSweeper) SweepFreshness(maxAge time.Duration) int {
	m.maxAge = maxAge
	return 1
}

var (
	vailPass = domain.MonitoredLocation{ID: 1, Name: "Vail Pass", Location: domain.Point{Lat: 39.53, Lon: -106.22}}
	bridge   = domain.MonitoredLocation{ID: 2, Name: "Glenwood bridge", Location: domain.Point{Lat: 39.55, Lon: -107.32}, IsBridge: true}
)

func newAssessor() *mockAssessor {
	return &mockAssessor{levels: map[int64]domain.RiskLevel{}, fail: map[int64]bool{}}
}

// --- tests ---

func TestPipeline_Cycle_AlertsAtThreshold(t *testing.T) {
	locs := &mockLocations{locs: []domain.MonitoredLocation{vailPass, bridge}}
	assessor := newAssessor()
	assessor.set(1, domain.RiskExtreme)
	assessor.set(2, domain.RiskModerate)
	sink := &mockSink{name: "store"}
	sweeper := &mockSweeper{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(locs, assessor, []pipeline.AlertSink{sink}, sweeper, slog.Default(), metrics,
		pipeline.Options{FreshnessMaxAge: 24 * time.Hour})

	require.NoError(t, p.Cycle(context.Background()))

	alerts := sink.got()
	require.Len(t, alerts, 1)
	type summary struct {
		LocationID int64
		Name       string
		Level      domain.RiskLevel
	}
	want := summary{LocationID: 1, Name: "Vail Pass", Level: domain.RiskExtreme}
	got := summary{LocationID: alerts[0].LocationID, Name: alerts[0].Name, Level: alerts[0].Level}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("alert mismatch (-want +got):\n%s", diff)
	}
	assert.NotEmpty(t, alerts[0].ID)
	assert.Contains(t, alerts[0].Message, "Vail Pass")

	assert.Equal(t, 24*time.Hour, sweeper.maxAge)
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertsPublished.WithLabelValues("store")))
}

func TestPipeline_Cycle_AlertsOnlyOnEscalation(t *testing.T) {
	locs := &mockLocations{locs: []domain.MonitoredLocation{vailPass}}
	assessor := newAssessor()
	sink := &mockSink{name: "websocket"}
	p := pipeline.New(locs, assessor, []pipeline.AlertSink{sink}, nil, slog.Default(), observability.NewMetricsForTesting(), pipeline.Options{})
	ctx := context.Background()

	steps := []struct {
		level domain.RiskLevel
		total int
	}{
		{domain.RiskHigh, 1},
		{domain.RiskHigh, 1},    // unchanged
		{domain.RiskExtreme, 2}, // escalated
		{domain.RiskHigh, 2},    // eased but still above threshold
		{domain.RiskLow, 2},     // cleared
		{domain.RiskHigh, 3},    // raised again
	}
	for i, s := range steps {
		assessor.set(1, s.level)
		require.NoError(t, p.Cycle(ctx))
		assert.Len(t, sink.got(), s.total, "step %d", i)
	}
}

func TestPipeline_Cycle_SinkFailureDoesNotBlockOthers(t *testing.T) {
	locs := &mockLocations{locs: []domain.MonitoredLocation{vailPass}}
	assessor := newAssessor()
	assessor.set(1, domain.RiskExtreme)
	broken := &mockSink{name: "kafka", err: errors.New("broker down")}
	hub := &mockSink{name: "websocket"}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(locs, assessor, []pipeline.AlertSink{broken, hub}, nil, slog.Default(), metrics, pipeline.Options{})

	require.NoError(t, p.Cycle(context.Background()))
	assert.Len(t, hub.got(), 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AlertsPublished.WithLabelValues("kafka")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertsPublished.WithLabelValues("websocket")))
}

func TestPipeline_Cycle_AssessErrorSkipsLocation(t *testing.T) {
	locs := &mockLocations{locs: []domain.MonitoredLocation{vailPass, bridge}}
	assessor := newAssessor()
	assessor.fail[1] = true
	assessor.set(2, domain.RiskHigh)
	sink := &mockSink{name: "store"}

	p := pipeline.New(locs, assessor, []pipeline.AlertSink{sink}, nil, slog.Default(), observability.NewMetricsForTesting(), pipeline.Options{})

	require.NoError(t, p.Cycle(context.Background()))
	require.Len(t, sink.got(), 1)
	assert.Equal(t, int64(2), sink.got()[0].LocationID)
}

func TestPipeline_Run_HappyPath(t *testing.T) {
	locs := &mockLocations{locs: []domain.MonitoredLocation{vailPass}}
	assessor := newAssessor()
	assessor.set(1, domain.RiskHigh)
	sink := &mockSink{name: "store"}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(locs, assessor, []pipeline.AlertSink{sink}, nil, slog.Default(), metrics,
		pipeline.Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Greater(t, locs.calls.Load(), int64(1))
	assert.Len(t, sink.got(), 1)
	assert.True(t, p.Ready())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	locs := &mockLocations{}
	p := pipeline.New(locs, newAssessor(), nil, nil, slog.Default(), observability.NewMetricsForTesting(), pipeline.Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, locs.calls.Load())
	assert.False(t, p.Ready())
}

func TestPipeline_Run_BacksOffOnListFailure(t *testing.T) {
	locs := &mockLocations{err: errors.New("database is locked")}
	p := pipeline.New(locs, newAssessor(), nil, nil, slog.Default(), observability.NewMetricsForTesting(), pipeline.Options{Interval: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	// 200ms then 400ms backoff: at most three attempts fit in the window.
	assert.LessOrEqual(t, locs.calls.Load(), int64(3))
	assert.GreaterOrEqual(t, locs.calls.Load(), int64(2))
	assert.Error(t, p.CheckReadiness(context.Background()))
}
