package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
	"github.com/couchcryptid/black-ice-advisory/internal/risk"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// LocationSource lists the locations to watch.
type LocationSource interface {
	Locations(ctx context.Context) ([]domain.MonitoredLocation, error)
}

// Assessor scores a location.
type Assessor interface {
	AssessLocation(ctx context.Context, loc domain.MonitoredLocation) (risk.CombinedHazard, error)
}

// AlertSink receives alerts raised during a cycle.
type AlertSink interface {
	Name() string
	PublishAlerts(ctx context.Context, alerts []domain.Alert) error
}

// Sweeper drops freshness observations older than maxAge.
type Sweeper interface {
	SweepFreshness(maxAge time.Duration) int
}

// Options tune the monitor loop.
type Options struct {
	Interval        time.Duration
	FreshnessMaxAge time.Duration
	// Threshold is the lowest level that raises an alert. Defaults to high.
	Threshold domain.RiskLevel
}

// Pipeline runs the monitor loop: list locations, score each, publish
// alerts for those at or above the threshold.
type Pipeline struct {
	locations LocationSource
	assessor  Assessor
	sinks     []AlertSink
	sweeper   Sweeper
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool

	// last alerted level per location; only read and written by Run's goroutine
	alerted map[int64]domain.RiskLevel
}

// New creates a Pipeline with the given stages and observability. sweeper may be nil.
func New(locations LocationSource, assessor Assessor, sinks []AlertSink, sweeper Sweeper, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Threshold == "" {
		opts.Threshold = domain.RiskHigh
	}
	return &Pipeline{
		locations: locations,
		assessor:  assessor,
		sinks:     sinks,
		sweeper:   sweeper,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
		alerted:   make(map[int64]domain.RiskLevel),
	}
}

// CheckReadiness returns nil once the pipeline has completed a cycle.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("monitor has not completed a cycle yet")
	}
	return nil
}

// Ready reports whether a cycle has completed.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// Run executes the monitor loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("monitor started", "interval", p.opts.Interval, "threshold", p.opts.Threshold)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("monitor stopping", "reason", ctx.Err())
			return nil
		}

		if err := p.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("monitor cycle failed", "error", err, "retry_in", backoff)
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		if !retry.SleepWithContext(ctx, p.opts.Interval) {
			p.logger.Info("monitor stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Cycle runs one extract-transform-load pass. It fails only when the
// locations cannot be listed; scoring and sink failures are logged and the
// remaining work continues.
func (p *Pipeline) Cycle(ctx context.Context) error {
	start := time.Now()

	locs, err := p.locations.Locations(ctx)
	if err != nil {
		return fmt.Errorf("list monitored locations: %w", err)
	}

	alerts := p.evaluate(ctx, locs)
	if len(alerts) > 0 {
		p.load(ctx, alerts)
	}

	if p.sweeper != nil && p.opts.FreshnessMaxAge > 0 {
		if n := p.sweeper.SweepFreshness(p.opts.FreshnessMaxAge); n > 0 {
			p.logger.Info("swept stale freshness observations", "removed", n)
		}
	}

	p.metrics.MonitorDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("monitor cycle complete", "locations", len(locs), "alerts", len(alerts))
	return nil
}

// evaluate scores every location and returns alerts for those that reached
// the threshold or got worse since the last alert.
func (p *Pipeline) evaluate(ctx context.Context, locs []domain.MonitoredLocation) []domain.Alert {
	alerts := make([]domain.Alert, 0)
	seen := make(map[int64]bool, len(locs))

	for _, loc := range locs {
		if ctx.Err() != nil {
			break
		}
		seen[loc.ID] = true

		h, err := p.assessor.AssessLocation(ctx, loc)
		if err != nil {
			p.logger.Warn("assess location failed, skipping", "location_id", loc.ID, "name", loc.Name, "error", err)
			continue
		}

		if !h.Level.AtLeast(p.opts.Threshold) {
			delete(p.alerted, loc.ID)
			continue
		}
		if prev, ok := p.alerted[loc.ID]; ok && prev.AtLeast(h.Level) {
			continue
		}
		p.alerted[loc.ID] = h.Level
		alerts = append(alerts, newAlert(loc, h))
	}

	for id := range p.alerted {
		if !seen[id] {
			delete(p.alerted, id)
		}
	}
	return alerts
}

func (p *Pipeline) load(ctx context.Context, alerts []domain.Alert) {
	for _, sink := range p.sinks {
		if err := sink.PublishAlerts(ctx, alerts); err != nil {
			p.logger.Error("publish alerts failed", "sink", sink.Name(), "count", len(alerts), "error", err)
			continue
		}
		p.metrics.AlertsPublished.WithLabelValues(sink.Name()).Add(float64(len(alerts)))
	}
}

func newAlert(loc domain.MonitoredLocation, h risk.CombinedHazard) domain.Alert {
	return domain.Alert{
		ID:         uuid.NewString(),
		LocationID: loc.ID,
		Name:       loc.Name,
		Location:   loc.Location,
		Level:      h.Level,
		Score:      h.Score,
		Message:    fmt.Sprintf("Black ice risk %s at %s (score %.0f, confidence %.0f%%)", h.Level, loc.Name, h.Score, h.Confidence.OverallConfidence*100),
		CreatedAt:  domain.Now().UTC(),
	}
}
