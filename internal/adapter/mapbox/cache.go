package mapbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/cache"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

// CachedGeocoder remembers places by query and by rounded coordinates.
type CachedGeocoder struct {
	inner   domain.Geocoder
	store   cache.Store[domain.Place]
	metrics *observability.Metrics
}

// NewCachedGeocoder wraps inner with store.
func NewCachedGeocoder(inner domain.Geocoder, store cache.Store[domain.Place], metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, store: store, metrics: metrics}
}

func (c *CachedGeocoder) Locate(ctx context.Context, query string) (domain.Place, error) {
	key := "fwd:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
	return c.cached(ctx, "forward", key, func() (domain.Place, error) {
		return c.inner.Locate(ctx, query)
	})
}

func (c *CachedGeocoder) Describe(ctx context.Context, p domain.Point) (domain.Place, error) {
	// Four decimals is about 11 m, well inside one road segment.
	key := fmt.Sprintf("rev:%.4f,%.4f", p.Lat, p.Lon)
	return c.cached(ctx, "reverse", key, func() (domain.Place, error) {
		return c.inner.Describe(ctx, p)
	})
}

func (c *CachedGeocoder) cached(ctx context.Context, method, key string, fetch func() (domain.Place, error)) (domain.Place, error) {
	label := "geocode_" + method
	if place, ok := c.store.Get(ctx, key); ok {
		c.metrics.CacheLookups.WithLabelValues(label, "hit").Inc()
		return place, nil
	}
	c.metrics.CacheLookups.WithLabelValues(label, "miss").Inc()

	place, err := fetch()
	if err != nil {
		return domain.Place{}, err
	}
	// Misses are retried on the next request.
	if place.Found() {
		c.store.Put(ctx, key, place)
	}
	return place, nil
}
