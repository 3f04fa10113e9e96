// Package mapbox names and places route waypoints with the Mapbox
// Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// ErrUnauthorized is returned when Mapbox rejects the access token.
var ErrUnauthorized = errors.New("mapbox rejected the access token")

// Client implements domain.Geocoder. Lookups are limited to the US and
// Canada, where the road weather sources have coverage.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Locate finds the best match for a place, pass or road name.
func (c *Client) Locate(ctx context.Context, query string) (domain.Place, error) {
	return c.lookup(ctx, "forward", url.PathEscape(query), url.Values{
		"types":   {"poi,address,place,locality"},
		"country": {"us,ca"},
	})
}

// Describe names the road or place at p.
func (c *Client) Describe(ctx context.Context, p domain.Point) (domain.Place, error) {
	// Mapbox takes lon,lat.
	coord := strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	return c.lookup(ctx, "reverse", coord, url.Values{
		"types": {"address,poi,place"},
	})
}

// lookup queries one path segment, already escaped.
func (c *Client) lookup(ctx context.Context, method, search string, params url.Values) (place domain.Place, err error) {
	outcome := "success"
	start := time.Now()
	defer func() {
		c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil {
			outcome = "error"
		}
		c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
	}()

	params.Set("access_token", c.token)
	params.Set("limit", "1")
	u := c.baseURL + "/" + search + ".json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create %s geocode request: %w", method, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Place{}, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.Place{}, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Place{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.Place{}, fmt.Errorf("decode %s geocode response: %w", method, err)
	}
	if len(fc.Features) == 0 {
		outcome = "empty"
		c.logger.Debug("mapbox returned no features", "method", method, "search", search)
		return domain.Place{}, nil
	}
	return fc.Features[0].place(), nil
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) place() domain.Place {
	p := domain.Place{Name: f.Text, Address: f.PlaceName, Relevance: f.Relevance}
	if len(f.Center) == 2 {
		p.Location = domain.Point{Lat: f.Center[1], Lon: f.Center[0]}
	}
	return p
}
