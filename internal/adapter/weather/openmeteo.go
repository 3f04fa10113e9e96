package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// OpenMeteo reads current conditions from the Open-Meteo forecast API.
type OpenMeteo struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenMeteo creates a client for baseURL (e.g. https://api.open-meteo.com/v1).
func NewOpenMeteo(baseURL string, timeout time.Duration) *OpenMeteo {
	return &OpenMeteo{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

func (o *OpenMeteo) Name() string { return "openmeteo" }

func (o *OpenMeteo) Source() domain.Source { return domain.SourceWeatherAPI }

func (o *OpenMeteo) Fetch(ctx context.Context, p domain.Point) (domain.Conditions, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(p.Lat, 'f', 4, 64)},
		"longitude":       {strconv.FormatFloat(p.Lon, 'f', 4, 64)},
		"current":         {"temperature_2m,relative_humidity_2m,dew_point_2m,apparent_temperature,precipitation,cloud_cover,wind_speed_10m,is_day"},
		"wind_speed_unit": {"ms"},
		"timezone":        {"auto"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/forecast?"+params.Encode(), nil)
	if err != nil {
		return domain.Conditions{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return domain.Conditions{}, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Conditions{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var r openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return domain.Conditions{}, fmt.Errorf("decode open-meteo response: %w", err)
	}
	if r.Current.Temperature == nil || r.Current.Humidity == nil {
		return domain.Conditions{}, errors.New("open-meteo response missing current conditions")
	}

	c := r.Current
	cond := domain.Conditions{
		TemperatureC:    *c.Temperature,
		Humidity:        *c.Humidity,
		WindSpeedMS:     c.WindSpeed,
		PrecipitationMM: c.Precipitation,
		CloudCover:      c.CloudCover,
		IsDay:           c.IsDay == 1,
		ObservedAt:      r.observedAt(),
	}
	if c.DewPoint != nil {
		cond.DewPointC = *c.DewPoint
	} else {
		cond.DewPointC = domain.DewPoint(cond.TemperatureC, cond.Humidity)
	}
	if c.ApparentTemperature != nil {
		cond.FeelsLikeC = *c.ApparentTemperature
	} else {
		cond.FeelsLikeC = domain.WindChill(cond.TemperatureC, cond.WindSpeedMS)
	}
	return cond, nil
}

type openMeteoResponse struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Current          struct {
		Time                string   `json:"time"` // local, no zone
		Temperature         *float64 `json:"temperature_2m"`
		Humidity            *float64 `json:"relative_humidity_2m"`
		DewPoint            *float64 `json:"dew_point_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		Precipitation       float64  `json:"precipitation"`
		CloudCover          float64  `json:"cloud_cover"`
		WindSpeed           float64  `json:"wind_speed_10m"`
		IsDay               int      `json:"is_day"`
	} `json:"current"`
}

// observedAt keeps the local wall clock so time-of-day risk uses local hours.
func (r openMeteoResponse) observedAt() time.Time {
	loc := time.FixedZone("", r.UTCOffsetSeconds)
	t, err := time.ParseInLocation("2006-01-02T15:04", r.Current.Time, loc)
	if err != nil {
		return domain.Now()
	}
	return t
}
