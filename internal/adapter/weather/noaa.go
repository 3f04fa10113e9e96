package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// NOAA reads the latest observation of the station nearest a point from
// the National Weather Service API (US only).
type NOAA struct {
	baseURL    string
	httpClient *http.Client
}

// NewNOAA creates a client for baseURL (e.g. https://api.weather.gov).
func NewNOAA(baseURL string, timeout time.Duration) *NOAA {
	return &NOAA{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

func (n *NOAA) Name() string { return "noaa" }

func (n *NOAA) Source() domain.Source { return domain.SourceNOAA }

func (n *NOAA) Fetch(ctx context.Context, p domain.Point) (domain.Conditions, error) {
	var point struct {
		Properties struct {
			ObservationStations string `json:"observationStations"`
		} `json:"properties"`
	}
	if err := n.get(ctx, fmt.Sprintf("%s/points/%.4f,%.4f", n.baseURL, p.Lat, p.Lon), &point); err != nil {
		return domain.Conditions{}, fmt.Errorf("noaa points: %w", err)
	}
	if point.Properties.ObservationStations == "" {
		return domain.Conditions{}, errors.New("noaa points: no observation stations")
	}

	var stations struct {
		Features []struct {
			Properties struct {
				StationIdentifier string `json:"stationIdentifier"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := n.get(ctx, point.Properties.ObservationStations, &stations); err != nil {
		return domain.Conditions{}, fmt.Errorf("noaa stations: %w", err)
	}
	if len(stations.Features) == 0 {
		return domain.Conditions{}, errors.New("noaa stations: none near point")
	}
	station := stations.Features[0].Properties.StationIdentifier

	var obs noaaObservation
	if err := n.get(ctx, fmt.Sprintf("%s/stations/%s/observations/latest", n.baseURL, station), &obs); err != nil {
		return domain.Conditions{}, fmt.Errorf("noaa observation %s: %w", station, err)
	}
	return obs.conditions()
}

func (n *NOAA) get(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// quantity is a NWS value with unit; Value is null when the sensor is out.
type quantity struct {
	Value    *float64 `json:"value"`
	UnitCode string   `json:"unitCode"`
}

type noaaObservation struct {
	Properties struct {
		Timestamp             time.Time `json:"timestamp"`
		Temperature           quantity  `json:"temperature"`
		Dewpoint              quantity  `json:"dewpoint"`
		RelativeHumidity      quantity  `json:"relativeHumidity"`
		WindSpeed             quantity  `json:"windSpeed"`
		WindChill             quantity  `json:"windChill"`
		PrecipitationLastHour quantity  `json:"precipitationLastHour"`
	} `json:"properties"`
}

func (o noaaObservation) conditions() (domain.Conditions, error) {
	p := o.Properties
	if p.Temperature.Value == nil {
		return domain.Conditions{}, errors.New("noaa observation has no temperature")
	}
	cond := domain.Conditions{
		TemperatureC: *p.Temperature.Value,
		ObservedAt:   p.Timestamp,
		IsDay:        p.Timestamp.Hour() >= 7 && p.Timestamp.Hour() < 18,
		CloudCover:   50,
	}
	if cond.ObservedAt.IsZero() {
		cond.ObservedAt = domain.Now()
	}
	if p.WindSpeed.Value != nil {
		// NWS reports km/h.
		cond.WindSpeedMS = *p.WindSpeed.Value / 3.6
	}
	if p.PrecipitationLastHour.Value != nil {
		cond.PrecipitationMM = *p.PrecipitationLastHour.Value
		if p.PrecipitationLastHour.UnitCode == "wmoUnit:m" {
			cond.PrecipitationMM *= 1000
		}
	}
	cond.Humidity = 80
	if p.RelativeHumidity.Value != nil {
		cond.Humidity = *p.RelativeHumidity.Value
	}
	if p.Dewpoint.Value != nil {
		cond.DewPointC = *p.Dewpoint.Value
	} else {
		cond.DewPointC = domain.DewPoint(cond.TemperatureC, cond.Humidity)
	}
	if p.WindChill.Value != nil {
		cond.FeelsLikeC = *p.WindChill.Value
	} else {
		cond.FeelsLikeC = domain.WindChill(cond.TemperatureC, cond.WindSpeedMS)
	}
	return cond, nil
}
