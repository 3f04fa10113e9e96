// Package weather fetches current conditions from public weather APIs and
// falls back through them in order, returning an explicitly degraded
// reading when none answers.
package weather

import (
	"context"
	"errors"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// ErrUnavailable is returned when every provider failed.
var ErrUnavailable = errors.New("weather data unavailable")

// Provider is one upstream weather API.
type Provider interface {
	Name() string
	Source() domain.Source
	Fetch(ctx context.Context, p domain.Point) (domain.Conditions, error)
}

const userAgent = "black-ice-advisory (https://github.com/couchcryptid/black-ice-advisory)"
