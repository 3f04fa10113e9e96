package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/weather"
	"github.com/couchcryptid/black-ice-advisory/internal/advisory"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps an error to its response status and client message.
// Unexpected errors get a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, advisory.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownSource),
		errors.Is(err, domain.ErrUnknownCondition):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, advisory.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, weather.ErrUnavailable):
		return http.StatusServiceUnavailable, "weather data is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func advisoryNotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", advisory.ErrNotFound, fmt.Sprintf(format, args...))
}
