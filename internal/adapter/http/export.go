package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
)

// feedbackRow is the flat CSV shape of a feedback report.
type feedbackRow struct {
	ID                   int64     `csv:"id"`
	Timestamp            time.Time `csv:"timestamp"`
	Lat                  float64   `csv:"lat"`
	Lon                  float64   `csv:"lon"`
	ActualCondition      string    `csv:"actual_condition"`
	PredictedCondition   string    `csv:"predicted_condition"`
	PredictedProbability *float64  `csv:"predicted_probability"`
	Comment              string    `csv:"comment"`
	UpVotes              int       `csv:"up_votes"`
	DownVotes            int       `csv:"down_votes"`
}

// EncodeFeedbackCSV renders reports as CSV with a header row.
func EncodeFeedbackCSV(reports []domain.FeedbackReport) ([]byte, error) {
	body, err := csvutil.Marshal(toRows(reports))
	if err != nil {
		return nil, fmt.Errorf("encode feedback csv: %w", err)
	}
	return body, nil
}

func toRows(reports []domain.FeedbackReport) []feedbackRow {
	rows := make([]feedbackRow, len(reports))
	for i, r := range reports {
		rows[i] = feedbackRow{
			ID:                   r.ID,
			Timestamp:            r.Timestamp.UTC(),
			Lat:                  r.Location.Lat,
			Lon:                  r.Location.Lon,
			ActualCondition:      string(r.ActualCondition),
			PredictedCondition:   string(r.PredictedCondition),
			PredictedProbability: r.PredictedProbability,
			Comment:              r.Comment,
			UpVotes:              r.Votes.Up,
			DownVotes:            r.Votes.Down,
		}
	}
	return rows
}

// handleExportFeedback writes reports from the last `days` days (all when
// omitted) as CSV for offline analysis.
func (s *Server) handleExportFeedback(w http.ResponseWriter, r *http.Request) {
	days, err := floatParam(r, "days", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var since time.Time
	if days > 0 {
		since = domain.Now().Add(-time.Duration(days * float64(24*time.Hour)))
	}
	reports, err := s.svc.Reports(r.Context(), since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body, err := EncodeFeedbackCSV(reports)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="feedback_reports.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client may have gone away
}
