package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/black-ice-advisory/internal/config"
	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 1, 14, 5, 10, 0, 0, time.UTC)
	alert := domain.Alert{
		ID:         "3f1c2a9e-0000-4000-8000-000000000001",
		LocationID: 7,
		Name:       "Vail Pass",
		Location:   domain.Point{Lat: 39.53, Lon: -106.22},
		Level:      domain.RiskExtreme,
		Score:      88.5,
		Message:    "Extreme black ice risk at Vail Pass",
		CreatedAt:  now,
	}

	msg, err := serializeToMessage(alert)
	require.NoError(t, err)

	assert.Equal(t, []byte("location-7"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "alert_id", msg.Headers[0].Key)
	assert.Equal(t, []byte(alert.ID), msg.Headers[0].Value)
	assert.Equal(t, "risk_level", msg.Headers[1].Key)
	assert.Equal(t, []byte("extreme"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded domain.Alert
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, alert, decoded)
}

func TestPublishAlerts_EmptyIsNoop(t *testing.T) {
	w := NewWriter(&config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaAlertTopic: "alerts"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	require.NoError(t, w.PublishAlerts(context.Background(), nil))
	assert.Equal(t, "kafka", w.Name())
}
