// Package mqtt subscribes to the roadside sensor network and feeds readings
// into the domain sensor registry.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/black-ice-advisory/internal/domain"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

const (
	connectTimeout = 10 * time.Second
	qos            = 0
)

// Subscriber receives sensor readings over MQTT.
type Subscriber struct {
	client  paho.Client
	topic   string
	sensors *domain.SensorNetwork
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewSubscriber configures a client for brokerURL. It does not connect until
// Start is called.
func NewSubscriber(brokerURL, topic string, sensors *domain.SensorNetwork, metrics *observability.Metrics, logger *slog.Logger) *Subscriber {
	s := &Subscriber{topic: topic, sensors: sensors, metrics: metrics, logger: logger}

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("black-ice-advisory-" + time.Now().UTC().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnect = func(c paho.Client) {
		token := c.Subscribe(topic, qos, s.handle)
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", topic, "error", err)
			return
		}
		logger.Info("mqtt subscribed", "topic", topic)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}
	s.client = paho.NewClient(opts)
	return s
}

// Start connects to the broker. Subscription happens in the connect
// handler so it is restored after reconnects.
func (s *Subscriber) Start(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Close disconnects, allowing in-flight handlers a short grace period.
func (s *Subscriber) Close() {
	s.client.Disconnect(250)
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	r, err := DecodeReading(msg.Topic(), msg.Payload())
	if err == nil {
		err = s.sensors.Record(r)
	}
	if err != nil {
		s.metrics.SensorReadings.WithLabelValues("rejected").Inc()
		s.logger.Warn("sensor reading rejected", "topic", msg.Topic(), "error", err)
		return
	}
	s.metrics.SensorReadings.WithLabelValues("accepted").Inc()
}

// DecodeReading parses a JSON sensor payload. When the payload carries no
// sensor_id it is taken from the topic segment before the last one, so
// "blackice/sensors/i70-mm190/reading" yields "i70-mm190".
func DecodeReading(topic string, payload []byte) (domain.SensorReading, error) {
	var r domain.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return domain.SensorReading{}, fmt.Errorf("decode sensor payload: %w", err)
	}
	if r.SensorID == "" {
		r.SensorID = sensorIDFromTopic(topic)
	}
	r.SensorID = strings.TrimSpace(r.SensorID)
	r.SurfaceState = strings.ToLower(strings.TrimSpace(r.SurfaceState))
	if !r.ObservedAt.IsZero() {
		r.ObservedAt = r.ObservedAt.UTC()
	}
	return r, nil
}

func sensorIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
