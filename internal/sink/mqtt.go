package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jpalmerr/thermoboard/internal/device"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// disconnectQuiesce is how long Close waits for in-flight publishes, in ms.
	disconnectQuiesce = 250
)

// MQTTConfig configures an [MQTTSink].
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string

	// Topic receives one message per reading.
	Topic string

	// ClientID prefixes the MQTT client id; a random suffix keeps it unique.
	ClientID string

	// QoS is the publish quality of service, 0, 1 or 2.
	QoS byte

	// Retain marks messages as retained so new subscribers see the latest reading.
	Retain bool

	// ConnectTimeout bounds the initial connection. Zero uses 10s.
	ConnectTimeout time.Duration
}

// Validate checks the configuration.
func (c MQTTConfig) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt broker cannot be empty")
	}
	if c.Topic == "" {
		return errors.New("mqtt topic cannot be empty")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// publisher is the subset of [mqtt.Client] used by MQTTSink.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes readings as JSON to an MQTT topic.
type MQTTSink struct {
	client  publisher
	cfg     MQTTConfig
	address string
}

// NewMQTTSink connects to the broker and returns a sink publishing readings
// from the device at address.
func NewMQTTSink(ctx context.Context, cfg MQTTConfig, address string) (*MQTTSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "thermoboard"
	}
	clientID += "-" + uuid.NewString()[:8]

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	return newMQTTSink(client, cfg, address), nil
}

func newMQTTSink(client publisher, cfg MQTTConfig, address string) *MQTTSink {
	return &MQTTSink{client: client, cfg: cfg, address: address}
}

// Publish sends r and waits for the broker acknowledgement required by the
// configured QoS, or until ctx is done.
func (s *MQTTSink) Publish(ctx context.Context, r device.Reading) error {
	payload, err := encode(s.address, r)
	if err != nil {
		return fmt.Errorf("mqtt encode reading: %w", err)
	}

	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, s.cfg.Retain, payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", s.cfg.Topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
