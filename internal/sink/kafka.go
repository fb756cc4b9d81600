package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jpalmerr/thermoboard/internal/device"
)

// KafkaConfig configures a [KafkaSink].
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Validate checks the configuration.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka brokers cannot be empty")
	}
	for i, b := range c.Brokers {
		if b == "" {
			return fmt.Errorf("kafka broker %d is empty", i)
		}
	}
	if c.Topic == "" {
		return errors.New("kafka topic cannot be empty")
	}
	return nil
}

// messageWriter is the subset of [kafka.Writer] used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes readings as JSON messages keyed by device address.
type KafkaSink struct {
	writer  messageWriter
	address string
}

// NewKafkaSink returns a sink writing to cfg.Topic. The writer connects
// lazily on the first publish.
func NewKafkaSink(cfg KafkaConfig, address string) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // partition by key (device address)
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return newKafkaSink(w, address), nil
}

func newKafkaSink(w messageWriter, address string) *KafkaSink {
	return &KafkaSink{writer: w, address: address}
}

// Publish writes one message for r.
func (s *KafkaSink) Publish(ctx context.Context, r device.Reading) error {
	value, err := encode(s.address, r)
	if err != nil {
		return fmt.Errorf("kafka encode reading: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(s.address),
		Value: value,
		Time:  r.Time(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
