// Package sink forwards new readings to external message brokers.
//
// A [Sink] receives every successful reading once. Sinks never influence the
// polling loop: a [Queue] publishes on its own goroutine, logs failures and
// drops readings when the brokers fall behind.
package sink

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jpalmerr/thermoboard/internal/device"
)

// Sink publishes readings to a downstream system.
type Sink interface {
	Publish(ctx context.Context, r device.Reading) error
	Close() error
}

// Message is the JSON document published for each reading.
type Message struct {
	Device      string  `json:"device"`
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
}

func encode(address string, r device.Reading) ([]byte, error) {
	return json.Marshal(Message{
		Device:      address,
		Temperature: r.Temperature,
		Timestamp:   r.Timestamp,
	})
}

// Multi publishes to every sink in order. Errors from individual sinks are
// joined; one failing sink does not stop the others.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, r device.Reading) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
