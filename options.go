package thermoboard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/thermoboard/internal/poller"
	"github.com/jpalmerr/thermoboard/internal/sink"
)

const (
	minPollingInterval = 100 * time.Millisecond
	maxHistorySize     = 10000
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title           string
	address         string
	pollingInterval time.Duration
	historySize     int
	port            int
	location        *time.Location
	logger          *slog.Logger
	callbacks       []func(Snapshot)
	mqtt            *sink.MQTTConfig
	kafka           *sink.KafkaConfig
	registerer      prometheus.Registerer

	// set by tests in this package
	fetcher poller.Fetcher
	sinks   []sink.Sink
}

// Option is a function that configures a [Board] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithAddress sets the device address to poll.
//
// The address is a host or host:port, optionally with an http:// or https://
// scheme. The Board polls http://<address>/api/temperature. Required.
//
// Example:
//
//	b, err := thermoboard.New(
//	    thermoboard.WithAddress("172.20.10.2"),
//	)
func WithAddress(address string) Option {
	return func(cfg *boardConfig) error {
		address = strings.TrimSpace(address)
		if address == "" {
			return errors.New("device address cannot be empty")
		}
		cfg.address = address
		return nil
	}
}

// WithPollingInterval sets the time between scheduled fetches.
//
// Ticks run at this fixed rate regardless of how long a fetch takes; a tick
// that lands while a fetch is still in flight is skipped. Defaults to 5
// seconds.
//
// Returns an error if the duration is below 100ms.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d < minPollingInterval {
			return fmt.Errorf("polling interval must be at least %s, got %s", minPollingInterval, d)
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithHistorySize sets how many readings the history retains.
//
// Defaults to 20. Returns an error if n is outside 1-10000.
func WithHistorySize(n int) Option {
	return func(cfg *boardConfig) error {
		if n < 1 || n > maxHistorySize {
			return fmt.Errorf("history size must be between 1 and %d, got %d", maxHistorySize, n)
		}
		cfg.historySize = n
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 8080. Returns an error if the port is outside the valid range
// (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard heading.
//
// If not specified or blank, defaults to "Temperature Monitoring System".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		if strings.TrimSpace(title) == "" {
			return nil
		}
		cfg.title = title
		return nil
	}
}

// WithLocation sets the time zone used to format reading times on the
// dashboards. Defaults to the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(cfg *boardConfig) error {
		if loc == nil {
			return errors.New("location cannot be nil")
		}
		cfg.location = loc
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board.
//
// If not specified, [slog.Default] is used. Returns an error if the logger is
// nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSnapshotCallback registers a function to be called after every settled
// fetch.
//
// The callback receives the [Snapshot] published for that fetch. Callbacks
// run after the dashboards have been updated, in registration order, from a
// single goroutine. They must be non-blocking; a slow callback delays the
// next update.
//
// Panics within callbacks are recovered and logged with a correlation ID.
//
// Example:
//
//	b, err := thermoboard.New(
//	    thermoboard.WithAddress("172.20.10.2"),
//	    thermoboard.WithSnapshotCallback(func(s thermoboard.Snapshot) {
//	        if s.Latest != nil && s.Latest.Temperature > 80 {
//	            log.Printf("ALERT: %.2f°C", s.Latest.Temperature)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithMQTTSink publishes every new reading to an MQTT broker.
//
// The broker is connected when the Board starts; a connection failure makes
// Start return an error. Publish failures are logged and never affect polling.
func WithMQTTSink(c MQTTConfig) Option {
	return func(cfg *boardConfig) error {
		mc := c
		if err := mc.Validate(); err != nil {
			return err
		}
		cfg.mqtt = &mc
		return nil
	}
}

// WithKafkaSink publishes every new reading to a Kafka topic, keyed by the
// device address.
func WithKafkaSink(c KafkaConfig) Option {
	return func(cfg *boardConfig) error {
		kc := c
		if err := kc.Validate(); err != nil {
			return err
		}
		cfg.kafka = &kc
		return nil
	}
}

// WithRegisterer registers the Board's Prometheus metrics with reg.
//
// If reg also implements [prometheus.Gatherer] (as *prometheus.Registry does),
// the dashboard serves it at /metrics. By default the Board uses a private
// registry with Go runtime and process collectors.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(cfg *boardConfig) error {
		if reg == nil {
			return errors.New("registerer cannot be nil")
		}
		cfg.registerer = reg
		return nil
	}
}
