// Package metrics provides Prometheus instrumentation for the polling loop.
//
// Metrics exposed:
//   - thermoboard_fetches_total: Counter of fetch attempts by outcome
//   - thermoboard_fetch_duration_seconds: Histogram of fetch latency
//   - thermoboard_temperature_celsius: Gauge of the latest reading
//   - thermoboard_history_length: Gauge of readings currently retained
//   - thermoboard_last_success_timestamp_seconds: Gauge of the last successful fetch time
//   - thermoboard_sink_dropped_total: Counter of readings dropped by a full sink queue
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/thermoboard/internal/device"
	"github.com/jpalmerr/thermoboard/internal/poller"
)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeSuccess       = "success"
	OutcomeHTTPStatus    = "http_status"
	OutcomeNetwork       = "network"
	OutcomeMalformedBody = "malformed_body"
	OutcomeSkipped       = "skipped"
)

// Metrics holds the collectors for one polling loop.
//
// Boards sharing a registerer share these collectors; see [New].
type Metrics struct {
	FetchesTotal       *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	Temperature        prometheus.Gauge
	HistoryLength      prometheus.Gauge
	LastSuccessSeconds prometheus.Gauge
	SinkDropped        prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer.
//
// A collector already registered on reg with the same descriptor is reused,
// so calling New twice with one registerer is safe. Any other registration
// failure is returned.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error

	if m.FetchesTotal, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermoboard_fetches_total",
		Help: "Total number of temperature fetch attempts by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}

	if m.FetchDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "thermoboard_fetch_duration_seconds",
		Help:    "Duration of temperature fetches from the device",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}

	if m.Temperature, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thermoboard_temperature_celsius",
		Help: "Latest temperature reported by the device",
	})); err != nil {
		return nil, err
	}

	if m.HistoryLength, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thermoboard_history_length",
		Help: "Number of readings currently retained in history",
	})); err != nil {
		return nil, err
	}

	if m.LastSuccessSeconds, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "thermoboard_last_success_timestamp_seconds",
		Help: "Unix time of the last successful fetch",
	})); err != nil {
		return nil, err
	}

	if m.SinkDropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thermoboard_sink_dropped_total",
		Help: "Readings dropped because the sink queue was full",
	})); err != nil {
		return nil, err
	}

	// pre-create every outcome so series exist at zero
	for _, o := range []string{OutcomeSuccess, OutcomeHTTPStatus, OutcomeNetwork, OutcomeMalformedBody, OutcomeSkipped} {
		m.FetchesTotal.WithLabelValues(o)
	}
	return m, nil
}

// register registers c on reg, returning the collector already registered
// in its place if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("failed to register metrics: %w", err)
}

// Observe records one settled fetch.
func (m *Metrics) Observe(u poller.Update) {
	m.FetchesTotal.WithLabelValues(Outcome(u.Err)).Inc()
	m.FetchDuration.Observe(u.Latency.Seconds())
	m.HistoryLength.Set(float64(len(u.Snapshot.History)))

	if u.Err == nil && u.Reading != nil {
		m.Temperature.Set(u.Reading.Temperature)
		m.LastSuccessSeconds.Set(float64(u.Snapshot.UpdatedAt.UnixNano()) / 1e9)
	}
}

// RecordSinkDrop counts a reading dropped because the sinks fell behind.
func (m *Metrics) RecordSinkDrop() {
	m.SinkDropped.Inc()
}

// RecordSkip counts a tick or refresh skipped while a fetch was in flight.
func (m *Metrics) RecordSkip(poller.Trigger) {
	m.FetchesTotal.WithLabelValues(OutcomeSkipped).Inc()
}

// Outcome returns the outcome label for a fetch error.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var fe *device.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case device.KindHTTPStatus:
			return OutcomeHTTPStatus
		case device.KindMalformedBody:
			return OutcomeMalformedBody
		}
	}
	return OutcomeNetwork
}
