package thermoboard

import (
	"time"

	"github.com/jpalmerr/thermoboard/internal/device"
	"github.com/jpalmerr/thermoboard/internal/poller"
	"github.com/jpalmerr/thermoboard/internal/sink"
)

// Reading is one temperature sample reported by the device.
type Reading struct {
	// Temperature is in degrees Celsius.
	Temperature float64

	// Timestamp is milliseconds since the Unix epoch. When the device omits
	// it, the time the response was received is used.
	Timestamp int64
}

// Time returns Timestamp as a [time.Time].
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Snapshot is the acquisition state after a fetch settled.
//
// Snapshot is a copy; callbacks may keep and modify it freely.
type Snapshot struct {
	// History holds the most recent successful readings, oldest first, at
	// most the configured history size.
	History []Reading

	// Latest is the most recent successful reading, nil before the first one.
	// A failed fetch leaves it unchanged.
	Latest *Reading

	// IsLoading is true until the first fetch attempt settles.
	IsLoading bool

	// LastError is the error of the most recent attempt, nil after a success.
	// It is a *FetchError for every failure reported by the device client.
	LastError error

	// UpdatedAt is when the most recent attempt settled.
	UpdatedAt time.Time
}

// FetchError describes a failed fetch. Use errors.As to inspect it.
type FetchError = device.FetchError

// ErrorKind classifies a [FetchError].
type ErrorKind = device.ErrorKind

const (
	// KindHTTPStatus means the device answered with a non-2xx status code.
	KindHTTPStatus = device.KindHTTPStatus

	// KindNetwork means the request failed before a usable response arrived.
	KindNetwork = device.KindNetwork

	// KindMalformedBody means the response was not a reading.
	KindMalformedBody = device.KindMalformedBody
)

// MQTTConfig configures the sink enabled by [WithMQTTSink].
type MQTTConfig = sink.MQTTConfig

// KafkaConfig configures the sink enabled by [WithKafkaSink].
type KafkaConfig = sink.KafkaConfig

func readingFrom(r device.Reading) Reading {
	return Reading{Temperature: r.Temperature, Timestamp: r.Timestamp}
}

// snapshotFrom converts the loop's snapshot to the public type, copying
// every mutable field.
func snapshotFrom(s poller.Snapshot) Snapshot {
	out := Snapshot{
		History:   make([]Reading, len(s.History)),
		IsLoading: s.IsLoading,
		LastError: s.LastError,
		UpdatedAt: s.UpdatedAt,
	}
	for i, r := range s.History {
		out.History[i] = readingFrom(r)
	}
	if s.Latest != nil {
		latest := readingFrom(*s.Latest)
		out.Latest = &latest
	}
	return out
}
