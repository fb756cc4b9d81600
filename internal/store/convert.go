package store

import (
	"errors"

	"github.com/jpalmerr/thermoboard/internal/device"
	"github.com/jpalmerr/thermoboard/internal/poller"
)

// FromSnapshot converts a polling loop snapshot to a [State].
func FromSnapshot(s poller.Snapshot) State {
	state := State{
		History:   make([]Reading, len(s.History)),
		IsLoading: s.IsLoading,
		UpdatedAt: s.UpdatedAt,
		LastError: ErrorInfoFrom(s.LastError),
	}
	for i, r := range s.History {
		state.History[i] = FromReading(r)
	}
	if s.Latest != nil {
		latest := FromReading(*s.Latest)
		state.Latest = &latest
	}
	return state
}

// FromReading converts a device reading to a storage [Reading].
func FromReading(r device.Reading) Reading {
	return Reading{Temperature: r.Temperature, Timestamp: r.Timestamp}
}

// ErrorInfoFrom describes err for publication. It returns nil for a nil error.
// Errors that are not a [*device.FetchError] are reported as network errors.
func ErrorInfoFrom(err error) *ErrorInfo {
	if err == nil {
		return nil
	}

	info := &ErrorInfo{
		Kind:    device.KindNetwork.String(),
		Message: err.Error(),
	}

	var fe *device.FetchError
	if errors.As(err, &fe) {
		info.Kind = fe.Kind.String()
		info.StatusCode = fe.StatusCode
	}
	return info
}
