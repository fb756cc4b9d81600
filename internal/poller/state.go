package poller

import (
	"time"

	"github.com/jpalmerr/thermoboard/internal/device"
	"github.com/jpalmerr/thermoboard/internal/history"
)

// Snapshot is a read-only view of the acquisition state.
type Snapshot struct {
	// History holds the retained readings, oldest first.
	History []device.Reading

	// Latest is the most recent successful reading, nil before the first one.
	Latest *device.Reading

	// IsLoading is true until the first fetch attempt settles.
	IsLoading bool

	// LastError is the error of the most recent attempt, nil after a success.
	LastError error

	// UpdatedAt is when the most recent attempt settled. Zero while loading.
	UpdatedAt time.Time
}

// acquisition is the mutable state behind a Loop. It is only touched from
// the loop goroutine.
type acquisition struct {
	history   *history.Buffer
	loading   bool
	lastErr   error
	updatedAt time.Time
}

func newAcquisition(capacity int) *acquisition {
	return &acquisition{
		history: history.NewBuffer(capacity),
		loading: true,
	}
}

// succeed applies a successful fetch.
func (a *acquisition) succeed(r device.Reading, at time.Time) {
	a.lastErr = nil
	a.history.Push(r)
	a.loading = false
	a.updatedAt = at
}

// fail applies a failed fetch. Latest and history keep their stale values.
func (a *acquisition) fail(err error, at time.Time) {
	a.lastErr = err
	a.loading = false
	a.updatedAt = at
}

func (a *acquisition) snapshot() Snapshot {
	s := Snapshot{
		History:   a.history.Readings(),
		IsLoading: a.loading,
		LastError: a.lastErr,
		UpdatedAt: a.updatedAt,
	}
	// the newest history entry is always the last success
	if latest, ok := a.history.Latest(); ok {
		s.Latest = &latest
	}
	return s
}

// copySnapshot returns s with its own History slice and Latest value.
func copySnapshot(s Snapshot) Snapshot {
	out := s
	out.History = append([]device.Reading(nil), s.History...)
	if out.History == nil {
		out.History = []device.Reading{}
	}
	if s.Latest != nil {
		latest := *s.Latest
		out.Latest = &latest
	}
	return out
}
