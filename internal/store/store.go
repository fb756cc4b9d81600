package store

import "time"

// Reading is the storage representation of a single temperature reading.
type Reading struct {
	// Temperature is the reading in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Timestamp is the reading time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the reading timestamp as a [time.Time].
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// ErrorInfo describes the most recent failed fetch.
type ErrorInfo struct {
	// Kind is one of "http_status", "network" or "malformed_body".
	Kind string `json:"kind"`

	// StatusCode is the HTTP status for "http_status" errors, 0 otherwise.
	StatusCode int `json:"status_code,omitempty"`

	// Message is the error text.
	Message string `json:"message"`
}

// State is the acquisition state as published to the API, SSE, WebSocket and
// terminal frontends.
//
// State is decoupled from the poller's internal types so the wire format can
// evolve independently. Every State is complete; a newer one supersedes any
// older one.
type State struct {
	// History holds the retained readings, oldest first.
	History []Reading `json:"history"`

	// Latest is the most recent successful reading, nil before the first one.
	Latest *Reading `json:"latest"`

	// IsLoading is true until the first fetch attempt resolves.
	IsLoading bool `json:"is_loading"`

	// LastError describes the last failed fetch; nil after a success.
	LastError *ErrorInfo `json:"last_error"`

	// UpdatedAt is when the state last changed. Zero before the first fetch.
	UpdatedAt time.Time `json:"updated_at"`
}

// Initial returns the state before any fetch attempt has resolved.
func Initial() State {
	return State{
		History:   []Reading{},
		IsLoading: true,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.History = make([]Reading, len(s.History))
	copy(out.History, s.History)
	if s.Latest != nil {
		latest := *s.Latest
		out.Latest = &latest
	}
	if s.LastError != nil {
		info := *s.LastError
		out.LastError = &info
	}
	return out
}

// Store defines the interface for storing and subscribing to state updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events or the terminal UI).
type Store interface {
	// Update replaces the stored state and notifies all subscribers.
	Update(state State)

	// Get returns the current state.
	// The returned value is a copy; modifications do not affect the store.
	Get() State

	// Subscribe returns a channel that receives state updates.
	// The returned channel holds the newest unread state; slow consumers skip
	// intermediate states but never see an older one after a newer one.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan State

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan State)
}
