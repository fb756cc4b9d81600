package store

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A queued State is
// replaced by a newer one, so one slot is enough.
const subscriberBuffer = 1

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps only the latest [State]. It starts in the loading state
// returned by [Initial].
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber has not yet read the previous state, that
// state is discarded and the new one queued in its place.
type MemoryStore struct {
	mu          sync.RWMutex
	state       State
	subscribers map[chan State]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:       Initial(),
		subscribers: make(map[chan State]struct{}),
	}
}

// Update stores state and notifies all subscribers.
//
// The store keeps its own copy; callers may reuse state afterwards.
func (m *MemoryStore) Update(state State) {
	stored := state.Clone()

	// notify under the state lock so subscribers see states in store order
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stored
	m.notifySubscribers(stored)
}

// Get returns a copy of the current state.
func (m *MemoryStore) Get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan State {
	ch := make(chan State, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan State) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends state to all active subscribers without blocking.
// A slow subscriber's queued state is replaced, never the new one dropped.
func (m *MemoryStore) notifySubscribers(state State) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		replaceQueued(ch, state.Clone())
	}
}

// replaceQueued puts state on ch, discarding whatever is still queued there.
func replaceQueued(ch chan State, state State) {
	for {
		select {
		case ch <- state:
			return
		default:
		}
		// stale; the subscriber may have read it meanwhile
		select {
		case <-ch:
		default:
		}
	}
}
