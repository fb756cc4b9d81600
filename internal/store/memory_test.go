package store

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start in the loading state
	got := store.Get()
	if !got.IsLoading {
		t.Error("Get().IsLoading = false, want true")
	}
	if got.Latest != nil || got.LastError != nil {
		t.Errorf("Get() = %+v, want empty loading state", got)
	}
	if got.History == nil || len(got.History) != 0 {
		t.Errorf("Get().History = %v, want empty non-nil slice", got.History)
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()

	latest := Reading{Temperature: 21.5, Timestamp: 2000}
	store.Update(State{
		History:   []Reading{{Temperature: 20, Timestamp: 1000}, latest},
		Latest:    &latest,
		UpdatedAt: time.Now(),
	})

	got := store.Get()
	if got.IsLoading {
		t.Error("Get().IsLoading = true, want false")
	}
	if len(got.History) != 2 {
		t.Fatalf("len(Get().History) = %d, want 2", len(got.History))
	}
	if got.Latest == nil || got.Latest.Temperature != 21.5 {
		t.Errorf("Get().Latest = %v, want 21.5", got.Latest)
	}
}

func TestMemoryStore_UpdateReplaces(t *testing.T) {
	store := NewMemoryStore()

	store.Update(State{History: []Reading{{Temperature: 20}}})
	store.Update(State{
		History:   []Reading{{Temperature: 20}},
		LastError: &ErrorInfo{Kind: "network", Message: "device unreachable"},
	})

	got := store.Get()
	if got.LastError == nil || got.LastError.Kind != "network" {
		t.Errorf("Get().LastError = %v, want network error", got.LastError)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()

	latest := Reading{Temperature: 20}
	input := State{History: []Reading{latest}, Latest: &latest}
	store.Update(input)

	// mutating the caller's value must not reach the store
	input.History[0].Temperature = 99
	latest.Temperature = 99

	got := store.Get()
	got.History[0].Temperature = 77
	got.Latest.Temperature = 77

	again := store.Get()
	if again.History[0].Temperature != 20 {
		t.Errorf("History[0].Temperature = %v, want 20", again.History[0].Temperature)
	}
	if again.Latest.Temperature != 20 {
		t.Errorf("Latest.Temperature = %v, want 20", again.Latest.Temperature)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(State{History: []Reading{{Temperature: 23}}})
	}()

	select {
	case state := <-ch:
		if len(state.History) != 1 || state.History[0].Temperature != 23 {
			t.Errorf("received History = %v, want [23]", state.History)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	// update should fanout to all subscribers
	go func() {
		store.Update(State{})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_SubscribersGetIndependentCopies(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	store.Update(State{History: []Reading{{Temperature: 20}}})

	s1 := <-ch1
	s1.History[0].Temperature = 99
	s2 := <-ch2

	if s2.History[0].Temperature != 20 {
		t.Errorf("second subscriber saw %v, want 20", s2.History[0].Temperature)
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)

	// channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_UnsubscribeStopsDelivery(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()

	store.Unsubscribe(ch1)

	go func() {
		store.Update(State{})
	}()

	select {
	case <-ch2:
		// expected
	case <-time.After(1 * time.Second):
		t.Error("ch2 should still receive updates")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// a subscriber that never reads
	ch := store.Subscribe()

	done := make(chan bool)

	go func() {
		for i := 0; i < 200; i++ {
			store.Update(State{History: []Reading{{Temperature: float64(i)}}})
		}
		done <- true
	}()

	select {
	case <-done:
		// expected - updates completed without blocking
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}

	// the store itself always holds the newest state
	if got := store.Get().History[0].Temperature; got != 199 {
		t.Errorf("Get().History[0] = %v, want 199", got)
	}

	// the lagging subscriber is handed the newest state, not the first queued
	select {
	case state := <-ch:
		if got := state.History[0].Temperature; got != 199 {
			t.Errorf("slow subscriber received %v, want 199", got)
		}
	default:
		t.Fatal("slow subscriber has no queued state")
	}
	select {
	case state := <-ch:
		t.Errorf("slow subscriber has a second queued state %v", state.History)
	default:
	}
}

func TestMemoryStore_SubscriberSeesNewestAfterLag(t *testing.T) {
	store := NewMemoryStore()
	ch := store.Subscribe()

	store.Update(State{History: []Reading{{Temperature: 1}}})
	first := <-ch
	if first.History[0].Temperature != 1 {
		t.Fatalf("first state = %v, want 1", first.History[0].Temperature)
	}

	store.Update(State{History: []Reading{{Temperature: 2}}})
	store.Update(State{History: []Reading{{Temperature: 3}}})

	got := <-ch
	if got.History[0].Temperature != 3 {
		t.Errorf("after lagging, received %v, want 3", got.History[0].Temperature)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(State{History: []Reading{{Temperature: float64(id)}}})
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.Get()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
