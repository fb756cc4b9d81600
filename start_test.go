package thermoboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ts := deviceServer(t, 21.5)

	// use a high port to avoid conflicts
	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19001),
		WithPollingInterval(100*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		close(started)
		done <- b.Start(ctx)
	}()

	<-started
	time.Sleep(50 * time.Millisecond)

	// verify Start is still blocking (channel should be empty)
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

// TestStart_ReturnsImmediatelyIfContextAlreadyCancelled verifies that Start
// returns immediately if the context is already cancelled.
func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	ts := deviceServer(t, 21.5)

	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19002),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

// TestStart_ServesState verifies the dashboard API reflects fetched readings.
func TestStart_ServesState(t *testing.T) {
	ts := deviceServer(t, 22.25)

	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19003),
		WithPollingInterval(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/state", b.Port())
	deadline := time.Now().Add(3 * time.Second)
	for {
		var state struct {
			Latest *struct {
				Temperature float64 `json:"temperature"`
			} `json:"latest"`
			IsLoading bool `json:"is_loading"`
		}

		resp, err := http.Get(url)
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&state)
			_ = resp.Body.Close()
			if decodeErr == nil && state.Latest != nil {
				if state.Latest.Temperature != 22.25 {
					t.Errorf("latest temperature = %v, want 22.25", state.Latest.Temperature)
				}
				if state.IsLoading {
					t.Error("is_loading should be false once a reading arrived")
				}
				return
			}
		}

		if time.Now().After(deadline) {
			t.Fatal("dashboard never reported a reading")
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// TestStart_AlreadyRunning verifies that a Board cannot run twice at once.
func TestStart_AlreadyRunning(t *testing.T) {
	ts := deviceServer(t, 21.5)

	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19004),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := b.Start(context.Background()); err == nil {
		t.Error("second Start() expected error, got nil")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}
}

// TestStart_MultipleSequentialRuns verifies that a Board can be started again
// after the previous run shuts down.
func TestStart_MultipleSequentialRuns(t *testing.T) {
	ts := deviceServer(t, 21.5)

	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19005),
		WithPollingInterval(100*time.Millisecond),
	)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- b.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("iteration %d: Start() returned error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Start() did not return", i)
		}

		// the shutdown goroutine releases the port asynchronously
		time.Sleep(100 * time.Millisecond)
	}
}

// TestStart_ConcurrentAccess verifies accessors and Refresh are safe while
// the Board runs.
func TestStart_ConcurrentAccess(t *testing.T) {
	ts := deviceServer(t, 21.5)

	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19010),
		WithPollingInterval(100*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Refresh()
			_ = b.Port()
			_ = b.PollingInterval()
			_ = b.HistorySize()
			_ = b.URL()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutines did not complete")
	}

	if b.Refresh() {
		t.Error("Refresh() after shutdown should return false")
	}
}

// TestStart_WithTimeoutContext verifies Start respects deadline contexts.
func TestStart_WithTimeoutContext(t *testing.T) {
	ts := deviceServer(t, 21.5)

	b := newTestBoard(t,
		WithAddress(ts.URL),
		WithPort(19011),
		WithPollingInterval(100*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Start(ctx)
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond || elapsed > 1500*time.Millisecond {
		t.Errorf("Start() ran for %v, expected ~200ms", elapsed)
	}
	if err != nil {
		t.Errorf("Start() error = %v", err)
	}
}

// TestStart_PortInUse verifies Start reports a bind failure.
func TestStart_PortInUse(t *testing.T) {
	ts := deviceServer(t, 21.5)

	first := newTestBoard(t, WithAddress(ts.URL), WithPort(19012))
	second := newTestBoard(t, WithAddress(ts.URL), WithPort(19012))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- first.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	time.Sleep(100 * time.Millisecond)

	errCtx, errCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer errCancel()
	if err := second.Start(errCtx); err == nil {
		t.Error("Start() on a used port expected error, got nil")
	}
}
