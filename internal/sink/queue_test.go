package sink

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/thermoboard/internal/device"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// orderedSink records readings under a lock.
type orderedSink struct {
	mu       sync.Mutex
	readings []device.Reading
	closed   bool
}

func (s *orderedSink) Publish(ctx context.Context, r device.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return nil
}

func (s *orderedSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// stallingSink blocks every publish until its context is done.
type stallingSink struct {
	started chan struct{}
	once    sync.Once
	closed  bool
}

func (s *stallingSink) Publish(ctx context.Context, r device.Reading) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return ctx.Err()
}

func (s *stallingSink) Close() error {
	s.closed = true
	return nil
}

func TestQueue_PublishesInOrder(t *testing.T) {
	out := &orderedSink{}
	q := NewQueue(context.Background(), out, QueueConfig{Logger: testLogger()})

	for i := 0; i < 5; i++ {
		if !q.Enqueue(device.Reading{Temperature: float64(i)}) {
			t.Fatalf("Enqueue(%d) = false, want true", i)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.readings) != 5 {
		t.Fatalf("published %d readings, want 5", len(out.readings))
	}
	for i, r := range out.readings {
		if r.Temperature != float64(i) {
			t.Errorf("readings[%d] = %v, want %d", i, r.Temperature, i)
		}
	}
	if !out.closed {
		t.Error("Close() did not close the sink")
	}
}

func TestQueue_FullQueueDropsWithoutBlocking(t *testing.T) {
	out := &stallingSink{started: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dropped []device.Reading
	q := NewQueue(ctx, out, QueueConfig{
		Size:    1,
		Timeout: time.Minute,
		Logger:  testLogger(),
		OnDrop:  func(r device.Reading) { dropped = append(dropped, r) },
	})

	// the worker takes the first reading and stalls on it
	q.Enqueue(device.Reading{Temperature: 1})
	select {
	case <-out.started:
	case <-time.After(time.Second):
		t.Fatal("worker never started publishing")
	}

	if !q.Enqueue(device.Reading{Temperature: 2}) {
		t.Error("Enqueue() into a free slot = false, want true")
	}

	start := time.Now()
	if q.Enqueue(device.Reading{Temperature: 3}) {
		t.Error("Enqueue() into a full queue = true, want false")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Enqueue() blocked for %v", elapsed)
	}
	if len(dropped) != 1 || dropped[0].Temperature != 3 {
		t.Errorf("dropped = %+v, want the third reading", dropped)
	}

	// cancelling releases the stalled publish; the queued reading is discarded
	cancel()
	done := make(chan error, 1)
	go func() { done <- q.Close() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close() did not return after cancellation")
	}
	if !out.closed {
		t.Error("Close() did not close the sink")
	}
}

func TestQueue_TimeoutBoundsPublish(t *testing.T) {
	out := &stallingSink{started: make(chan struct{})}
	q := NewQueue(context.Background(), out, QueueConfig{
		Timeout: 50 * time.Millisecond,
		Logger:  testLogger(),
	})

	q.Enqueue(device.Reading{Temperature: 1})

	done := make(chan error, 1)
	go func() { done <- q.Close() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish was not bounded by the timeout")
	}
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := NewQueue(context.Background(), &orderedSink{}, QueueConfig{Logger: testLogger()})
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if q.Enqueue(testReading) {
		t.Error("Enqueue() after Close = true, want false")
	}
	// second close is a no-op
	if err := q.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
