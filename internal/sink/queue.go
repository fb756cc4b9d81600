package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/thermoboard/internal/device"
)

const (
	// DefaultQueueSize is the number of readings a Queue holds when none is given.
	DefaultQueueSize = 8

	// DefaultPublishTimeout bounds one publish when no timeout is given.
	DefaultPublishTimeout = 5 * time.Second
)

// QueueConfig configures a [Queue].
type QueueConfig struct {
	// Size is the number of readings waiting to be published. Values below 1
	// use DefaultQueueSize.
	Size int

	// Timeout bounds each publish. Non-positive values use
	// DefaultPublishTimeout.
	Timeout time.Duration

	// Logger receives publish failures and drops. Nil uses slog.Default().
	Logger *slog.Logger

	// OnDrop is called for every reading dropped because the queue was full.
	OnDrop func(device.Reading)
}

// Queue publishes readings to a [Sink] on its own goroutine.
//
// Enqueue never blocks. When the queue is full the reading is dropped and
// logged. Close stops accepting readings, waits for the worker to finish, and
// closes the underlying sink.
type Queue struct {
	out     Sink
	timeout time.Duration
	logger  *slog.Logger
	onDrop  func(device.Reading)

	readings chan device.Reading
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a worker that publishes queued readings to out until
// [Queue.Close] is called. Readings still queued once ctx is done are
// discarded without being published.
func NewQueue(ctx context.Context, out Sink, cfg QueueConfig) *Queue {
	if cfg.Size < 1 {
		cfg.Size = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	q := &Queue{
		out:      out,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		onDrop:   cfg.OnDrop,
		readings: make(chan device.Reading, cfg.Size),
		done:     make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

// Enqueue hands r to the worker. It reports false when r was dropped because
// the queue is full or closed.
func (q *Queue) Enqueue(r device.Reading) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.readings <- r:
		return true
	default:
	}

	q.logger.Warn("sink queue full, dropping reading",
		"temperature", r.Temperature,
		"timestamp", r.Timestamp,
	)
	if q.onDrop != nil {
		q.onDrop(r)
	}
	return false
}

// Close stops the worker and closes the underlying sink. It is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.readings)
	q.mu.Unlock()

	<-q.done
	return q.out.Close()
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	discarded := 0
	for r := range q.readings {
		if ctx.Err() != nil {
			discarded++
			continue
		}
		q.publish(ctx, r)
	}

	if discarded > 0 {
		q.logger.Debug("discarded queued readings on shutdown", "count", discarded)
	}
}

func (q *Queue) publish(ctx context.Context, r device.Reading) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.out.Publish(ctx, r); err != nil {
		q.logger.Warn("failed to publish reading", "error", err.Error())
	}
}
