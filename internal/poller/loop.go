package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/thermoboard/internal/device"
)

const (
	// DefaultInterval is the polling interval used when none is given.
	DefaultInterval = 5 * time.Second

	// DefaultCapacity is the history size used when none is given.
	DefaultCapacity = 20
)

// Fetcher produces one reading per call.
//
// [*device.Client] satisfies Fetcher. Tests substitute a [FetcherFunc].
type Fetcher interface {
	Fetch(ctx context.Context) (device.Reading, error)
}

// FetcherFunc adapts a function to the [Fetcher] interface.
type FetcherFunc func(ctx context.Context) (device.Reading, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) (device.Reading, error) {
	return f(ctx)
}

// Trigger names what started a fetch.
type Trigger string

const (
	TriggerStart   Trigger = "start"
	TriggerTick    Trigger = "tick"
	TriggerRefresh Trigger = "refresh"
)

// Update describes one settled fetch.
type Update struct {
	// Snapshot is the acquisition state after the fetch was applied.
	Snapshot Snapshot

	// Reading is the new reading on success, nil on failure.
	Reading *device.Reading

	// Err is the fetch error on failure, nil on success.
	Err error

	// Trigger is what started the fetch.
	Trigger Trigger

	// Latency is how long the fetch took.
	Latency time.Duration
}

// LoopOption configures a [Loop].
type LoopOption func(*Loop)

// WithSkipHandler registers fn to be called, on the loop goroutine, whenever
// a tick or refresh is skipped because a fetch is already in flight.
func WithSkipHandler(fn func(Trigger)) LoopOption {
	return func(l *Loop) {
		l.onSkip = fn
	}
}

// Loop polls a [Fetcher] on a fixed interval and maintains the acquisition
// state.
//
// Loop fetches immediately on start, then on every tick of a ticker running
// at the configured interval regardless of fetch duration, and whenever
// [Loop.Refresh] is called. Settled fetches are emitted on [Loop.Updates].
//
// All lifecycle methods are safe for concurrent use.
type Loop struct {
	fetcher  Fetcher
	interval time.Duration
	capacity int
	logger   *slog.Logger
	onSkip   func(Trigger)

	updates chan Update
	refresh chan chan bool
	done    chan struct{}

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	current   Snapshot
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// completion carries a fetch result back to the loop goroutine.
type completion struct {
	reading device.Reading
	err     error
	trigger Trigger
	latency time.Duration
}

// NewLoop creates a polling [Loop].
//
// Parameters:
//   - fetcher: source of readings
//   - interval: time between ticks; non-positive values use [DefaultInterval]
//   - capacity: history size; values below 1 are treated as 1
//   - logger: logger for loop events; nil uses slog.Default()
//
// The loop must be started with [Loop.Start] and stopped with [Loop.Stop] or
// by cancelling the context passed to Start.
func NewLoop(fetcher Fetcher, interval time.Duration, capacity int, logger *slog.Logger, opts ...LoopOption) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loop{
		fetcher:  fetcher,
		interval: interval,
		capacity: capacity,
		logger:   logger,
		updates:  make(chan Update, 1),
		refresh:  make(chan chan bool),
		done:     make(chan struct{}),
		current:  newAcquisition(capacity).snapshot(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Updates returns a receive-only channel of settled fetches.
//
// The channel is closed when the loop stops. Consumers should read until it
// is closed; the loop blocks on a full channel.
func (l *Loop) Updates() <-chan Update {
	return l.updates
}

// Interval returns the tick interval.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Capacity returns the history capacity.
func (l *Loop) Capacity() int {
	return l.capacity
}

// Snapshot returns a copy of the current acquisition state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copySnapshot(l.current)
}

// Start begins polling in a background goroutine.
//
// Start is non-blocking. It is idempotent; calls after the first are no-ops,
// and Start after Stop is a no-op. If ctx is nil, context.Background() is used.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go l.run(runCtx)
}

// Stop halts the loop and waits for the loop goroutine to exit.
//
// The ticker is stopped and the Updates channel is closed. A fetch still in
// flight is cancelled through its context; its result, if it arrives, is
// discarded. Stop is idempotent and safe to call before Start.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		if l.cancel != nil {
			l.cancel()
		}
	}
	l.mu.Unlock()

	l.wg.Wait()

	// ensure channel is closed even if Start() was never called
	l.closeOnce.Do(func() { close(l.updates) })
}

// Refresh requests an immediate fetch.
//
// Refresh reports whether a fetch was issued. It returns false when the loop
// is not running or when a fetch is already in flight.
func (l *Loop) Refresh() bool {
	l.mu.Lock()
	running := l.started && !l.stopped
	l.mu.Unlock()
	if !running {
		return false
	}

	reply := make(chan bool, 1)
	select {
	case l.refresh <- reply:
	case <-l.done:
		return false
	}

	select {
	case issued := <-reply:
		return issued
	case <-l.done:
		return false
	}
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer l.closeOnce.Do(func() { close(l.updates) })
	defer close(l.done)

	state := newAcquisition(l.capacity)
	completions := make(chan completion, 1)
	inFlight := false

	issue := func(trigger Trigger) bool {
		if inFlight {
			l.logger.Debug("fetch skipped, previous fetch still in flight", "trigger", string(trigger))
			if l.onSkip != nil {
				l.onSkip(trigger)
			}
			return false
		}
		inFlight = true
		go l.fetch(ctx, trigger, completions)
		return true
	}

	issue(TriggerStart)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			issue(TriggerTick)

		case reply := <-l.refresh:
			reply <- issue(TriggerRefresh)

		case c := <-completions:
			inFlight = false
			// a result that races with teardown is dropped
			if ctx.Err() != nil {
				return
			}

			update := l.apply(state, c)

			select {
			case l.updates <- update:
			case <-ctx.Done():
				return
			}
		}
	}
}

// fetch runs one fetch and hands the result to the loop goroutine.
func (l *Loop) fetch(ctx context.Context, trigger Trigger, out chan<- completion) {
	start := time.Now()
	reading, err := l.fetcher.Fetch(ctx)
	c := completion{
		reading: reading,
		err:     err,
		trigger: trigger,
		latency: time.Since(start),
	}

	// out has room for the single in-flight result, so this never blocks;
	// after teardown nobody reads it and it is garbage collected
	select {
	case out <- c:
	case <-ctx.Done():
	}
}

// apply settles a completion into state and records the new snapshot.
func (l *Loop) apply(state *acquisition, c completion) Update {
	now := time.Now()
	update := Update{
		Trigger: c.trigger,
		Latency: c.latency,
	}

	if c.err != nil {
		state.fail(c.err, now)
		update.Err = c.err
	} else {
		state.succeed(c.reading, now)
		reading := c.reading
		update.Reading = &reading
	}

	update.Snapshot = state.snapshot()

	l.mu.Lock()
	l.current = update.Snapshot
	l.mu.Unlock()

	return update
}
