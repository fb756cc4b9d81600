package thermoboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jpalmerr/thermoboard/dashboard"
	"github.com/jpalmerr/thermoboard/internal/device"
	"github.com/jpalmerr/thermoboard/internal/metrics"
	"github.com/jpalmerr/thermoboard/internal/poller"
	"github.com/jpalmerr/thermoboard/internal/server"
	"github.com/jpalmerr/thermoboard/internal/sink"
	"github.com/jpalmerr/thermoboard/internal/store"
	"github.com/jpalmerr/thermoboard/internal/tui"
	"github.com/jpalmerr/thermoboard/internal/view"
)

const (
	defaultPort  = 8080
	defaultTitle = view.DefaultTitle

	// sinkTimeout bounds one publish of a reading to all sinks.
	sinkTimeout = 5 * time.Second

	// sinkQueueSize is how many readings may wait for slow sinks before new
	// ones are dropped.
	sinkQueueSize = 8
)

// Board is the orchestrator for device polling and the dashboards.
//
// Board owns the polling loop, the published state, and the optional reading
// sinks. It is created using [New] with functional options and run with
// [Board.Start] (web dashboard) or [Board.Watch] (terminal dashboard).
//
// The typical lifecycle is:
//
//	b, err := thermoboard.New(thermoboard.WithAddress("172.20.10.2"))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown. A Board runs at most once at a time.
type Board struct {
	title           string
	address         string
	url             string
	pollingInterval time.Duration
	historySize     int
	port            int
	location        *time.Location
	logger          *slog.Logger
	callbacks       []func(Snapshot)

	fetcher  poller.Fetcher
	client   *device.Client
	mqtt     *sink.MQTTConfig
	kafka    *sink.KafkaConfig
	sinks    []sink.Sink
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	mu      sync.Mutex
	running bool
	loop    *poller.Loop
}

// New creates a new [Board] with the given options.
//
// A device address must be configured via [WithAddress]. Other options have
// sensible defaults:
//   - Polling interval: 5 seconds
//   - History size: 20 readings
//   - Port: 8080
//   - Title: "Temperature Monitoring System"
//
// Returns an error if no address is configured or if any option is invalid.
//
// Example:
//
//	b, err := thermoboard.New(
//	    thermoboard.WithAddress("172.20.10.2"),
//	    thermoboard.WithPollingInterval(2 * time.Second),
//	    thermoboard.WithHistorySize(60),
//	)
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		pollingInterval: poller.DefaultInterval,
		historySize:     poller.DefaultCapacity,
		port:            defaultPort,
		title:           defaultTitle,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.address == "" {
		return nil, errors.New("device address is required")
	}

	endpoint, err := device.EndpointURL(cfg.address)
	if err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Board{
		title:           cfg.title,
		address:         cfg.address,
		url:             endpoint,
		pollingInterval: cfg.pollingInterval,
		historySize:     cfg.historySize,
		port:            cfg.port,
		location:        cfg.location,
		logger:          logger,
		callbacks:       cfg.callbacks,
		fetcher:         cfg.fetcher,
		mqtt:            cfg.mqtt,
		kafka:           cfg.kafka,
		sinks:           cfg.sinks,
	}

	if b.fetcher == nil {
		b.client = device.NewClient(endpoint, device.WithLogger(logger))
		b.fetcher = b.client
	}

	registerer := cfg.registerer
	if registerer == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = reg
	}
	if g, ok := registerer.(prometheus.Gatherer); ok {
		b.gatherer = g
	}
	m, err := metrics.New(registerer)
	if err != nil {
		return nil, err
	}
	b.metrics = m

	return b, nil
}

// Start begins polling the device and serving the web dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The device is polled immediately, then at the configured interval
//   - The HTTP server starts on the configured port
//   - Failed fetches are logged at WARN, successful ones at DEBUG
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if a sink cannot be
// opened or the HTTP server fails to start.
func (b *Board) Start(ctx context.Context) error {
	return b.run(ctx, func(ctx context.Context, st store.Store, loop *poller.Loop) error {
		srv := server.NewServer(st, loop, server.Config{
			Port:     b.port,
			Title:    b.title,
			Address:  b.address,
			Assets:   dashboard.Assets,
			Gatherer: b.gatherer,
			Location: b.location,
			Logger:   b.logger,
		})
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

		<-ctx.Done()
		return nil
	})
}

// Watch begins polling the device and runs the terminal dashboard.
//
// Watch blocks until the user quits or the context is cancelled. Log output
// written to the terminal while Watch runs will corrupt the display; callers
// should point the Board's logger elsewhere.
func (b *Board) Watch(ctx context.Context) error {
	return b.run(ctx, func(ctx context.Context, st store.Store, loop *poller.Loop) error {
		return tui.Run(ctx, st, loop, b.viewOptions())
	})
}

// Refresh requests an immediate fetch outside the polling schedule.
//
// Refresh reports whether a fetch was issued. It returns false when the Board
// is not running or when a fetch is already in flight.
func (b *Board) Refresh() bool {
	b.mu.Lock()
	loop := b.loop
	b.mu.Unlock()

	if loop == nil {
		return false
	}
	return loop.Refresh()
}

// frontend presents the published state until ctx is done or it chooses to
// return.
type frontend func(ctx context.Context, st store.Store, loop *poller.Loop) error

func (b *Board) run(ctx context.Context, present frontend) error {
	b.logger.Info("thermoboard starting", "device", b.address, "url", b.url)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("board is already running")
	}
	b.running = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.loop = nil
		b.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out, err := b.openSinks(runCtx)
	if err != nil {
		return err
	}

	// handleUpdate only enqueues; the queue's worker talks to the brokers
	var queue *sink.Queue
	if out != nil {
		queue = sink.NewQueue(runCtx, out, sink.QueueConfig{
			Size:    sinkQueueSize,
			Timeout: sinkTimeout,
			Logger:  b.logger,
			OnDrop:  func(device.Reading) { b.metrics.RecordSinkDrop() },
		})
	}

	st := store.NewMemoryStore()
	loop := poller.NewLoop(b.fetcher, b.pollingInterval, b.historySize, b.logger,
		poller.WithSkipHandler(b.metrics.RecordSkip),
	)
	b.logger.Info("polling configured",
		"interval", loop.Interval().String(),
		"history_size", loop.Capacity(),
	)

	b.mu.Lock()
	b.loop = loop
	b.mu.Unlock()

	loop.Start(runCtx)

	// track the updates consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range loop.Updates() {
			b.handleUpdate(st, queue, u)
		}
	}()

	presentErr := present(runCtx, st, loop)

	cancel()
	loop.Stop() // closes updates channel
	wg.Wait()   // wait for all updates to be processed

	if queue != nil {
		if err := queue.Close(); err != nil {
			b.logger.Warn("failed to close sinks", "error", err.Error())
		}
	}
	b.client.Close()

	b.logger.Info("thermoboard stopped")
	return presentErr
}

// handleUpdate publishes one settled fetch: store first, then metrics, sinks
// and callbacks. Sink delivery is only queued here; it never blocks.
func (b *Board) handleUpdate(st store.Store, queue *sink.Queue, u poller.Update) {
	st.Update(store.FromSnapshot(u.Snapshot))
	b.metrics.Observe(u)

	logAttrs := []any{
		"trigger", string(u.Trigger),
		"latency_ms", u.Latency.Milliseconds(),
		"history_length", len(u.Snapshot.History),
	}
	if u.Err != nil {
		b.logger.Warn("fetch completed with error", append(logAttrs, "error", u.Err.Error())...)
	} else {
		b.logger.Debug("fetch completed", append(logAttrs, "temperature", u.Reading.Temperature)...)
	}

	if u.Reading != nil && queue != nil {
		queue.Enqueue(*u.Reading)
	}

	// each callback gets its own copy
	for _, cb := range b.callbacks {
		invokeCallbackSafe(cb, snapshotFrom(u.Snapshot), b.logger)
	}
}

// openSinks connects the configured sinks. It returns nil when none are
// configured.
func (b *Board) openSinks(ctx context.Context) (sink.Sink, error) {
	var out sink.Multi
	out = append(out, b.sinks...)

	if b.mqtt != nil {
		s, err := sink.NewMQTTSink(ctx, *b.mqtt, b.address)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("failed to open MQTT sink: %w", err)
		}
		b.logger.Info("mqtt sink enabled", "broker", b.mqtt.Broker, "topic", b.mqtt.Topic)
		out = append(out, s)
	}

	if b.kafka != nil {
		s, err := sink.NewKafkaSink(*b.kafka, b.address)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("failed to open Kafka sink: %w", err)
		}
		b.logger.Info("kafka sink enabled", "brokers", b.kafka.Brokers, "topic", b.kafka.Topic)
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (b *Board) viewOptions() view.Options {
	return view.Options{
		Title:    b.title,
		Address:  b.address,
		Location: b.location,
	}
}

// Address returns the configured device address.
func (b *Board) Address() string {
	return b.address
}

// URL returns the device endpoint the Board polls.
func (b *Board) URL() string {
	return b.url
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// PollingInterval returns the configured interval between fetches.
func (b *Board) PollingInterval() time.Duration {
	return b.pollingInterval
}

// HistorySize returns how many readings the history retains.
func (b *Board) HistorySize() int {
	return b.historySize
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), snap Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked",
				"panic", r,
				"correlation_id", uuid.New().String(),
			)
		}
	}()
	cb(snap)
}
