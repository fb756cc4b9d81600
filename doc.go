// Package thermoboard provides an embeddable live dashboard for a single
// networked temperature sensor.
//
// A Board polls the device's GET /api/temperature endpoint on a fixed
// interval, keeps a bounded history of successful readings, and presents the
// latest value, the history chart and any connection error on a web
// dashboard or in the terminal.
//
// # Quick Start
//
// Point a Board at the device and start the dashboard with graceful shutdown:
//
//	b, _ := thermoboard.New(thermoboard.WithAddress("172.20.10.2"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Board uses the functional options pattern for configuration:
//
//	b, err := thermoboard.New(
//	    thermoboard.WithAddress("172.20.10.2"),
//	    thermoboard.WithPollingInterval(2 * time.Second),
//	    thermoboard.WithHistorySize(60),
//	    thermoboard.WithPort(9090),
//	    thermoboard.WithMQTTSink(thermoboard.MQTTConfig{
//	        Broker: "tcp://localhost:1883",
//	        Topic:  "thermoboard/readings",
//	    }),
//	)
//
// # Polling
//
// The device is fetched once on start and then on every tick. A tick that
// arrives while a fetch is still in flight is skipped, so at most one request
// is outstanding. A failed fetch records the error but keeps the last good
// reading and the history; the next tick tries again. Nothing is retried and
// no error stops the Board.
//
// # Architecture
//
// Board consists of several internal packages (under internal/):
//
//   - internal/device: HTTP client and decoder for the device endpoint
//   - internal/history: fixed-capacity reading history
//   - internal/poller: polling loop owning the acquisition state
//   - internal/store: published state with pub/sub for live updates
//   - internal/view: display rules shared by both dashboards
//   - internal/chart: SVG/PNG history chart
//   - internal/server: HTTP server with JSON API, SSE, WebSocket and /metrics
//   - internal/tui: terminal dashboard
//   - internal/metrics: Prometheus instrumentation
//   - internal/sink: MQTT and Kafka reading publishers
//   - dashboard: embedded web UI template
//
// The internal packages are not part of the public API and may change
// without notice.
package thermoboard
