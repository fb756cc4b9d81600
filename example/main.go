package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/thermoboard"
)

func main() {
	// start mock device (see mock_device.go)
	go StartMockDevice(":9999")
	time.Sleep(100 * time.Millisecond)

	b, err := thermoboard.New(
		thermoboard.WithAddress("localhost:9999"),
		thermoboard.WithPollingInterval(2*time.Second),
		thermoboard.WithHistorySize(30),
		thermoboard.WithPort(8080),
		thermoboard.WithSnapshotCallback(func(s thermoboard.Snapshot) {
			if s.Latest != nil && s.Latest.Temperature > 25 {
				slog.Warn("temperature above threshold", "celsius", s.Latest.Temperature)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   ThermoBoard Demo                                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Mock sensor on :9999, polled every 2s               ║")
	fmt.Println("  ║   Occasional faults show the error banner             ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		slog.Error("thermoboard error", "error", err)
		os.Exit(1)
	}
}
