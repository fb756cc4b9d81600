// Standalone mock sensor for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockdevice
//
// Then in another terminal:
//
//	go run ./cmd/thermoboard serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	failEvery := flag.Int("fail-every", 0, "answer every Nth request with HTTP 500 (0 disables)")
	omitTimestamp := flag.Bool("omit-timestamp", false, "leave the timestamp out of responses")
	flag.Parse()

	fmt.Printf("Mock device starting on %s\n", *addr)
	fmt.Println("Serving GET /api/temperature")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu    sync.Mutex
		count int
		start = time.Now()
	)

	http.HandleFunc("/api/temperature", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()

		if *failEvery > 0 && n%*failEvery == 0 {
			slog.Info("simulating device fault", "request", n)
			http.Error(w, "sensor fault", http.StatusInternalServerError)
			return
		}

		// slow sine around 22°C with a two-minute period
		phase := time.Since(start).Seconds() / 120 * 2 * math.Pi
		body := map[string]any{"temperature": 22 + 3*math.Sin(phase)}
		if !*omitTimestamp {
			body["timestamp"] = time.Now().UnixMilli()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
