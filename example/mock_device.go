package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// StartMockDevice runs a fake sensor on addr serving GET /api/temperature.
//
// The temperature drifts around 22°C. Roughly one request in fifteen fails
// with HTTP 500 so the dashboard's error banner can be seen.
// Call this in a goroutine before starting the Board.
func StartMockDevice(addr string) {
	var (
		mu   sync.Mutex
		temp = 22.0
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/temperature", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		if rand.Intn(15) == 0 {
			slog.Info("simulating device fault")
			http.Error(w, "sensor fault", http.StatusInternalServerError)
			return
		}

		mu.Lock()
		temp += rand.Float64() - 0.5
		value := temp
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"temperature": value,
			"timestamp":   time.Now().UnixMilli(),
		})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock device error", "error", err)
	}
}
