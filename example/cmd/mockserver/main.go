// Standalone mock billing server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	MOCK_TOKEN=demo-token go run ./cmd/balanceboard serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
)

func main() {
	fmt.Println("Mock billing server starting on :9999")
	fmt.Println("Balances drain on every request and refill when exhausted")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu        sync.Mutex
		remaining = 100.0
		used      = 0.0
	)

	http.HandleFunc("/credits", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer demo-token" {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		mu.Lock()
		remaining -= float64(1+rand.Intn(25)) / 10
		if remaining <= 0 {
			remaining = 100
		}
		value := remaining
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"remaining": value, "granted": 100},
		})
	})

	http.HandleFunc("/usage", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		used += float64(rand.Intn(20))
		if used >= 500 {
			used = 0
		}
		value := used
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"usage": map[string]any{"used": value},
		})
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
