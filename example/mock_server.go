package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockToken is the bearer token the mock /credits endpoint expects.
const mockToken = "demo-token"

// mockAccount is a balance that drains a little on every request and
// refills once it runs out.
type mockAccount struct {
	total float64
	used  float64
}

func (a *mockAccount) spend() {
	a.used += float64(1+rand.Intn(25)) / 10
	if a.used >= a.total {
		a.used = 0
	}
}

// StartMockBalanceServer runs mock billing endpoints with different
// response shapes:
//
//	/credits  {"data": {"remaining": n, "granted": n}}, bearer auth required
//	/usage    {"usage": {"used": n}}, for reverse monitors
//	/quota    {"quota": "123.4 tokens", "expiring": n}
//	/flaky    fails with 503 roughly one request in three
//
// Call this in a goroutine before starting the board.
func StartMockBalanceServer(addr string) {
	var mu sync.Mutex
	accounts := map[string]*mockAccount{
		"credits": {total: 100},
		"usage":   {total: 500},
		"quota":   {total: 2000},
		"flaky":   {total: 50},
	}

	account := func(name string) mockAccount {
		mu.Lock()
		defer mu.Unlock()
		a := accounts[name]
		a.spend()
		return *a
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/credits", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+mockToken {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		a := account("credits")
		writeMockJSON(w, map[string]any{
			"data": map[string]any{"remaining": a.total - a.used, "granted": a.total},
		})
	})
	mux.HandleFunc("/usage", func(w http.ResponseWriter, r *http.Request) {
		a := account("usage")
		writeMockJSON(w, map[string]any{"usage": map[string]any{"used": a.used}})
	})
	mux.HandleFunc("/quota", func(w http.ResponseWriter, r *http.Request) {
		a := account("quota")
		writeMockJSON(w, map[string]any{
			"quota":    fmt.Sprintf("%.1f tokens", a.total-a.used),
			"expiring": 100,
		})
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)
		if rand.Intn(3) == 0 {
			http.Error(w, "upstream maintenance", http.StatusServiceUnavailable)
			return
		}
		a := account("flaky")
		writeMockJSON(w, map[string]any{"balance": a.total - a.used})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func writeMockJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
