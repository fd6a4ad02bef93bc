package balanceboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jpalmerr/balanceboard/internal/fetcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freePort asks the OS for an unused port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// balanceServer answers every request with body and counts hits.
func balanceServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

// TestStart_BlocksUntilContextCancelled verifies that Start blocks until the
// provided context is cancelled.
func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithPort(freePort(t)),
		WithRefreshInterval(100*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
		// expected: still blocking
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	ts, hits := balanceServer(t, http.StatusOK, `{"balance":1}`)

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithPort(freePort(t)),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
	if hits.Load() != 0 {
		t.Errorf("upstream hit %d times, want 0", hits.Load())
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithPort(ln.Addr().(*net.TCPAddr).Port),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = b.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("error = %v", err)
	}
}

func TestStart_ServesStatus(t *testing.T) {
	ts, _ := balanceServer(t, http.StatusOK, `{"data":{"remaining":120}}`)
	port := freePort(t)

	b, err := New(
		WithMonitor(mustMonitor(t, "acct1", ts.URL, WithBalanceField("data.remaining"), WithTotal(500))),
		WithPort(port),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/api/status"
	deadline := time.Now().Add(5 * time.Second)
	for {
		var statuses []struct {
			ID      string  `json:"id"`
			Status  string  `json:"status"`
			Balance float64 `json:"balance"`
			Total   float64 `json:"total"`
		}
		resp, err := http.Get(url)
		if err == nil {
			_ = json.NewDecoder(resp.Body).Decode(&statuses)
			_ = resp.Body.Close()
		}
		if len(statuses) == 1 && statuses[0].Status == "success" {
			if statuses[0].Balance != 120 || statuses[0].Total != 500 {
				t.Errorf("status = %+v, want balance 120 total 500", statuses[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no success status served, last = %+v err = %v", statuses, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// TestStart_MultipleSequentialRuns verifies that a new Board can be started
// after the previous one shuts down.
func TestStart_MultipleSequentialRuns(t *testing.T) {
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)

	for i := 0; i < 3; i++ {
		b, err := New(
			WithMonitor(mustMonitor(t, "a", ts.URL)),
			WithPort(freePort(t)),
			WithRefreshInterval(50*time.Millisecond),
			WithLogger(testLogger()),
		)
		if err != nil {
			t.Fatalf("iteration %d: New() error = %v", i, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- b.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("iteration %d: Start() returned error: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Start() did not return", i)
		}
	}
}

// TestStart_ConcurrentAccess verifies read accessors are safe while running.
func TestStart_ConcurrentAccess(t *testing.T) {
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithPort(freePort(t)),
		WithRefreshInterval(50*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Monitors()
			_ = b.Port()
			_ = b.RefreshInterval()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutines did not complete")
	}
}

func TestStart_BadCacheBackend(t *testing.T) {
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithPort(freePort(t)),
		WithRedisCache("not-a-redis-url", ""),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = b.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "failed to open redis cache") {
		t.Errorf("Start() error = %v, want redis open failure", err)
	}
}

// --- Status callbacks ---

func TestWithStatusCallback_ReceivesSettledStatuses(t *testing.T) {
	ok, _ := balanceServer(t, http.StatusOK, `{"balance":42,"currency":"USD"}`)
	bad, _ := balanceServer(t, http.StatusInternalServerError, `boom`)

	var mu sync.Mutex
	got := make(map[string]MonitorStatus)
	done := make(chan struct{})

	cb := func(s MonitorStatus) {
		mu.Lock()
		defer mu.Unlock()
		if s.State == StateLoading {
			t.Errorf("callback received loading status for %s", s.ID)
		}
		if _, seen := got[s.ID]; seen {
			return
		}
		got[s.ID] = s
		if len(got) == 2 {
			close(done)
		}
	}

	b, err := New(
		WithMonitors(
			mustMonitor(t, "ok", ok.URL, WithDecimals(1), WithDisplayUnit("USD")),
			mustMonitor(t, "bad", bad.URL, WithTotal(10)),
		),
		WithStatusCallback(cb),
		WithPort(freePort(t)),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Start(ctx) }()
	defer cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for callbacks")
	}

	mu.Lock()
	defer mu.Unlock()

	success := got["ok"]
	if success.State != StateSuccess || success.Balance != 42 || success.FormattedBalance != "42.0" {
		t.Errorf("ok status = %+v", success)
	}
	if success.LastUpdated.IsZero() {
		t.Error("LastUpdated should not be zero")
	}

	failure := got["bad"]
	if failure.State != StateError {
		t.Errorf("bad state = %q, want error", failure.State)
	}
	if !strings.Contains(failure.Error, "HTTP 500") {
		t.Errorf("bad error = %q", failure.Error)
	}
	if failure.Total == nil || *failure.Total != 10 {
		t.Errorf("bad total = %v, want configured 10", failure.Total)
	}
}

func TestWithStatusCallback_PanicRecovered(t *testing.T) {
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)

	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: &buf, mu: &mu}, nil))

	var after atomic.Int32
	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithStatusCallback(func(MonitorStatus) { panic("callback exploded") }),
		WithStatusCallback(func(MonitorStatus) { after.Add(1) }),
		WithPort(freePort(t)),
		WithRefreshInterval(50*time.Millisecond),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if after.Load() == 0 {
		t.Error("callback after a panicking one was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	out := buf.String()
	if !strings.Contains(out, "status callback panicked") || !strings.Contains(out, "correlation_id") {
		t.Errorf("panic not logged with correlation id: %s", out)
	}
}

type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// --- Collect ---

func TestCollect_OrderAndPartialFailure(t *testing.T) {
	a, _ := balanceServer(t, http.StatusOK, `{"balance":1}`)
	bad, _ := balanceServer(t, http.StatusBadGateway, `upstream down`)
	c, _ := balanceServer(t, http.StatusOK, `{"balance":3}`)

	b, err := New(
		WithMonitors(
			mustMonitor(t, "a", a.URL),
			mustMonitor(t, "b", bad.URL),
			mustMonitor(t, "c", c.URL),
		),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	statuses, err := b.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("len = %d, want 3", len(statuses))
	}

	wantStates := []State{StateSuccess, StateError, StateSuccess}
	for i, want := range []string{"a", "b", "c"} {
		if statuses[i].ID != want {
			t.Errorf("statuses[%d].ID = %q, want %q", i, statuses[i].ID, want)
		}
		if statuses[i].State != wantStates[i] {
			t.Errorf("statuses[%d].State = %q, want %q", i, statuses[i].State, wantStates[i])
		}
	}
	if statuses[1].Error != "HTTP 502: Bad Gateway: upstream down" {
		t.Errorf("error = %q", statuses[1].Error)
	}
}

func TestCollect_FileCacheWritten(t *testing.T) {
	ts, hits := balanceServer(t, http.StatusOK, `{"balance":7}`)
	path := filepath.Join(t.TempDir(), "cache.json")

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL, WithBearerToken("secret-token"))),
		WithFileCache(path),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := b.Collect(context.Background()); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	data := string(raw)
	if !strings.Contains(data, "monitor_cache_a") {
		t.Errorf("cache file missing entry: %s", data)
	}
	if strings.Contains(data, "secret-token") {
		t.Error("cache file contains credentials")
	}
}

func TestCollect_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ts, _ := balanceServer(t, http.StatusOK, `{"balance":7}`)

	b, err := New(
		WithMonitor(mustMonitor(t, "a", ts.URL)),
		WithRedisCache("redis://"+mr.Addr(), ""),
		WithCachePrefix("bb_"),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := b.Collect(context.Background()); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !mr.Exists("bb_a") {
		t.Errorf("redis keys = %v, want bb_a", mr.Keys())
	}
}

func TestCollect_ThroughProxy(t *testing.T) {
	upstream, upstreamHits := balanceServer(t, http.StatusOK, `{"balance":9}`)

	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		var req struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp, err := http.Get(req.URL)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, resp.Body)
	}))
	defer proxy.Close()

	b, err := New(
		WithMonitor(mustMonitor(t, "a", upstream.URL)),
		WithProxyURL(proxy.URL),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	statuses, err := b.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if statuses[0].Balance != 9 {
		t.Errorf("balance = %v, want 9", statuses[0].Balance)
	}
	if proxied.Load() != 1 || upstreamHits.Load() != 1 {
		t.Errorf("proxied = %d upstream = %d, want 1 and 1", proxied.Load(), upstreamHits.Load())
	}
}

// TestMonitorForwarder verifies that monitors reuse the direct forwarder the
// proxy route is served with, unless an external proxy is configured.
func TestMonitorForwarder(t *testing.T) {
	direct := fetcher.NewHTTPForwarder()

	b, err := New(WithMonitor(mustMonitor(t, "a", "https://example.com")), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := b.monitorForwarder(direct); got != fetcher.Forwarder(direct) {
		t.Errorf("monitorForwarder() = %T, want the shared direct forwarder", got)
	}

	proxied, err := New(
		WithMonitor(mustMonitor(t, "a", "https://example.com")),
		WithProxyURL("http://localhost:3001/api/proxy"),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := proxied.monitorForwarder(direct).(*fetcher.ProxyForwarder); !ok {
		t.Errorf("monitorForwarder() = %T, want *fetcher.ProxyForwarder", proxied.monitorForwarder(direct))
	}
}
