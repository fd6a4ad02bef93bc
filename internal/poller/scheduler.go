package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/balanceboard/internal/balance"
	"github.com/jpalmerr/balanceboard/internal/cache"
	"github.com/jpalmerr/balanceboard/internal/fetcher"
	"github.com/jpalmerr/balanceboard/internal/metrics"
	"github.com/jpalmerr/balanceboard/internal/monitor"
	"github.com/jpalmerr/balanceboard/internal/value"
)

// DefaultInterval is the time between forced refresh cycles.
const DefaultInterval = 5 * time.Minute

// Publisher receives the complete, ordered status list after each cycle.
type Publisher func([]monitor.Status)

// Resolver turns a decoded body into a balance. It defaults to
// [balance.Resolve].
type Resolver func(doc value.Value, cfg monitor.Config, now time.Time) monitor.BalanceResponse

// Config configures a [Scheduler].
type Config struct {
	// Monitors are refreshed in this order and published in this order.
	Monitors []monitor.Config

	// Interval between forced cycles. Zero means [DefaultInterval].
	Interval time.Duration

	// MaxConcurrency bounds in-flight fetches per cycle. Zero means one
	// worker per monitor.
	MaxConcurrency int

	// Fetcher performs the upstream request. Nil means a direct fetcher.
	Fetcher *fetcher.Fetcher

	// Cache holds resolved balances between cycles. Nil disables caching.
	Cache *cache.Cache

	// Publish is called with every snapshot while the scheduler is active.
	// It runs on the refresh goroutine without holding any scheduler lock;
	// Stop waits for a call in progress to return.
	Publish Publisher

	// Resolve overrides balance extraction.
	Resolve Resolver

	Logger *slog.Logger
}

// Scheduler owns the refresh loop for a fixed set of monitors.
//
// On [Scheduler.Start] it publishes a snapshot with every monitor loading,
// runs a first cycle that honours the cache, and then runs a forced cycle on
// every interval tick or [Scheduler.Refresh] request. Each cycle fetches all
// monitors concurrently, waits for every one of them to settle, and publishes
// the whole ordered result once.
//
// All lifecycle methods (Start, Stop, Refresh) are safe for concurrent use.
// Nothing is published after Stop returns. A slow Publish delays Stop but
// never Refresh.
type Scheduler struct {
	monitors       []monitor.Config
	interval       time.Duration
	maxConcurrency int
	fetcher        *fetcher.Fetcher
	cache          *cache.Cache
	publish        Publisher
	resolve        Resolver
	logger         *slog.Logger
	now            func() time.Time

	refresh chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// mu guards started and stopped.
	mu      sync.Mutex
	started bool
	stopped bool

	// active is true between Start and Stop. Publishing checks it on the
	// refresh goroutine, which Stop waits for after clearing it.
	active atomic.Bool
}

// NewScheduler creates a [Scheduler]. It must be started with
// [Scheduler.Start] and stopped with [Scheduler.Stop].
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = len(cfg.Monitors)
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	f := cfg.Fetcher
	if f == nil {
		f = fetcher.New(nil, logger)
	}

	c := cfg.Cache
	if c == nil {
		c = cache.New(nil, cache.WithLogger(logger))
	}

	resolve := cfg.Resolve
	if resolve == nil {
		resolve = balance.Resolve
	}

	publish := cfg.Publish
	if publish == nil {
		publish = func([]monitor.Status) {}
	}

	monitors := make([]monitor.Config, len(cfg.Monitors))
	copy(monitors, cfg.Monitors)

	return &Scheduler{
		monitors:       monitors,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		fetcher:        f,
		cache:          c,
		publish:        publish,
		resolve:        resolve,
		logger:         logger,
		now:            time.Now,
		refresh:        make(chan struct{}, 1),
	}
}

// Interval returns the time between forced cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start publishes the initial loading snapshot and begins the refresh loop
// in a background goroutine.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.active.Store(true)

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	s.mu.Unlock()

	initial := make([]monitor.Status, len(s.monitors))
	for i, m := range s.monitors {
		initial[i] = monitor.LoadingStatus(m)
	}
	if s.active.Load() {
		s.publish(initial)
	}

	go func() {
		defer s.wg.Done()

		s.runCycle(loopCtx, false)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.runCycle(loopCtx, true)
			case <-s.refresh:
				s.runCycle(loopCtx, true)
			}
		}
	}()
}

// Stop halts the refresh loop and waits for in-flight work to finish.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		s.active.Store(false)
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// clean up pooled connections after all goroutines complete
	if closer, ok := s.fetcher.Forwarder().(interface{ Close() }); ok {
		closer.Close()
	}
}

// Refresh requests an immediate forced cycle. Requests made while one is
// already pending are coalesced. It reports whether the request was
// accepted, which is false unless the scheduler is running.
func (s *Scheduler) Refresh() bool {
	if !s.active.Load() {
		return false
	}

	select {
	case s.refresh <- struct{}{}:
	default:
		// a refresh is already queued
	}
	return true
}

// Collect runs one cycle synchronously and returns its statuses without
// publishing them.
func (s *Scheduler) Collect(ctx context.Context, force bool) []monitor.Status {
	return s.collect(ctx, force)
}

// runCycle collects every monitor and publishes the result if the scheduler
// is still active.
func (s *Scheduler) runCycle(ctx context.Context, force bool) {
	statuses := s.collect(ctx, force)

	if !s.active.Load() || ctx.Err() != nil {
		return
	}
	s.publish(statuses)
}

// collect refreshes all monitors concurrently, respecting maxConcurrency,
// and waits for every one of them to settle.
func (s *Scheduler) collect(ctx context.Context, force bool) []monitor.Status {
	start := time.Now()
	statuses := make([]monitor.Status, len(s.monitors))
	jobs := make(chan int, len(s.monitors))

	workers := s.maxConcurrency
	if workers > len(s.monitors) {
		workers = len(s.monitors)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				// each worker writes only its own index
				statuses[idx] = s.refreshMonitor(ctx, s.monitors[idx], force)
			}
		}()
	}

	for i := range s.monitors {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, st := range statuses {
		recordStatus(st)
		if st.Status == monitor.StateError {
			failed++
		}
	}

	elapsed := time.Since(start)
	metrics.CycleDuration.Observe(elapsed.Seconds())
	s.logger.Info("refresh cycle complete",
		"forced", force,
		"monitors", len(statuses),
		"failed", failed,
		"duration_ms", elapsed.Milliseconds(),
	)

	return statuses
}

// refreshMonitor returns the status of one monitor, served from the cache
// unless force is set or the entry is missing or stale.
func (s *Scheduler) refreshMonitor(ctx context.Context, cfg monitor.Config, force bool) monitor.Status {
	if force {
		s.cache.Clear(ctx, cfg.ID)
	} else if data, ok := s.cache.Get(ctx, cfg.ID); ok {
		metrics.CacheLookups.WithLabelValues(cfg.ID, "hit").Inc()
		return monitor.SuccessStatus(cfg, data)
	} else {
		metrics.CacheLookups.WithLabelValues(cfg.ID, "miss").Inc()
	}

	start := time.Now()
	res, err := s.fetcher.Fetch(ctx, cfg)
	metrics.FetchDuration.WithLabelValues(cfg.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchTotal.WithLabelValues(cfg.ID, "error").Inc()
		s.logger.Warn("balance fetch failed",
			"monitor", cfg.ID,
			"url", cfg.URL,
			"error", err,
		)
		return monitor.ErrorStatus(cfg, err, s.now())
	}

	data, err := s.safeResolve(res.Body, cfg)
	if err == nil {
		err = balance.Check(data)
	}
	if err != nil {
		metrics.FetchTotal.WithLabelValues(cfg.ID, "error").Inc()
		s.logger.Warn("balance resolve failed",
			"monitor", cfg.ID,
			"error", err,
		)
		return monitor.ErrorStatus(cfg, err, s.now())
	}
	metrics.FetchTotal.WithLabelValues(cfg.ID, "success").Inc()

	if balance.ReverseSkipped(cfg, data) {
		s.logger.Debug("reverse requested without a total, keeping raw value",
			"monitor", cfg.ID,
		)
	}

	s.logger.Debug("balance refreshed",
		"monitor", cfg.ID,
		"status", res.StatusCode,
		"latency_ms", res.Latency.Milliseconds(),
	)

	s.cache.Set(ctx, cfg.ID, data, cfg)
	return monitor.SuccessStatus(cfg, data)
}

// safeResolve calls the resolver with panic recovery.
// If the resolver panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeResolve(doc value.Value, cfg monitor.Config) (resp monitor.BalanceResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			// log full context server-side for debugging
			s.logger.Error("resolver panic",
				"monitor", cfg.ID,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = fmt.Errorf("resolver panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.resolve(doc, cfg, s.now()), nil
}

// recordStatus exports the outcome of one monitor to Prometheus.
func recordStatus(st monitor.Status) {
	switch st.Status {
	case monitor.StateSuccess:
		metrics.MonitorUp.WithLabelValues(st.ID).Set(1)
		metrics.Balance.WithLabelValues(st.ID, st.DisplayUnit).Set(st.Balance)
		metrics.LastSuccess.WithLabelValues(st.ID).Set(float64(st.LastUpdated) / 1000)
	case monitor.StateError:
		metrics.MonitorUp.WithLabelValues(st.ID).Set(0)
	}
}
