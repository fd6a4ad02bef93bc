package balanceboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/balanceboard/dashboard"
	"github.com/jpalmerr/balanceboard/internal/cache"
	"github.com/jpalmerr/balanceboard/internal/fetcher"
	"github.com/jpalmerr/balanceboard/internal/monitor"
	"github.com/jpalmerr/balanceboard/internal/poller"
	"github.com/jpalmerr/balanceboard/internal/server"
	"github.com/jpalmerr/balanceboard/internal/store"
)

const (
	defaultRefreshInterval = poller.DefaultInterval
	defaultPort            = 8080
)

// Board is the main orchestrator for balance polling and dashboard serving.
//
// Board refreshes every monitor on a fixed interval, caches resolved
// balances, and serves them via HTTP. It is created using [New] with
// functional options and started with [Board.Start].
//
// The typical lifecycle is:
//
//	board, err := balanceboard.New(balanceboard.WithMonitor(m))
//	if err != nil {
//	    slog.Error("failed to create balanceboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
type Board struct {
	title           string
	monitors        []Monitor
	refreshInterval time.Duration
	port            int
	maxConcurrency  int
	logger          *slog.Logger
	cache           cacheSettings
	proxyURL        string
	statusCallbacks []func(MonitorStatus)
}

// New creates a new [Board] instance with the given options.
//
// At least one monitor must be configured via [WithMonitor] or
// [WithMonitors], and monitor ids must be unique. Other options have
// sensible defaults:
//   - Refresh interval: 5 minutes
//   - Port: 8080
//   - Max concurrency: one fetch per monitor
//   - Cache: in memory
//
// Example:
//
//	board, err := balanceboard.New(
//	    balanceboard.WithMonitors(openai, anthropic),
//	    balanceboard.WithFileCache("/var/lib/balanceboard/cache.json"),
//	    balanceboard.WithPort(9090),
//	)
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		monitors:        []Monitor{},
		refreshInterval: defaultRefreshInterval,
		port:            defaultPort,
		cache:           cacheSettings{backend: CacheMemory},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.monitors) == 0 {
		return nil, errors.New("at least one monitor is required")
	}

	// ids key the cache and the status lookup
	seen := make(map[string]bool, len(cfg.monitors))
	for _, m := range cfg.monitors {
		if m.ID() == "" {
			return nil, errors.New("monitor must be created with NewMonitor")
		}
		if seen[m.ID()] {
			return nil, fmt.Errorf("duplicate monitor id: %q", m.ID())
		}
		seen[m.ID()] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		title:           cfg.title,
		monitors:        cfg.monitors,
		refreshInterval: cfg.refreshInterval,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		logger:          logger,
		cache:           cfg.cache,
		proxyURL:        cfg.proxyURL,
		statusCallbacks: cfg.statusCallbacks,
	}, nil
}

// Start begins refreshing monitors and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - Every monitor is reported as loading, then refreshed immediately
//     (serving fresh cache entries), then force-refreshed every interval
//   - The HTTP server starts on the configured port
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if the cache backend
// cannot be opened or the HTTP server fails to start.
func (b *Board) Start(ctx context.Context) error {
	b.logger.Info("balanceboard starting", "monitor_count", len(b.monitors))
	b.logger.Info("refresh configured", "interval", b.refreshInterval.String(), "cache", string(b.cache.backend))
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	balances, closeCache, err := b.openCache()
	if err != nil {
		return err
	}
	defer closeCache()

	// /api/proxy and direct monitor fetches share one connection pool
	direct := fetcher.NewHTTPForwarder()

	statusStore := store.NewMemoryStore()
	scheduler := b.newScheduler(balances, direct, func(statuses []monitor.Status) {
		// store update first (callbacks fire after data is published)
		statusStore.ReplaceAll(statuses)
		b.notify(statuses)
	})
	scheduler.Start(ctx)

	httpServer := server.NewServer(server.Config{
		Store:     statusStore,
		Port:      b.port,
		Assets:    dashboard.Assets,
		Title:     b.title,
		Refresher: scheduler,
		Cache:     balances,
		Forwarder: direct,
		Logger:    b.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		scheduler.Stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	scheduler.Stop()
	b.logger.Info("balanceboard stopped")
	return nil
}

// Collect runs one forced refresh of every monitor and returns the
// statuses in configured order, without starting the server or the timer.
// Status callbacks are not invoked.
func (b *Board) Collect(ctx context.Context) ([]MonitorStatus, error) {
	balances, closeCache, err := b.openCache()
	if err != nil {
		return nil, err
	}
	defer closeCache()

	scheduler := b.newScheduler(balances, nil, nil)
	// Stop before Start only releases pooled connections
	defer scheduler.Stop()

	statuses := scheduler.Collect(ctx, true)
	out := make([]MonitorStatus, len(statuses))
	for i, st := range statuses {
		out[i] = toPublicStatus(st)
	}
	return out, nil
}

// monitorForwarder returns the forwarder monitor fetches go through: the
// configured proxy when one is set, otherwise direct. A nil direct lets the
// fetcher create its own.
func (b *Board) monitorForwarder(direct fetcher.Forwarder) fetcher.Forwarder {
	if b.proxyURL != "" {
		return fetcher.NewProxyForwarder(b.proxyURL)
	}
	return direct
}

func (b *Board) newScheduler(balances *cache.Cache, direct fetcher.Forwarder, publish poller.Publisher) *poller.Scheduler {
	fw := b.monitorForwarder(direct)

	configs := make([]monitor.Config, len(b.monitors))
	for i, m := range b.monitors {
		configs[i] = m.config()
	}

	return poller.NewScheduler(poller.Config{
		Monitors:       configs,
		Interval:       b.refreshInterval,
		MaxConcurrency: b.maxConcurrency,
		Fetcher:        fetcher.New(fw, b.logger),
		Cache:          balances,
		Publish:        publish,
		Logger:         b.logger,
	})
}

// openCache opens the configured backend. The returned func releases it.
func (b *Board) openCache() (*cache.Cache, func(), error) {
	opts := []cache.Option{cache.WithLogger(b.logger)}
	if b.cache.prefix != "" {
		opts = append(opts, cache.WithPrefix(b.cache.prefix))
	}
	noop := func() {}

	switch b.cache.backend {
	case CacheNone:
		return cache.New(nil, opts...), noop, nil

	case CacheFile:
		fs, err := cache.NewFileStorage(b.cache.path, b.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file cache: %w", err)
		}
		return cache.New(fs, opts...), noop, nil

	case CacheRedis:
		rs, err := cache.NewRedisStorage(b.cache.redisURL, b.cache.redisPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis cache: %w", err)
		}
		return cache.New(rs, opts...), closeQuietly(rs, b.logger), nil

	default:
		return cache.New(cache.NewMemoryStorage(), opts...), noop, nil
	}
}

func closeQuietly(c io.Closer, logger *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close cache backend", "error", err)
		}
	}
}

// notify invokes status callbacks for every settled monitor. Loading
// snapshots are not reported.
func (b *Board) notify(statuses []monitor.Status) {
	if len(b.statusCallbacks) == 0 {
		return
	}
	for _, st := range statuses {
		if st.Status == monitor.StateLoading {
			continue
		}
		public := toPublicStatus(st)
		for _, cb := range b.statusCallbacks {
			invokeCallbackSafe(cb, public, b.logger)
		}
	}
}

// Monitors returns a copy of the configured monitors.
func (b *Board) Monitors() []Monitor {
	cp := make([]Monitor, len(b.monitors))
	copy(cp, b.monitors)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// RefreshInterval returns the configured interval between forced refreshes.
func (b *Board) RefreshInterval() time.Duration {
	return b.refreshInterval
}

// Title returns the configured dashboard title, or "" for the default.
func (b *Board) Title() string {
	return b.title
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(MonitorStatus), status MonitorStatus, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"monitor", status.ID,
				"stack", string(debug.Stack()),
			)
		}
	}()
	cb(status)
}
