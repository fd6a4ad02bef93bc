package balanceboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// CacheBackend selects where cached balances are persisted.
type CacheBackend string

const (
	// CacheMemory keeps entries in process memory. This is the default.
	CacheMemory CacheBackend = "memory"

	// CacheFile persists entries to a JSON file.
	CacheFile CacheBackend = "file"

	// CacheRedis persists entries to a Redis server.
	CacheRedis CacheBackend = "redis"

	// CacheNone disables caching; every cycle fetches.
	CacheNone CacheBackend = "none"
)

// cacheSettings describes the cache backend to open on Start.
type cacheSettings struct {
	backend       CacheBackend
	path          string
	redisURL      string
	redisPassword string
	prefix        string
}

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
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

// Option is a function that configures a [Board] during construction.
//
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithMonitor adds a single [Monitor].
//
// Can be called multiple times. At least one monitor must be configured for
// [New] to succeed. Monitors are displayed in the order they are added.
func WithMonitor(m Monitor) Option {
	return func(cfg *boardConfig) error {
		cfg.monitors = append(cfg.monitors, m)
		return nil
	}
}

// WithMonitors adds multiple [Monitor] values.
//
// Equivalent to calling [WithMonitor] for each.
func WithMonitors(monitors ...Monitor) Option {
	return func(cfg *boardConfig) error {
		cfg.monitors = append(cfg.monitors, monitors...)
		return nil
	}
}

// WithRefreshInterval sets how often every monitor is force-refreshed.
// Defaults to 5 minutes, which is also the cache time-to-live.
//
// Returns an error if the duration is zero or negative.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("refresh interval must be positive")
		}
		cfg.refreshInterval = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency bounds how many monitors are fetched at once during a
// cycle. Defaults to one fetch per monitor.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board instance.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMemoryCache keeps cached balances in memory. This is the default.
func WithMemoryCache() Option {
	return func(cfg *boardConfig) error {
		cfg.cache.backend = CacheMemory
		return nil
	}
}

// WithFileCache persists cached balances to a JSON file at path, so a
// restart within the time-to-live does not refetch.
//
// Returns an error if path is empty.
func WithFileCache(path string) Option {
	return func(cfg *boardConfig) error {
		if path == "" {
			return errors.New("cache file path cannot be empty")
		}
		cfg.cache.backend = CacheFile
		cfg.cache.path = path
		return nil
	}
}

// WithRedisCache persists cached balances to Redis. The URL uses the
// redis:// scheme; a non-empty password overrides the one in the URL.
// The connection is opened by [Board.Start].
//
// Returns an error if redisURL is empty.
func WithRedisCache(redisURL, password string) Option {
	return func(cfg *boardConfig) error {
		if redisURL == "" {
			return errors.New("redis URL cannot be empty")
		}
		cfg.cache.backend = CacheRedis
		cfg.cache.redisURL = redisURL
		cfg.cache.redisPassword = password
		return nil
	}
}

// WithoutCache disables caching.
func WithoutCache() Option {
	return func(cfg *boardConfig) error {
		cfg.cache.backend = CacheNone
		return nil
	}
}

// WithCachePrefix sets the namespace prepended to every cache key.
// Defaults to "monitor_cache_".
//
// Returns an error if prefix is empty.
func WithCachePrefix(prefix string) Option {
	return func(cfg *boardConfig) error {
		if prefix == "" {
			return errors.New("cache prefix cannot be empty")
		}
		cfg.cache.prefix = prefix
		return nil
	}
}

// WithProxyURL routes every monitor request through a remote pass-through
// endpoint (for example another BalanceBoard's /api/proxy) instead of
// calling the monitors directly.
//
// Returns an error if proxyURL is not an absolute http(s) URL.
func WithProxyURL(proxyURL string) Option {
	return func(cfg *boardConfig) error {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.New("proxy URL must be an absolute http:// or https:// URL")
		}
		cfg.proxyURL = proxyURL
		return nil
	}
}

// WithStatusCallback registers a function to be called with every monitor's
// status after each completed cycle.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks run synchronously on the scheduler goroutine and must not block:
// the next cycle waits for them, and shutdown waits for a callback that is
// still running. Manual refreshes are queued without waiting.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	board, err := balanceboard.New(
//	    balanceboard.WithMonitor(m),
//	    balanceboard.WithStatusCallback(func(s balanceboard.MonitorStatus) {
//	        if s.State == balanceboard.StateError {
//	            log.Printf("ALERT: %s failed: %s", s.Name, s.Error)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(MonitorStatus)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
// If not specified, defaults to "BalanceBoard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}
