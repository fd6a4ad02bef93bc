package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

const (
	// DefaultPrefix namespaces cache keys inside a shared storage.
	DefaultPrefix = "monitor_cache_"

	// DefaultTTL is how long an entry is served before it is refetched.
	DefaultTTL = 5 * time.Minute
)

// Entry is the persisted form of a cached balance.
// Timestamp is milliseconds since the Unix epoch.
type Entry struct {
	Data      monitor.BalanceResponse `json:"data"`
	Timestamp int64                   `json:"timestamp"`
	Config    monitor.Config          `json:"config"`
}

// Cache is a TTL cache of resolved balances keyed by monitor id.
type Cache struct {
	storage Storage
	prefix  string
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a [Cache].
type Option func(*Cache)

// WithPrefix overrides [DefaultPrefix]. An empty prefix is ignored.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithClock replaces time.Now, for deterministic expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a [Cache] over storage. storage may be nil, in which case
// nothing is ever cached.
func New(storage Storage, opts ...Option) *Cache {
	c := &Cache{
		storage: storage,
		prefix:  DefaultPrefix,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key returns the storage key for a monitor id.
func (c *Cache) Key(id string) string {
	return c.prefix + id
}

// Get returns the cached balance for id if it is younger than the TTL.
//
// An expired entry is removed from storage before reporting a miss. Corrupt
// entries are reported as misses.
func (c *Cache) Get(ctx context.Context, id string) (monitor.BalanceResponse, bool) {
	entry, ok := c.read(ctx, id)
	if !ok {
		return monitor.BalanceResponse{}, false
	}

	if c.expired(entry) {
		c.remove(ctx, id)
		return monitor.BalanceResponse{}, false
	}
	return entry.Data, true
}

// Set stores data for id, stamped with the current time. The config copy is
// stored without credentials.
func (c *Cache) Set(ctx context.Context, id string, data monitor.BalanceResponse, cfg monitor.Config) {
	if c.storage == nil {
		return
	}

	raw, err := json.Marshal(Entry{
		Data:      data,
		Timestamp: c.now().UnixMilli(),
		Config:    cfg.Redacted(),
	})
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "monitor", id, "error", err)
		return
	}

	if err := c.storage.SetItem(ctx, c.Key(id), string(raw)); err != nil {
		c.logger.Warn("failed to write cache entry", "monitor", id, "error", err)
	}
}

// Clear removes the entry for id.
func (c *Cache) Clear(ctx context.Context, id string) {
	c.remove(ctx, id)
}

// ClearAll removes every entry under the cache prefix. Keys outside the
// prefix are left alone.
func (c *Cache) ClearAll(ctx context.Context) {
	if c.storage == nil {
		return
	}

	keys, err := c.storage.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Warn("failed to list cache entries", "error", err)
		return
	}
	for _, key := range keys {
		if err := c.storage.RemoveItem(ctx, key); err != nil {
			c.logger.Warn("failed to remove cache entry", "key", key, "error", err)
		}
	}
}

// RemainingTTL returns how long the entry for id stays fresh, or zero when
// there is no entry or it has already expired.
func (c *Cache) RemainingTTL(ctx context.Context, id string) time.Duration {
	entry, ok := c.read(ctx, id)
	if !ok {
		return 0
	}
	remaining := c.ttl - c.age(entry)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Age returns how long ago the entry for id was written.
func (c *Cache) Age(ctx context.Context, id string) (time.Duration, bool) {
	entry, ok := c.read(ctx, id)
	if !ok {
		return 0, false
	}
	return c.age(entry), true
}

func (c *Cache) age(e Entry) time.Duration {
	return time.Duration(c.now().UnixMilli()-e.Timestamp) * time.Millisecond
}

func (c *Cache) expired(e Entry) bool {
	return c.age(e) > c.ttl
}

func (c *Cache) read(ctx context.Context, id string) (Entry, bool) {
	if c.storage == nil {
		return Entry{}, false
	}

	raw, found, err := c.storage.GetItem(ctx, c.Key(id))
	if err != nil {
		c.logger.Warn("failed to read cache entry", "monitor", id, "error", err)
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Debug("ignoring corrupt cache entry", "monitor", id, "error", err)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) remove(ctx context.Context, id string) {
	if c.storage == nil {
		return
	}
	if err := c.storage.RemoveItem(ctx, c.Key(id)); err != nil {
		c.logger.Warn("failed to remove cache entry", "monitor", id, "error", err)
	}
}
