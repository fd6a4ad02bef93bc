package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPingTimeout = 5 * time.Second
	redisScanCount   = 100
)

// RedisStorage is a [Storage] backed by Redis.
//
// Items are written without a Redis expiry; the [Cache] owns the TTL.
type RedisStorage struct {
	rdb *redis.Client
}

// NewRedisStorage connects to redisURL (redis://host:port/db). A non-empty
// password overrides the one in the URL. The connection is verified with a
// PING before returning.
func NewRedisStorage(redisURL, password string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStorage{rdb: rdb}, nil
}

// Close shuts down the Redis connection pool.
func (r *RedisStorage) Close() error {
	return r.rdb.Close()
}

func (r *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

func (r *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// globEscaper quotes the characters SCAN MATCH treats as pattern syntax.
var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// Keys walks the keyspace with SCAN rather than KEYS so large databases are
// not blocked. The prefix is matched literally.
func (r *RedisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	match := globEscaper.Replace(prefix) + "*"
	for {
		batch, next, err := r.rdb.Scan(ctx, cursor, match, redisScanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return keys, nil
}
