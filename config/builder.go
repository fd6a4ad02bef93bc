package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/balanceboard"
)

// BuildMonitors converts validated monitor definitions into SDK monitors,
// preserving their order.
func BuildMonitors(cfg *Config) ([]balanceboard.Monitor, error) {
	monitors := make([]balanceboard.Monitor, 0, len(cfg.Monitors))
	for _, mc := range cfg.Monitors {
		m, err := buildMonitor(mc)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, nil
}

// BoardOptions translates the whole configuration into [balanceboard.New]
// options, monitors included.
func BoardOptions(cfg *Config) ([]balanceboard.Option, error) {
	monitors, err := BuildMonitors(cfg)
	if err != nil {
		return nil, err
	}

	opts := []balanceboard.Option{
		balanceboard.WithMonitors(monitors...),
		balanceboard.WithPort(cfg.Port),
		balanceboard.WithRefreshInterval(cfg.RefreshInterval.Duration()),
	}
	if cfg.Title != "" {
		opts = append(opts, balanceboard.WithTitle(cfg.Title))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, balanceboard.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, balanceboard.WithProxyURL(cfg.ProxyURL))
	}

	switch cfg.Cache.Backend {
	case BackendFile:
		opts = append(opts, balanceboard.WithFileCache(cfg.Cache.Path))
	case BackendRedis:
		opts = append(opts, balanceboard.WithRedisCache(cfg.Cache.RedisURL, cfg.Cache.RedisPassword))
	case BackendNone:
		opts = append(opts, balanceboard.WithoutCache())
	default:
		opts = append(opts, balanceboard.WithMemoryCache())
	}
	if cfg.Cache.Prefix != "" {
		opts = append(opts, balanceboard.WithCachePrefix(cfg.Cache.Prefix))
	}

	return opts, nil
}

func buildMonitor(mc MonitorConfig) (balanceboard.Monitor, error) {
	var opts []balanceboard.MonitorOption

	if mc.Auth != nil {
		if opt := authOption(mc.Auth); opt != nil {
			opts = append(opts, opt)
		}
		if len(mc.Auth.Headers) > 0 {
			opts = append(opts, balanceboard.WithAuthHeaders(mapToKeyValuePairs(mc.Auth.Headers)...))
		}
	}

	if mc.DisplayUnit != "" {
		opts = append(opts, balanceboard.WithDisplayUnit(mc.DisplayUnit))
	}
	if mc.Total != nil {
		opts = append(opts, balanceboard.WithTotal(*mc.Total))
	}
	if mc.BalanceField != "" {
		opts = append(opts, balanceboard.WithBalanceField(mc.BalanceField))
	}
	if mc.ExpiryField != "" {
		opts = append(opts, balanceboard.WithExpiryField(mc.ExpiryField))
	}
	if mc.TotalField != "" {
		opts = append(opts, balanceboard.WithTotalField(mc.TotalField))
	}
	if mc.Reverse {
		opts = append(opts, balanceboard.WithReverse())
	}
	opts = append(opts, balanceboard.WithDecimals(mc.Decimals))
	if mc.Timeout > 0 {
		opts = append(opts, balanceboard.WithTimeout(mc.Timeout))
	}

	m, err := balanceboard.NewMonitor(mc.ID, mc.Name, mc.URL, opts...)
	if err != nil {
		return balanceboard.Monitor{}, fmt.Errorf("failed to build monitor: %w", err)
	}
	return m, nil
}

// authOption maps the configured strategy to its SDK option.
// Returns nil when no strategy is selected.
func authOption(a *AuthConfig) balanceboard.MonitorOption {
	switch a.Type {
	case "bearer":
		return balanceboard.WithBearerToken(a.Token)
	case "basic":
		return balanceboard.WithBasicAuth(a.Username, a.Password)
	case "apikey":
		return balanceboard.WithAPIKey(a.APIKey)
	case "cookie":
		return balanceboard.WithCookie(a.Cookie)
	case "authorization":
		return balanceboard.WithAuthorization(a.Authorization)
	default:
		return nil
	}
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
