// Package config provides YAML configuration parsing for BalanceBoard.
//
// This package enables running BalanceBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: API Credits
//	port: 8080
//	refresh_interval: 5m
//
//	cache:
//	  backend: file
//	  path: /var/lib/balanceboard/cache.json
//
//	monitors:
//	  - id: openai
//	    name: OpenAI
//	    url: https://api.example.com/credits
//	    balanceField: data.remaining
//	    displayUnit: USD
//	    auth:
//	      type: bearer
//	      token: ${OPENAI_KEY}
//
// Monitors may also be supplied as a JSON array in the MONITORS_CONFIG
// environment variable; see [Resolve].
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort = 8080

	// minRefreshInterval prevents accidental hammering of upstream APIs.
	minRefreshInterval = 10 * time.Second

	defaultRefreshInterval = 5 * time.Minute
)

// Cache backends accepted in cache.backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config is the root configuration structure for BalanceBoard.
//
// Use [Load], [Parse] or [Resolve] to create a Config.
type Config struct {
	// Title is the dashboard title. Defaults to "BalanceBoard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// RefreshInterval is the time between forced refresh cycles.
	// Accepts duration strings like "5m" or "90s". Defaults to 5m.
	RefreshInterval Duration `yaml:"refresh_interval"`

	// MaxConcurrency bounds concurrent fetches. Zero means one per monitor.
	MaxConcurrency int `yaml:"max_concurrency"`

	Cache CacheConfig `yaml:"cache"`

	// ProxyURL routes monitor requests through a remote pass-through endpoint.
	ProxyURL string `yaml:"proxy_url"`

	// Monitors are the validated monitor definitions, in file order followed
	// by MONITORS_CONFIG order.
	Monitors []MonitorConfig `yaml:"-"`

	// Warnings lists entries that were skipped or coerced during validation.
	Warnings []string `yaml:"-"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	// Backend is one of memory (default), file, redis or none.
	Backend string `yaml:"backend"`

	// Path is the JSON file used by the file backend.
	Path string `yaml:"path"`

	// RedisURL and RedisPassword configure the redis backend.
	// Both support environment variable substitution.
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`

	// Prefix is prepended to every cache key. Defaults to "monitor_cache_".
	Prefix string `yaml:"prefix"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// fileConfig is the on-disk shape. Monitors stay raw so that one malformed
// entry is skipped instead of failing the whole file.
type fileConfig struct {
	Config   `yaml:",inline"`
	Monitors []any `yaml:"monitors"`
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Defaults are applied for Port (8080), RefreshInterval (5m) and the cache
// backend (memory). Top-level settings are validated strictly. Monitor
// entries are validated leniently: entries missing id, name or url are
// skipped and invalid optional fields are dropped, each with a warning in
// [Config.Warnings].
//
// Parse does not require any monitors; see [Config.Validate].
func Parse(data []byte) (*Config, error) {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := raw.Config
	cfg.applyDefaults()
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	for i, entry := range raw.Monitors {
		cfg.addMonitor(fmt.Sprintf("monitors[%d]", i), entry)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no monitors.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = Duration(defaultRefreshInterval)
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}
}

// expandAndValidate expands environment variables and validates top-level settings.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RefreshInterval.Duration() < minRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %s, got %s", minRefreshInterval, c.RefreshInterval.Duration())
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if c.ProxyURL != "" {
		expanded, err := expandEnvVars(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("proxy_url: %w", err)
		}
		if err := checkHTTPURL(expanded); err != nil {
			return fmt.Errorf("proxy_url: %w", err)
		}
		c.ProxyURL = expanded
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendNone:
	case BackendFile:
		if c.Cache.Path == "" {
			return errors.New("cache.path is required for the file backend")
		}
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis backend")
		}
		expanded, err := expandEnvVars(c.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("cache.redis_url: %w", err)
		}
		c.Cache.RedisURL = expanded

		expanded, err = expandEnvVars(c.Cache.RedisPassword)
		if err != nil {
			return fmt.Errorf("cache.redis_password: %w", err)
		}
		c.Cache.RedisPassword = expanded
	default:
		return fmt.Errorf("cache.backend must be one of memory, file, redis or none, got %q", c.Cache.Backend)
	}

	return nil
}

// Validate reports whether the configuration can run a board.
func (c *Config) Validate() error {
	if len(c.Monitors) == 0 {
		return errors.New("at least one valid monitor must be defined")
	}
	return nil
}

// warnf records a validation warning.
func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func checkHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
