package balanceboard

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

const defaultMonitorTimeout = 10 * time.Second

var monitorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// AuthType names the credential strategy attached to a monitor's requests.
type AuthType string

const (
	AuthNone          AuthType = ""
	AuthBearer        AuthType = AuthType(monitor.AuthBearer)
	AuthBasic         AuthType = AuthType(monitor.AuthBasic)
	AuthAPIKey        AuthType = AuthType(monitor.AuthAPIKey)
	AuthCookie        AuthType = AuthType(monitor.AuthCookie)
	AuthAuthorization AuthType = AuthType(monitor.AuthAuthorization)
)

// Monitor is one remote balance endpoint to poll.
//
// Monitor is immutable after creation via [NewMonitor]. Getters return
// copies of mutable data so a monitor cannot be changed after construction.
// Credentials are never exposed through getters.
type Monitor struct {
	cfg monitor.Config
}

// ID returns the monitor's identifier, used as the cache and lookup key.
func (m Monitor) ID() string {
	return m.cfg.ID
}

// Name returns the monitor's display name.
func (m Monitor) Name() string {
	return m.cfg.Name
}

// URL returns the endpoint that is polled.
func (m Monitor) URL() string {
	return m.cfg.URL
}

// AuthType returns the configured credential strategy, or [AuthNone].
func (m Monitor) AuthType() AuthType {
	if m.cfg.Auth == nil {
		return AuthNone
	}
	return AuthType(m.cfg.Auth.Type)
}

// DisplayUnit returns the unit shown next to the balance, e.g. "USD".
func (m Monitor) DisplayUnit() string {
	return m.cfg.DisplayUnit
}

// Total returns the configured total and whether one is set.
func (m Monitor) Total() (float64, bool) {
	if m.cfg.Total == nil {
		return 0, false
	}
	return *m.cfg.Total, true
}

// BalanceField returns the dotted path of the balance, "balance" by default.
func (m Monitor) BalanceField() string {
	return m.cfg.BalanceFieldOrDefault()
}

// ExpiryField returns the dotted path of the expiry, or "".
func (m Monitor) ExpiryField() string {
	return m.cfg.ExpiryField
}

// TotalField returns the dotted path of the total, or "".
func (m Monitor) TotalField() string {
	return m.cfg.TotalField
}

// Reverse reports whether the extracted value is an amount used.
func (m Monitor) Reverse() bool {
	return m.cfg.Reverse
}

// Decimals returns the number of fraction digits used for display.
func (m Monitor) Decimals() int {
	return m.cfg.Decimals
}

// Timeout returns the per-request timeout. Defaults to 10 seconds.
func (m Monitor) Timeout() time.Duration {
	return m.cfg.Timeout
}

// config returns a deep copy of the internal definition.
func (m Monitor) config() monitor.Config {
	cfg := m.cfg
	if cfg.Total != nil {
		t := *cfg.Total
		cfg.Total = &t
	}
	if cfg.Auth != nil {
		a := *cfg.Auth
		a.Headers = copyMap(a.Headers)
		cfg.Auth = &a
	}
	return cfg
}

// NewMonitor creates a [Monitor] with the given id, name, URL and options.
//
// The id must match [A-Za-z0-9_-]+ and is used as the cache key. The rawURL
// must be an absolute http:// or https:// URL.
//
// Example:
//
//	m, err := balanceboard.NewMonitor("openai", "OpenAI credits", "https://api.example.com/credits",
//	    balanceboard.WithBearerToken(os.Getenv("OPENAI_KEY")),
//	    balanceboard.WithBalanceField("data.remaining"),
//	    balanceboard.WithDisplayUnit("USD"),
//	)
func NewMonitor(id, name, rawURL string, opts ...MonitorOption) (Monitor, error) {
	if id == "" {
		return Monitor{}, errors.New("monitor id cannot be empty")
	}
	if !monitorIDPattern.MatchString(id) {
		return Monitor{}, fmt.Errorf("monitor id %q must contain only letters, digits, '_' or '-'", id)
	}
	if name == "" {
		return Monitor{}, errors.New("monitor name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Monitor{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Monitor{}, errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsedURL.Host == "" {
		return Monitor{}, errors.New("URL must have a host")
	}

	cfg := &monitorConfig{
		cfg: monitor.Config{
			ID:       id,
			Name:     name,
			URL:      rawURL,
			Decimals: monitor.DefaultDecimals,
			Timeout:  defaultMonitorTimeout,
		},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Monitor{}, fmt.Errorf("monitor %q: %w", id, err)
		}
	}

	if len(cfg.headers) > 0 {
		if cfg.cfg.Auth == nil {
			cfg.cfg.Auth = &monitor.Auth{}
		}
		cfg.cfg.Auth.Headers = cfg.headers
	}

	return Monitor{cfg: cfg.cfg}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
