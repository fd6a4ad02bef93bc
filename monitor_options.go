package balanceboard

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

// monitorConfig holds mutable state during monitor construction.
type monitorConfig struct {
	cfg     monitor.Config
	headers map[string]string
}

// setAuth selects a credential strategy. Only one strategy may be chosen.
func (c *monitorConfig) setAuth(a monitor.Auth) error {
	if c.cfg.Auth != nil && c.cfg.Auth.Type != "" {
		return fmt.Errorf("auth strategy already set to %q", c.cfg.Auth.Type)
	}
	c.cfg.Auth = &a
	return nil
}

// MonitorOption is a function that configures a [Monitor] during construction.
//
// Options return an error if validation fails, which makes [NewMonitor]
// fail as a whole.
type MonitorOption func(*monitorConfig) error

// WithBearerToken sends "Authorization: Bearer <token>".
func WithBearerToken(token string) MonitorOption {
	return func(c *monitorConfig) error {
		return c.setAuth(monitor.Auth{Type: monitor.AuthBearer, Token: token})
	}
}

// WithBasicAuth sends "Authorization: Basic <base64(username:password)>".
func WithBasicAuth(username, password string) MonitorOption {
	return func(c *monitorConfig) error {
		return c.setAuth(monitor.Auth{Type: monitor.AuthBasic, Username: username, Password: password})
	}
}

// WithAPIKey sends "X-API-Key: <key>".
func WithAPIKey(key string) MonitorOption {
	return func(c *monitorConfig) error {
		return c.setAuth(monitor.Auth{Type: monitor.AuthAPIKey, APIKey: key})
	}
}

// WithCookie sends "Cookie: <value>".
func WithCookie(value string) MonitorOption {
	return func(c *monitorConfig) error {
		return c.setAuth(monitor.Auth{Type: monitor.AuthCookie, Cookie: value})
	}
}

// WithAuthorization sends the raw header value as "Authorization: <value>".
func WithAuthorization(value string) MonitorOption {
	return func(c *monitorConfig) error {
		return c.setAuth(monitor.Auth{Type: monitor.AuthAuthorization, Authorization: value})
	}
}

// WithAuthHeaders adds custom HTTP headers to every request for this monitor,
// in addition to any credential strategy.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	m, err := balanceboard.NewMonitor("acct", "Account", url,
//	    balanceboard.WithAuthHeaders("X-Org-ID", "org_123"),
//	)
func WithAuthHeaders(keyValues ...string) MonitorOption {
	return func(c *monitorConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithAuthHeaders requires an even number of arguments (key-value pairs)")
		}
		if c.headers == nil {
			c.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			c.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithDisplayUnit sets the unit shown next to the balance. It is also used
// as the currency when the response carries none.
func WithDisplayUnit(unit string) MonitorOption {
	return func(c *monitorConfig) error {
		c.cfg.DisplayUnit = unit
		return nil
	}
}

// WithTotal sets a fixed total, used when no total field is configured or
// the response does not carry one.
//
// Returns an error if total is not a positive finite number.
func WithTotal(total float64) MonitorOption {
	return func(c *monitorConfig) error {
		if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
			return errors.New("total must be a positive number")
		}
		c.cfg.Total = &total
		return nil
	}
}

// WithBalanceField sets the dotted path of the balance in the response,
// e.g. "data.usage.remaining". Defaults to "balance".
func WithBalanceField(path string) MonitorOption {
	return func(c *monitorConfig) error {
		c.cfg.BalanceField = path
		return nil
	}
}

// WithExpiryField sets the dotted path of the expiry in the response.
func WithExpiryField(path string) MonitorOption {
	return func(c *monitorConfig) error {
		c.cfg.ExpiryField = path
		return nil
	}
}

// WithTotalField sets the dotted path of the total in the response.
func WithTotalField(path string) MonitorOption {
	return func(c *monitorConfig) error {
		c.cfg.TotalField = path
		return nil
	}
}

// WithReverse treats the extracted value as the amount used, so the
// displayed balance is total minus used. Without a total the raw value is
// shown unchanged.
func WithReverse() MonitorOption {
	return func(c *monitorConfig) error {
		c.cfg.Reverse = true
		return nil
	}
}

// WithDecimals sets the number of fraction digits used for display.
// Defaults to 2.
//
// Returns an error if n is outside 0 to 18.
func WithDecimals(n int) MonitorOption {
	return func(c *monitorConfig) error {
		if n < 0 || n > monitor.MaxDecimals {
			return fmt.Errorf("decimals must be between 0 and %d, got %d", monitor.MaxDecimals, n)
		}
		c.cfg.Decimals = n
		return nil
	}
}

// WithTimeout sets the request timeout for this monitor.
// Defaults to 10 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) MonitorOption {
	return func(c *monitorConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.cfg.Timeout = d
		return nil
	}
}
