package monitor

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBalanceField is the path used when a monitor sets no balance field.
	DefaultBalanceField = "balance"

	// DefaultDecimals is the number of fraction digits used for display.
	DefaultDecimals = 2

	// MaxDecimals bounds the fraction digits a monitor may request.
	MaxDecimals = 18
)

// AuthType names one outbound credential strategy.
type AuthType string

const (
	AuthBearer        AuthType = "bearer"
	AuthBasic         AuthType = "basic"
	AuthAPIKey        AuthType = "apikey"
	AuthCookie        AuthType = "cookie"
	AuthAuthorization AuthType = "authorization"
)

// Valid reports whether t is one of the known strategies.
func (t AuthType) Valid() bool {
	switch t {
	case AuthBearer, AuthBasic, AuthAPIKey, AuthCookie, AuthAuthorization:
		return true
	default:
		return false
	}
}

// Auth describes how credentials are attached to a monitor's requests.
//
// Exactly one strategy is selected by Type; only the fields belonging to that
// strategy are read. Headers are merged into every request regardless of Type.
type Auth struct {
	Type          AuthType          `json:"type,omitempty"`
	Token         string            `json:"token,omitempty"`
	Username      string            `json:"username,omitempty"`
	Password      string            `json:"password,omitempty"`
	APIKey        string            `json:"apiKey,omitempty"`
	Cookie        string            `json:"cookie,omitempty"`
	Authorization string            `json:"authorization,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// Config is a validated monitor definition.
type Config struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Auth         *Auth         `json:"auth,omitempty"`
	DisplayUnit  string        `json:"displayUnit,omitempty"`
	Total        *float64      `json:"total,omitempty"`
	BalanceField string        `json:"balanceField,omitempty"`
	ExpiryField  string        `json:"expiryField,omitempty"`
	TotalField   string        `json:"totalField,omitempty"`
	Reverse      bool          `json:"reverse"`
	Decimals     int           `json:"decimals"`
	Timeout      time.Duration `json:"-"`
}

// BalanceFieldOrDefault returns the configured balance path or "balance".
func (c Config) BalanceFieldOrDefault() string {
	if c.BalanceField == "" {
		return DefaultBalanceField
	}
	return c.BalanceField
}

// Redacted returns a copy of c without credentials, suitable for persisting.
func (c Config) Redacted() Config {
	c.Auth = nil
	if c.Total != nil {
		t := *c.Total
		c.Total = &t
	}
	return c
}

// BalanceResponse is the resolved, cache-worthy result of one fetch.
// Timestamp is milliseconds since the Unix epoch.
type BalanceResponse struct {
	Balance   float64  `json:"balance"`
	Total     *float64 `json:"total,omitempty"`
	Expiry    *float64 `json:"expiry,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// State is the lifecycle state of a monitor in the status collection.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Status is the presentation-facing state of one monitor.
//
// Statuses are rebuilt every cycle and replaced wholesale; they are never
// mutated in place.
type Status struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Balance          float64  `json:"balance"`
	FormattedBalance string   `json:"formattedBalance"`
	Total            *float64 `json:"total,omitempty"`
	Expiry           *float64 `json:"expiry,omitempty"`
	DisplayUnit      string   `json:"displayUnit"`
	Decimals         int      `json:"decimals"`
	LastUpdated      int64    `json:"lastUpdated"`
	Status           State    `json:"status"`
	Error            string   `json:"error,omitempty"`
}

// LoadingStatus is the status of a monitor before its first cycle completes.
func LoadingStatus(cfg Config) Status {
	return Status{
		ID:               cfg.ID,
		Name:             cfg.Name,
		FormattedBalance: FormatAmount(0, cfg.Decimals),
		Total:            cfg.Total,
		DisplayUnit:      cfg.DisplayUnit,
		Decimals:         cfg.Decimals,
		Status:           StateLoading,
	}
}

// SuccessStatus builds the status for a resolved balance.
func SuccessStatus(cfg Config, resp BalanceResponse) Status {
	total := resp.Total
	if total == nil || *total == 0 {
		total = cfg.Total
	}
	return Status{
		ID:               cfg.ID,
		Name:             cfg.Name,
		Balance:          resp.Balance,
		FormattedBalance: FormatAmount(resp.Balance, cfg.Decimals),
		Total:            total,
		Expiry:           resp.Expiry,
		DisplayUnit:      cfg.DisplayUnit,
		Decimals:         cfg.Decimals,
		LastUpdated:      resp.Timestamp,
		Status:           StateSuccess,
	}
}

// ErrorStatus builds the status for a failed fetch. The configured total,
// unit and decimals are kept so the monitor can still be rendered.
func ErrorStatus(cfg Config, err error, now time.Time) Status {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Status{
		ID:               cfg.ID,
		Name:             cfg.Name,
		FormattedBalance: FormatAmount(0, cfg.Decimals),
		Total:            cfg.Total,
		DisplayUnit:      cfg.DisplayUnit,
		Decimals:         cfg.Decimals,
		LastUpdated:      now.UnixMilli(),
		Status:           StateError,
		Error:            msg,
	}
}

// FormatAmount renders v with exactly decimals fraction digits, clamped to
// 0..MaxDecimals. NaN and
// infinities have no fixed-point form and are rendered as "NaN", "+Inf"
// or "-Inf".
func FormatAmount(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	decimals = min(max(decimals, 0), MaxDecimals)
	return decimal.NewFromFloat(v).StringFixed(int32(decimals))
}
