// Package balance turns a decoded response body into a normalised
// [monitor.BalanceResponse] according to a monitor's field paths and
// reverse setting.
package balance

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
	"github.com/jpalmerr/balanceboard/internal/value"
)

// currencyField is read from the top level of every response.
const currencyField = "currency"

// leadingFloat matches the longest numeric prefix accepted by a lenient
// float parse: "12.5 USD" -> 12.5, ".5" -> 0.5, "1e3x" -> 1000.
var leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// Resolve extracts balance, total and expiry from doc.
//
// Steps, in order:
//  1. balance from cfg.BalanceField (default "balance"); strings are parsed
//     leniently, anything unparseable or absent becomes 0
//  2. expiry from cfg.ExpiryField when set; absent, null, "" and false stay absent
//  3. total from cfg.TotalField when set; absent or zero falls back to cfg.Total
//  4. with cfg.Reverse and a non-zero total, the raw balance is the amount
//     used and the result is total - used; with no total the raw value is kept
//  5. currency from the top-level "currency" string, else cfg.DisplayUnit
//
// Resolve never fails. Arithmetic can still overflow in reverse mode, so
// callers pass the result through [Check] before displaying it.
func Resolve(doc value.Value, cfg monitor.Config, now time.Time) monitor.BalanceResponse {
	raw, _ := doc.Lookup(cfg.BalanceFieldOrDefault())
	balance := toNumber(raw)

	var expiry *float64
	if cfg.ExpiryField != "" {
		v, _ := doc.Lookup(cfg.ExpiryField)
		expiry = toOptionalNumber(v)
	}

	var total *float64
	if cfg.TotalField != "" {
		v, _ := doc.Lookup(cfg.TotalField)
		total = toOptionalNumber(v)
	}
	if total == nil || *total == 0 {
		total = copyFloat(cfg.Total)
	}
	if total != nil && *total == 0 {
		total = nil
	}

	if cfg.Reverse && total != nil {
		balance = *total - balance
	}

	currency := cfg.DisplayUnit
	if c, ok := doc.Lookup(currencyField); ok {
		if s, isStr := c.Str(); isStr && s != "" {
			currency = s
		}
	}

	return monitor.BalanceResponse{
		Balance:   balance,
		Total:     total,
		Expiry:    expiry,
		Currency:  currency,
		Timestamp: now.UnixMilli(),
	}
}

// ErrNotFinite is wrapped by Check when a resolved amount is NaN or infinite.
var ErrNotFinite = errors.New("resolved amount is not a finite number")

// Check reports an error when the balance, total or expiry of resp is NaN
// or infinite, which happens when total - used overflows.
func Check(resp monitor.BalanceResponse) error {
	if !finite(resp.Balance) {
		return fmt.Errorf("balance %v: %w", resp.Balance, ErrNotFinite)
	}
	if resp.Total != nil && !finite(*resp.Total) {
		return fmt.Errorf("total %v: %w", *resp.Total, ErrNotFinite)
	}
	if resp.Expiry != nil && !finite(*resp.Expiry) {
		return fmt.Errorf("expiry %v: %w", *resp.Expiry, ErrNotFinite)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ReverseSkipped reports whether cfg asked for reverse computation but no
// total was available, so the raw value was passed through.
func ReverseSkipped(cfg monitor.Config, resp monitor.BalanceResponse) bool {
	return cfg.Reverse && resp.Total == nil
}

// toNumber coerces a value to a float, defaulting to 0.
func toNumber(v value.Value) float64 {
	if f, ok := v.Float(); ok {
		return f
	}
	if s, ok := v.Str(); ok {
		if f, ok := ParseLeadingFloat(s); ok {
			return f
		}
	}
	return 0
}

// toOptionalNumber coerces a value to a float pointer. Falsy non-numbers
// (undefined, null, "", false) are absent; other unparseable values are 0.
func toOptionalNumber(v value.Value) *float64 {
	switch v.Kind() {
	case value.Undefined, value.Null:
		return nil
	case value.Number:
		f, _ := v.Float()
		return &f
	case value.String:
		s, _ := v.Str()
		if s == "" {
			return nil
		}
	case value.Bool:
		if b, _ := v.Bool(); !b {
			return nil
		}
	}
	f := toNumber(v)
	return &f
}

// ParseLeadingFloat parses the numeric prefix of s after leading whitespace.
// Infinity and NaN are rejected so results always serialise as JSON.
func ParseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
