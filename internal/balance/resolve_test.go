package balance

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
	"github.com/jpalmerr/balanceboard/internal/value"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func ptr(f float64) *float64 { return &f }

func decode(t *testing.T, body string) value.Value {
	t.Helper()
	v, err := value.Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", body, err)
	}
	return v
}

func TestResolve_EndToEndExample(t *testing.T) {
	cfg := monitor.Config{
		ID:           "acct1",
		URL:          "https://x/y",
		BalanceField: "data.remaining",
		Total:        ptr(500),
	}

	got := Resolve(decode(t, `{"data":{"remaining":120}}`), cfg, fixedNow)

	if got.Balance != 120 {
		t.Errorf("Balance = %v, want 120", got.Balance)
	}
	if got.Total == nil || *got.Total != 500 {
		t.Errorf("Total = %v, want 500", got.Total)
	}
	if got.Expiry != nil {
		t.Errorf("Expiry = %v, want absent", *got.Expiry)
	}
	if got.Timestamp != fixedNow.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", got.Timestamp, fixedNow.UnixMilli())
	}
}

func TestResolve_Reverse(t *testing.T) {
	tests := []struct {
		name    string
		reverse bool
		want    float64
	}{
		{"reverse subtracts used from total", true, 70},
		{"direct keeps raw balance", false, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := monitor.Config{Total: ptr(100), Reverse: tt.reverse}
			got := Resolve(decode(t, `{"balance": 30}`), cfg, fixedNow)
			if got.Balance != tt.want {
				t.Errorf("Balance = %v, want %v", got.Balance, tt.want)
			}
		})
	}
}

// TestResolve_ReverseOverflow verifies that total - used overflowing to
// infinity does not panic and is rejected by Check.
func TestResolve_ReverseOverflow(t *testing.T) {
	cfg := monitor.Config{Total: ptr(1e308), Reverse: true}
	got := Resolve(decode(t, `{"balance": -1e308}`), cfg, fixedNow)

	if !math.IsInf(got.Balance, 1) {
		t.Fatalf("Balance = %v, want +Inf", got.Balance)
	}
	if err := Check(got); !errors.Is(err, ErrNotFinite) {
		t.Errorf("Check() = %v, want ErrNotFinite", err)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		resp    monitor.BalanceResponse
		wantErr bool
	}{
		{"finite amounts", monitor.BalanceResponse{Balance: 70, Total: ptr(100), Expiry: ptr(5)}, false},
		{"absent total and expiry", monitor.BalanceResponse{Balance: -3}, false},
		{"infinite balance", monitor.BalanceResponse{Balance: math.Inf(-1)}, true},
		{"nan balance", monitor.BalanceResponse{Balance: math.NaN()}, true},
		{"infinite total", monitor.BalanceResponse{Balance: 1, Total: ptr(math.Inf(1))}, true},
		{"nan expiry", monitor.BalanceResponse{Balance: 1, Expiry: ptr(math.NaN())}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolve_ReverseUsesTotalField(t *testing.T) {
	cfg := monitor.Config{
		BalanceField: "usage.used",
		TotalField:   "usage.limit",
		Total:        ptr(1),
		Reverse:      true,
	}

	got := Resolve(decode(t, `{"usage":{"used":"25.5","limit":100}}`), cfg, fixedNow)
	if got.Balance != 74.5 {
		t.Errorf("Balance = %v, want 74.5", got.Balance)
	}
	if got.Total == nil || *got.Total != 100 {
		t.Errorf("Total = %v, want 100 from the response", got.Total)
	}
}

func TestResolve_ReverseWithoutTotalPassesThrough(t *testing.T) {
	cfg := monitor.Config{Reverse: true}

	got := Resolve(decode(t, `{"balance": 30}`), cfg, fixedNow)
	if got.Balance != 30 {
		t.Errorf("Balance = %v, want raw 30", got.Balance)
	}
	if !ReverseSkipped(cfg, got) {
		t.Error("ReverseSkipped() = false, want true")
	}
}

func TestResolve_TotalFallback(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		cfgTotal  *float64
		wantTotal *float64
	}{
		{"field missing uses config", `{"balance":1}`, ptr(50), ptr(50)},
		{"field zero uses config", `{"balance":1,"t":0}`, ptr(50), ptr(50)},
		{"field present wins", `{"balance":1,"t":"80"}`, ptr(50), ptr(80)},
		{"nothing available", `{"balance":1}`, nil, nil},
		{"zero and no config", `{"balance":1,"t":0}`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := monitor.Config{TotalField: "t", Total: tt.cfgTotal}
			got := Resolve(decode(t, tt.body), cfg, fixedNow)
			switch {
			case tt.wantTotal == nil && got.Total != nil:
				t.Errorf("Total = %v, want absent", *got.Total)
			case tt.wantTotal != nil && (got.Total == nil || *got.Total != *tt.wantTotal):
				t.Errorf("Total = %v, want %v", got.Total, *tt.wantTotal)
			}
		})
	}
}

func TestResolve_BalanceCoercion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{"number", `{"balance": 12.75}`, 12.75},
		{"numeric string", `{"balance": "42.5"}`, 42.5},
		{"string with unit", `{"balance": " 9.99 USD"}`, 9.99},
		{"non numeric string", `{"balance": "n/a"}`, 0},
		{"empty string", `{"balance": ""}`, 0},
		{"missing", `{}`, 0},
		{"null", `{"balance": null}`, 0},
		{"bool", `{"balance": true}`, 0},
		{"object", `{"balance": {"v": 1}}`, 0},
		{"negative", `{"balance": "-3"}`, -3},
		{"root is array", `[1,2,3]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(decode(t, tt.body), monitor.Config{}, fixedNow)
			if got.Balance != tt.want {
				t.Errorf("Balance = %v, want %v", got.Balance, tt.want)
			}
		})
	}
}

func TestResolve_ExpiryCoercion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *float64
	}{
		{"number", `{"e": 5}`, ptr(5)},
		{"zero number", `{"e": 0}`, ptr(0)},
		{"string", `{"e": "2.5"}`, ptr(2.5)},
		{"unparseable string", `{"e": "soon"}`, ptr(0)},
		{"missing", `{}`, nil},
		{"null", `{"e": null}`, nil},
		{"empty string", `{"e": ""}`, nil},
		{"false", `{"e": false}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(decode(t, tt.body), monitor.Config{ExpiryField: "e"}, fixedNow)
			switch {
			case tt.want == nil && got.Expiry != nil:
				t.Errorf("Expiry = %v, want absent", *got.Expiry)
			case tt.want != nil && (got.Expiry == nil || *got.Expiry != *tt.want):
				t.Errorf("Expiry = %v, want %v", got.Expiry, *tt.want)
			}
		})
	}
}

func TestResolve_ExpiryIgnoredWithoutField(t *testing.T) {
	got := Resolve(decode(t, `{"balance":1,"expiry":9}`), monitor.Config{}, fixedNow)
	if got.Expiry != nil {
		t.Errorf("Expiry = %v, want absent when no expiry field is configured", *got.Expiry)
	}
}

func TestResolve_Currency(t *testing.T) {
	tests := []struct {
		name string
		body string
		unit string
		want string
	}{
		{"from response", `{"currency":"EUR"}`, "USD", "EUR"},
		{"falls back to unit", `{}`, "USD", "USD"},
		{"empty response currency", `{"currency":""}`, "USD", "USD"},
		{"non string currency", `{"currency":1}`, "USD", "USD"},
		{"neither", `{}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(decode(t, tt.body), monitor.Config{DisplayUnit: tt.unit}, fixedNow)
			if got.Currency != tt.want {
				t.Errorf("Currency = %q, want %q", got.Currency, tt.want)
			}
		})
	}
}

func TestResolve_DoesNotAliasConfigTotal(t *testing.T) {
	cfg := monitor.Config{Total: ptr(10)}
	got := Resolve(decode(t, `{}`), cfg, fixedNow)
	*got.Total = 99
	if *cfg.Total != 10 {
		t.Error("Resolve() returned a pointer aliasing the config total")
	}
}

func TestParseLeadingFloat(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12", 12, true},
		{"  3.5abc", 3.5, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"+7", 7, true},
		{"1e3x", 1000, true},
		{"1e", 1, true},
		{"abc", 0, false},
		{"", 0, false},
		{"Infinity", 0, false},
		{"1e999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLeadingFloat(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseLeadingFloat(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
