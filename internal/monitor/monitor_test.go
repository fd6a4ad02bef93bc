package monitor

import (
	"errors"
	"math"
	"testing"
	"time"
)

func ptr(f float64) *float64 { return &f }

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"two places", 120, 2, "120.00"},
		{"rounds half up", 1.005, 2, "1.01"},
		{"zero places", 99.6, 0, "100"},
		{"negative decimals clamp", 12.34, -1, "12"},
		{"negative value", -3.5, 1, "-3.5"},
		{"decimals clamp to maximum", 1.5, 40, "1.500000000000000000"},
		{"positive infinity", math.Inf(1), 2, "+Inf"},
		{"negative infinity", math.Inf(-1), 2, "-Inf"},
		{"not a number", math.NaN(), 2, "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.value, tt.decimals); got != tt.want {
				t.Errorf("FormatAmount(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestLoadingStatus(t *testing.T) {
	cfg := Config{ID: "a", Name: "A", Total: ptr(500), DisplayUnit: "USD", Decimals: 2}

	st := LoadingStatus(cfg)
	if st.Status != StateLoading {
		t.Errorf("Status = %q, want loading", st.Status)
	}
	if st.Balance != 0 {
		t.Errorf("Balance = %v, want 0", st.Balance)
	}
	if st.Total == nil || *st.Total != 500 {
		t.Errorf("Total = %v, want 500", st.Total)
	}
	if st.LastUpdated != 0 {
		t.Errorf("LastUpdated = %d, want 0", st.LastUpdated)
	}
}

func TestSuccessStatus_FallsBackToConfiguredTotal(t *testing.T) {
	cfg := Config{ID: "a", Total: ptr(500), Decimals: 2}
	resp := BalanceResponse{Balance: 120, Timestamp: 42}

	st := SuccessStatus(cfg, resp)
	if st.Status != StateSuccess {
		t.Errorf("Status = %q, want success", st.Status)
	}
	if st.Total == nil || *st.Total != 500 {
		t.Errorf("Total = %v, want 500", st.Total)
	}
	if st.FormattedBalance != "120.00" {
		t.Errorf("FormattedBalance = %q, want 120.00", st.FormattedBalance)
	}
	if st.LastUpdated != 42 {
		t.Errorf("LastUpdated = %d, want 42", st.LastUpdated)
	}
}

func TestErrorStatus(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	cfg := Config{ID: "b", DisplayUnit: "CNY", Decimals: 3, Total: ptr(10)}

	st := ErrorStatus(cfg, errors.New("HTTP 500: Internal Server Error"), now)
	if st.Status != StateError {
		t.Errorf("Status = %q, want error", st.Status)
	}
	if st.Error != "HTTP 500: Internal Server Error" {
		t.Errorf("Error = %q", st.Error)
	}
	if st.LastUpdated != now.UnixMilli() {
		t.Errorf("LastUpdated = %d, want %d", st.LastUpdated, now.UnixMilli())
	}
	if st.DisplayUnit != "CNY" || st.Decimals != 3 || st.Total == nil || *st.Total != 10 {
		t.Errorf("configured shell not preserved: %+v", st)
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Config{
		ID:   "a",
		Auth: &Auth{Type: AuthBearer, Token: "secret"},
	}

	red := cfg.Redacted()
	if red.Auth != nil {
		t.Error("Redacted() kept auth")
	}
	if cfg.Auth == nil {
		t.Error("Redacted() mutated the original")
	}
}

func TestConfig_BalanceFieldOrDefault(t *testing.T) {
	if got := (Config{}).BalanceFieldOrDefault(); got != "balance" {
		t.Errorf("default = %q, want balance", got)
	}
	if got := (Config{BalanceField: "data.left"}).BalanceFieldOrDefault(); got != "data.left" {
		t.Errorf("configured = %q, want data.left", got)
	}
}
