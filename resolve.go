package balanceboard

import (
	"time"

	"github.com/jpalmerr/balanceboard/internal/balance"
	"github.com/jpalmerr/balanceboard/internal/fetcher"
	"github.com/jpalmerr/balanceboard/internal/value"
)

// Balance is a resolved response: the balance, optional total and expiry,
// and the currency reported by the upstream (or the monitor's display unit).
type Balance struct {
	Balance   float64
	Total     *float64
	Expiry    *float64
	Currency  string
	Timestamp time.Time
}

// ResolveBalance extracts a [Balance] from a JSON response body the same way
// the scheduler does for m.
//
// Missing or malformed fields never fail: an absent balance resolves to 0
// and an absent expiry or total stays nil. The only error is a body that is
// not valid JSON.
//
// Example:
//
//	m, _ := balanceboard.NewMonitor("acct1", "Account", "https://x/y",
//	    balanceboard.WithBalanceField("data.remaining"),
//	    balanceboard.WithTotal(500),
//	)
//	b, _ := balanceboard.ResolveBalance([]byte(`{"data":{"remaining":120}}`), m)
//	// b.Balance == 120, *b.Total == 500
func ResolveBalance(body []byte, m Monitor) (Balance, error) {
	doc, err := value.Decode(body)
	if err != nil {
		return Balance{}, &fetcher.DecodeError{Err: err}
	}
	resp := balance.Resolve(doc, m.cfg, time.Now())
	return Balance{
		Balance:   resp.Balance,
		Total:     copyFloat(resp.Total),
		Expiry:    copyFloat(resp.Expiry),
		Currency:  resp.Currency,
		Timestamp: time.UnixMilli(resp.Timestamp),
	}, nil
}

// LookupField resolves a dot-separated path against a JSON body and returns
// the value as text. Objects are addressed by key and arrays by index, so
// "data.items.0.amount" is valid. It reports false when the body is not JSON,
// the path is empty, or any segment is missing.
func LookupField(body []byte, path string) (string, bool) {
	doc, err := value.Decode(body)
	if err != nil {
		return "", false
	}
	v, ok := doc.Lookup(path)
	if !ok {
		return "", false
	}
	return v.String(), true
}
