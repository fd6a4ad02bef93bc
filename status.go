package balanceboard

import (
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

// State is the lifecycle state of a monitor.
type State string

const (
	// StateLoading is the state of every monitor before its first cycle completes.
	StateLoading State = State(monitor.StateLoading)

	// StateSuccess indicates the balance was fetched (or served from cache).
	StateSuccess State = State(monitor.StateSuccess)

	// StateError indicates the fetch failed. Error carries the message.
	StateError State = State(monitor.StateError)
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// MonitorStatus is the outcome of one refresh cycle for a single monitor.
//
// Statuses are rebuilt every cycle. An error status keeps the monitor's
// configured total, unit and decimals so it can still be rendered.
type MonitorStatus struct {
	ID   string
	Name string

	// Balance is the resolved balance; zero while loading or on error.
	Balance float64

	// FormattedBalance is Balance rendered with Decimals fraction digits.
	FormattedBalance string

	// Total and Expiry are nil when absent.
	Total  *float64
	Expiry *float64

	DisplayUnit string
	Decimals    int

	// LastUpdated is when the balance was fetched, or when the error
	// occurred. Zero while loading.
	LastUpdated time.Time

	State State
	Error string
}

func toPublicStatus(st monitor.Status) MonitorStatus {
	var updated time.Time
	if st.LastUpdated != 0 {
		updated = time.UnixMilli(st.LastUpdated)
	}
	return MonitorStatus{
		ID:               st.ID,
		Name:             st.Name,
		Balance:          st.Balance,
		FormattedBalance: st.FormattedBalance,
		Total:            copyFloat(st.Total),
		Expiry:           copyFloat(st.Expiry),
		DisplayUnit:      st.DisplayUnit,
		Decimals:         st.Decimals,
		LastUpdated:      updated,
		State:            State(st.Status),
		Error:            st.Error,
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// FormatAmount renders v with the given number of fraction digits, rounding
// half away from zero. Negative decimals are treated as zero.
func FormatAmount(v float64, decimals int) string {
	return monitor.FormatAmount(v, decimals)
}
