package store

import "github.com/jpalmerr/balanceboard/internal/monitor"

// Store holds the current status snapshot and fans it out to subscribers.
//
// A snapshot is the complete, ordered list of monitor statuses produced by
// one refresh cycle. Snapshots are replaced whole; readers never see a mix
// of two cycles.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// ReplaceAll swaps in a new snapshot and notifies all subscribers.
	ReplaceAll(statuses []monitor.Status)

	// GetAll returns the current snapshot in configuration order.
	// The returned slice is a copy; modifications do not affect the store.
	GetAll() []monitor.Status

	// Get returns the status of a single monitor from the current snapshot.
	Get(id string) (monitor.Status, bool)

	// Subscribe returns a channel that receives every new snapshot.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan []monitor.Status

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan []monitor.Status)
}
