package store

import (
	"sync"

	"github.com/jpalmerr/balanceboard/internal/monitor"
)

const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive snapshots via buffered channels. Sends never block: if
// a subscriber's buffer is full, its oldest pending snapshot is discarded to
// make room, so a slow consumer always catches up to the latest state.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses []monitor.Status
	index    map[string]int

	subMu       sync.RWMutex
	subscribers map[chan []monitor.Status]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index:       make(map[string]int),
		subscribers: make(map[chan []monitor.Status]struct{}),
	}
}

// ReplaceAll stores a copy of statuses as the current snapshot and
// publishes it.
func (m *MemoryStore) ReplaceAll(statuses []monitor.Status) {
	snapshot := copyStatuses(statuses)
	index := make(map[string]int, len(snapshot))
	for i, s := range snapshot {
		index[s.ID] = i
	}

	m.mu.Lock()
	m.statuses = snapshot
	m.index = index
	m.mu.Unlock()

	m.notifySubscribers(snapshot)
}

// GetAll returns a copy of the current snapshot.
func (m *MemoryStore) GetAll() []monitor.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyStatuses(m.statuses)
}

// Get returns the current status for id.
func (m *MemoryStore) Get(id string) (monitor.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return monitor.Status{}, false
	}
	return m.statuses[i], true
}

// Subscribe creates a new subscription.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan []monitor.Status {
	ch := make(chan []monitor.Status, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan []monitor.Status) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(snapshot []monitor.Status) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		// each subscriber gets its own copy so consumers can't race on it
		msg := copyStatuses(snapshot)
		select {
		case ch <- msg:
			continue
		default:
		}
		// full: drop the oldest pending snapshot and retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func copyStatuses(in []monitor.Status) []monitor.Status {
	if in == nil {
		return []monitor.Status{}
	}
	out := make([]monitor.Status, len(in))
	copy(out, in)
	return out
}
