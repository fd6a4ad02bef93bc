// Package cache keeps the last resolved balance of each monitor for a fixed
// time-to-live.
//
// Entries are persisted as JSON under "<prefix><id>" through a [Storage]
// capability, so the same [Cache] can sit on process memory, a local JSON
// file or Redis. Expiry is lazy: an entry older than the TTL is deleted when
// it is next read.
//
// Storage failures never reach callers. They are logged and behave as cache
// misses, and a nil [Storage] turns every operation into a no-op.
package cache
