// Package store keeps the latest monitor status snapshot and publishes it.
//
// The main components are:
//
//   - [Store]: Interface defining snapshot storage and subscription
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//
// Snapshots are replaced atomically by the scheduler after each refresh cycle.
// Subscribers (the SSE handler, status callbacks) receive every snapshot over
// a buffered channel; slow subscribers skip intermediate snapshots rather
// than block the scheduler.
package store
