// Package poller runs the scheduled refresh of all monitors.
//
// A [Scheduler] fans each cycle out across a bounded worker pool. For every
// monitor it consults the cache, fetches and resolves on a miss or forced
// refresh, and writes the new balance back. Failures never abort a cycle:
// they become error statuses for the affected monitor only.
//
// Users of the balanceboard library should not need to interact with this
// package directly. Configuration is done through the main balanceboard package.
package poller
