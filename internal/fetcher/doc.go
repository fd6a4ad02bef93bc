// Package fetcher performs the authenticated network call for a monitor.
//
// This package is internal to BalanceBoard. It builds the outbound header
// set from a monitor's auth strategy, sends the request through a
// [Forwarder] and decodes the JSON body for the balance resolver.
//
// The main components are:
//
//   - [BuildHeaders]: credential injection per auth strategy
//   - [Forwarder]: pass-through request relay ([HTTPForwarder], [ProxyForwarder])
//   - [Fetcher]: header building, forwarding and decoding for one monitor
//   - [TransportError], [DecodeError]: the failures that escape a fetch
package fetcher
