// Package monitor defines the data model shared by the BalanceBoard engine.
//
// This package is internal to BalanceBoard. It holds the plain, serialisable
// shapes that flow between the fetcher, resolver, cache and scheduler:
//
//   - [Config]: a validated monitor definition (the cache and lookup key is ID)
//   - [Auth]: the outbound credential strategy for a monitor
//   - [BalanceResponse]: the resolved result of one fetch
//   - [Status]: the presentation-facing state of a monitor
//
// Users of the balanceboard library configure monitors through the root
// package; these types are converted at the package boundary.
package monitor
