// Package server provides the HTTP server for the BalanceBoard dashboard and API.
//
// Routes:
//
//   - "/": the embedded dashboard, when assets are configured
//   - "/api/status": current status snapshot as JSON
//   - "/api/sse": snapshot stream as Server-Sent Events
//   - "/api/refresh": request a forced refresh cycle
//   - "/api/cache", "/api/cache/{id}": inspect and clear cached balances
//   - "/api/proxy": pass-through forwarder for {url, headers, method}
//   - "/healthz" and "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the balanceboard library should not need to interact with this
// package directly. The server is started automatically by [balanceboard.Board.Start].
package server
