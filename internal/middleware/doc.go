// Package middleware holds the HTTP middleware shared by every route:
// panic recovery, request logging and Prometheus instrumentation.
package middleware
