package fetcher

import (
	"fmt"
	"net/http"
	"unicode/utf8"
)

// maxErrorBodyLen bounds how much of an upstream body ends up in messages.
const maxErrorBodyLen = 512

// TransportError is a failed exchange with the upstream endpoint or the
// forwarder: either a non-2xx status (StatusCode and Body set) or a request
// that never produced a response (Err set).
type TransportError struct {
	// StatusCode is the upstream HTTP status. Zero when Err is set.
	StatusCode int

	// Status is the human-readable summary, e.g. "HTTP 404: Not Found".
	// Derived from StatusCode when empty.
	Status string

	// Body is the raw upstream response text.
	Body string

	// Err is the underlying network failure, if any.
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "request failed: " + e.Err.Error()
	}
	msg := e.Status
	if msg == "" {
		msg = StatusLine(e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + truncate(e.Body, maxErrorBodyLen)
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusLine formats a status code the way errors report it.
func StatusLine(code int) string {
	return fmt.Sprintf("HTTP %d: %s", code, http.StatusText(code))
}

// DecodeError reports a response body that is not valid JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "invalid JSON response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
