package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when polling many monitors
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Request is what a [Forwarder] relays: the target URL, method and headers.
// Timeout bounds the whole exchange; zero means no forwarder-imposed limit.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"-"`
}

// Response is a successful (2xx) relayed response.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// Forwarder relays a request to its real destination.
//
// Implementations strip host, origin, referer and user-agent from the
// supplied headers. A non-2xx upstream status is returned as a
// *[TransportError] carrying the status and body text.
type Forwarder interface {
	Forward(ctx context.Context, req Request) (Response, error)
}

// HTTPForwarder performs the request directly from this process.
//
// HTTPForwarder uses per-request timeouts via context rather than a global
// client timeout, allowing different monitors to have different limits.
// Response bodies are limited to 1MB.
type HTTPForwarder struct {
	httpClient *http.Client
}

// NewHTTPForwarder creates an [HTTPForwarder] with a pooled transport.
//
// Connection pooling configuration:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
func NewHTTPForwarder() *HTTPForwarder {
	return &HTTPForwarder{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Forward implements [Forwarder].
func (f *HTTPForwarder) Forward(ctx context.Context, r Request) (Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, nil)
	if err != nil {
		return Response{}, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for key, value := range StripBrowserHeaders(r.Headers) {
		req.Header.Set(key, value)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{}, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    time.Since(start),
	}, nil
}

// Close closes all idle connections in the forwarder's connection pool.
//
// Safe to call multiple times and on a nil receiver. After Close, the
// forwarder remains usable but new connections will be established as needed.
func (f *HTTPForwarder) Close() {
	if f == nil || f.httpClient == nil {
		return
	}
	if transport, ok := f.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
