package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProxyForwarder relays requests through a remote pass-through endpoint
// that accepts {url, headers, method} and answers with the upstream body, or
// with {error, details} and the upstream status on failure.
type ProxyForwarder struct {
	endpoint   string
	httpClient *http.Client
}

// NewProxyForwarder creates a [ProxyForwarder] posting to endpoint.
func NewProxyForwarder(endpoint string) *ProxyForwarder {
	return &ProxyForwarder{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

// ProxyError is the failure payload of a pass-through endpoint.
type ProxyError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Forward implements [Forwarder].
func (p *ProxyForwarder) Forward(ctx context.Context, r Request) (Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()

	if r.Method == "" {
		r.Method = http.MethodGet
	}
	r.Headers = StripBrowserHeaders(r.Headers)

	payload, err := json.Marshal(r)
	if err != nil {
		return Response{}, &TransportError{Err: fmt.Errorf("failed to encode proxy request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{}, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read proxy response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
		var perr ProxyError
		if json.Unmarshal(body, &perr) == nil && perr.Error != "" {
			te.Status = perr.Error
			te.Body = perr.Details
		}
		return Response{}, te
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    time.Since(start),
	}, nil
}
