package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jpalmerr/balanceboard/internal/monitor"
	"github.com/jpalmerr/balanceboard/internal/value"
)

// DefaultTimeout applies to monitors that do not set their own timeout.
const DefaultTimeout = 10 * time.Second

// Result is a decoded upstream response.
type Result struct {
	Body       value.Value
	StatusCode int
	Latency    time.Duration
}

// Fetcher sends a monitor's authenticated GET through a [Forwarder] and
// decodes the JSON body.
type Fetcher struct {
	forwarder Forwarder
	logger    *slog.Logger
}

// New creates a [Fetcher]. A nil forwarder selects a fresh [HTTPForwarder];
// a nil logger selects slog.Default().
func New(forwarder Forwarder, logger *slog.Logger) *Fetcher {
	if forwarder == nil {
		forwarder = NewHTTPForwarder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{forwarder: forwarder, logger: logger}
}

// Forwarder returns the forwarder requests are sent through.
func (f *Fetcher) Forwarder() Forwarder {
	return f.forwarder
}

// Fetch performs the request for cfg.
//
// It fails with a *[TransportError] when the exchange fails or the upstream
// answers non-2xx, and with a *[DecodeError] when the body is not JSON.
func (f *Fetcher) Fetch(ctx context.Context, cfg monitor.Config) (Result, error) {
	headers := BuildHeaders(cfg)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	authType := "none"
	if cfg.Auth != nil && cfg.Auth.Type != "" {
		authType = string(cfg.Auth.Type)
	}
	f.logger.Debug("fetching balance",
		"monitor", cfg.ID,
		"url", cfg.URL,
		"auth", authType,
		"headers", redactedHeaderNames(headers),
	)

	resp, err := f.forwarder.Forward(ctx, Request{
		URL:     cfg.URL,
		Method:  http.MethodGet,
		Headers: headers,
		Timeout: timeout,
	})
	if err != nil {
		return Result{}, err
	}

	body, err := value.Decode(resp.Body)
	if err != nil {
		return Result{}, &DecodeError{Err: err}
	}

	return Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
	}, nil
}
