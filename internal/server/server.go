package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/balanceboard/internal/fetcher"
	"github.com/jpalmerr/balanceboard/internal/metrics"
	"github.com/jpalmerr/balanceboard/internal/middleware"
	"github.com/jpalmerr/balanceboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxProxyRequestSize bounds the JSON body accepted by /api/proxy.
	maxProxyRequestSize = 64 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "BalanceBoard"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Refresher requests an out-of-band forced refresh cycle.
type Refresher interface {
	Refresh() bool
}

// CacheControl is the subset of the balance cache exposed over HTTP.
type CacheControl interface {
	Clear(ctx context.Context, id string)
	ClearAll(ctx context.Context)
	Age(ctx context.Context, id string) (time.Duration, bool)
	RemainingTTL(ctx context.Context, id string) time.Duration
}

// Config configures a [Server].
type Config struct {
	Store store.Store
	Port  int

	// Assets holds assets/index.html. Nil disables the dashboard route.
	Assets fs.FS
	Title  string

	// Refresher backs POST /api/refresh. Nil answers 503.
	Refresher Refresher

	// Cache backs the /api/cache routes. Nil answers 503.
	Cache CacheControl

	// Forwarder backs POST /api/proxy. Nil selects a direct forwarder.
	Forwarder fetcher.Forwarder

	Logger *slog.Logger
}

// Server handles HTTP requests for the BalanceBoard dashboard and API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	port       int
	assets     fs.FS
	title      string
	refresher  Refresher
	cache      CacheControl
	forwarder  fetcher.Forwarder
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP [Server]. The server is not started until
// [Server.Start] is called.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fw := cfg.Forwarder
	if fw == nil {
		fw = fetcher.NewHTTPForwarder()
	}
	return &Server{
		store:     cfg.Store,
		port:      cfg.Port,
		assets:    cfg.Assets,
		title:     cfg.Title,
		refresher: cfg.Refresher,
		cache:     cfg.Cache,
		forwarder: fw,
		logger:    logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(s.logger))
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/sse", s.handleSSE)
		r.Post("/refresh", s.handleRefresh)
		r.Delete("/cache", s.handleClearCache)
		r.Delete("/cache/{id}", s.handleClearCacheEntry)
		r.Get("/cache/{id}", s.handleCacheEntry)
		r.Post("/proxy", s.handleProxy)
	})

	if s.assets != nil {
		r.Get("/", s.handleDashboard)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		s.logger.Info("http server listening", "port", s.port)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// read index.html from embedded assets
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleStatus returns the current snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, s.store.GetAll(), s.logger)
}

// handleRefresh asks the scheduler for an immediate forced cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil || !s.refresher.Refresh() {
		writeError(w, http.StatusServiceUnavailable, "refresh unavailable", "", s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"}, s.logger)
}

// cacheEntryResponse describes one monitor's cache entry.
type cacheEntryResponse struct {
	ID             string `json:"id"`
	Cached         bool   `json:"cached"`
	AgeMs          int64  `json:"ageMs"`
	RemainingTTLMs int64  `json:"remainingTtlMs"`
}

func (s *Server) handleCacheEntry(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable", "", s.logger)
		return
	}
	id := chi.URLParam(r, "id")
	if !s.knownMonitor(id) {
		writeError(w, http.StatusNotFound, "unknown monitor", id, s.logger)
		return
	}

	resp := cacheEntryResponse{ID: id}
	if age, ok := s.cache.Age(r.Context(), id); ok {
		remaining := s.cache.RemainingTTL(r.Context(), id)
		resp.Cached = remaining > 0
		resp.AgeMs = age.Milliseconds()
		resp.RemainingTTLMs = remaining.Milliseconds()
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}

func (s *Server) handleClearCacheEntry(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable", "", s.logger)
		return
	}
	id := chi.URLParam(r, "id")
	if !s.knownMonitor(id) {
		writeError(w, http.StatusNotFound, "unknown monitor", id, s.logger)
		return
	}
	s.cache.Clear(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache unavailable", "", s.logger)
		return
	}
	s.cache.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) knownMonitor(id string) bool {
	_, ok := s.store.Get(id)
	return ok
}

// handleProxy relays {url, headers, method} to its destination.
//
// A 2xx JSON body is relayed unchanged. A non-2xx upstream answer keeps its
// status and is reported as {error: "HTTP <code>: <text>", details: <body>};
// anything else is a 500 {error: "Proxy request failed", details}.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	var req fetcher.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProxyRequestSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid proxy request", err.Error(), s.logger)
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "invalid proxy request", "url must be http or https", s.logger)
		return
	}

	s.logger.Debug("proxying request",
		"url", req.URL,
		"method", req.Method,
		"header_count", len(req.Headers),
	)

	resp, err := s.forwarder.Forward(r.Context(), req)
	if err != nil {
		var te *fetcher.TransportError
		if errors.As(err, &te) && te.Err == nil && te.StatusCode != 0 {
			metrics.ProxyRequestsTotal.WithLabelValues("upstream_error").Inc()
			status := te.Status
			if status == "" {
				status = fetcher.StatusLine(te.StatusCode)
			}
			writeError(w, te.StatusCode, status, te.Body, s.logger)
			return
		}
		metrics.ProxyRequestsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("proxy request failed", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "Proxy request failed", err.Error(), s.logger)
		return
	}

	if !json.Valid(resp.Body) {
		metrics.ProxyRequestsTotal.WithLabelValues("failed").Inc()
		writeError(w, http.StatusInternalServerError, "Proxy request failed", "invalid JSON response", s.logger)
		return
	}

	metrics.ProxyRequestsTotal.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Error("failed to write proxy response", "error", err)
	}
}

// handleSSE streams status snapshots via Server-Sent Events.
//
// The current snapshot is sent on connect, then one event per published
// snapshot. The handler uses write deadlines to prevent goroutine leaks when
// clients are slow or disconnected.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before reading the snapshot so nothing published in between is lost
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	data, err := json.Marshal(s.store.GetAll())
	if err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snapshot, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, details string, logger *slog.Logger) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details}, logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
