package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
)

// DefaultProtectedPath is the path prefix the MCP handler is mounted on.
const DefaultProtectedPath = "/mcp"

// HTTPTransport serves the MCP handler behind the admission gate.
type HTTPTransport struct {
	mcpHandler    http.Handler
	chain         *gate.Chain
	server        *http.Server
	addr          string
	protectedPath string
	logger        *slog.Logger
	registry      *prometheus.Registry
	metrics       *Metrics
	healthChecker *HealthChecker
	proxies       TrustedProxies

	// listening is closed once the listener is bound; boundAddr is valid after.
	listening chan struct{}
	boundAddr string
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithProtectedPath sets the path prefix the MCP handler is mounted on.
func WithProtectedPath(path string) Option {
	return func(t *HTTPTransport) {
		t.protectedPath = path
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithMetrics uses an existing registry and metrics set instead of creating
// new ones, so other components can share them.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(t *HTTPTransport) {
		t.registry = reg
		t.metrics = m
	}
}

// WithTrustedProxies sets the peers allowed to supply X-Forwarded-For and
// X-Real-IP. Without it the client identifier is always the TCP peer.
func WithTrustedProxies(tp TrustedProxies) Option {
	return func(t *HTTPTransport) {
		t.proxies = tp
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) {
		t.healthChecker = hc
	}
}

// NewHTTPTransport creates a transport serving mcpHandler behind chain.
func NewHTTPTransport(mcpHandler http.Handler, chain *gate.Chain, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		mcpHandler:    mcpHandler,
		chain:         chain,
		addr:          "127.0.0.1:8080",
		protectedPath: DefaultProtectedPath,
		logger:        slog.Default(),
		listening:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.registry == nil {
		t.registry = NewRegistry()
		t.metrics = NewMetrics(t.registry)
	}

	return t
}

// NewRegistry returns a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler builds the full handler: middleware chain and routes.
//
// Middleware order (outermost first):
//  1. MetricsMiddleware - MUST be outermost to capture full duration
//  2. RequestID - extract/generate request ID and enrich logger
//  3. ClientID - resolve the rate limit identifier
//  4. Gate - admission chain
//  5. mux
func (t *HTTPTransport) Handler() http.Handler {
	mux := http.NewServeMux()

	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", healthHandler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))

	protected := strings.TrimSuffix(t.protectedPath, "/")
	if protected == "" {
		protected = DefaultProtectedPath
	}
	mux.Handle(protected, t.mcpHandler)
	mux.Handle(protected+"/", t.mcpHandler)

	var handler http.Handler = mux
	handler = GateMiddleware(t.chain, t.metrics)(handler)
	handler = ClientIDMiddleware(t.proxies)(handler)
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics)(handler)
	return handler
}

// Start begins accepting HTTP connections.
// It blocks until the context is cancelled or an error occurs.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.boundAddr = ln.Addr().String()
	close(t.listening)

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting HTTP server", "addr", t.boundAddr)
		err := t.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// Addr blocks until the server is listening and returns the bound address.
func (t *HTTPTransport) Addr(ctx context.Context) (string, error) {
	select {
	case <-t.listening:
		return t.boundAddr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
