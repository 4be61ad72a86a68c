package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/mcp-guard/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/mcp-guard/internal/adapter/inbound/mcpserver"
	"github.com/Sentinel-Gate/mcp-guard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/mcp-guard/internal/config"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/auth"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/origin"
	"github.com/Sentinel-Gate/mcp-guard/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	Long: `Start the mcp-guard server.

The MCP endpoint is served at server.protected_path (default /mcp) behind
the admission gate. /health and /metrics are served on the same listener.

Examples:
  # Start with config file settings
  mcp-guard start

  # Start in development mode (debug logging, audit events on stdout)
  mcp-guard start --dev

  # Start with a specific config file
  mcp-guard --config /path/to/config.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, audit to stdout)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so CLI flags can override first)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Logs go to stderr; stdout may carry audit events.
	logger := newLogger(os.Stderr, cfg)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("mcp-guard stopped")
	return nil
}

// newLogger builds the process logger. DevMode always forces debug.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.InitTracer(cfg.Telemetry.Enabled, "mcp-guard", Version, os.Stderr, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	a, err := newApp(cfg, logger, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	a.rateLimiter.StartCleanup(ctx)
	a.toolLimiter.StartCleanup(ctx)

	logger.Info("mcp-guard starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"protected_path", cfg.Server.ProtectedPath,
		"stages", strings.Join(a.chain.StageNames(), ","),
		"auth", cfg.Security.EnableAuth,
		"rate_limit", cfg.Security.EnableRateLimit,
		"trusted_origins", len(cfg.Security.TrustedOrigins),
		"audit_output", cfg.Audit.Output,
	)

	printBanner(os.Stderr, Version, cfg)

	return a.transport.Start(ctx)
}

// app holds the wired components of a running server.
type app struct {
	store       *memory.MemoryAuditStore
	rateLimiter *memory.MemoryRateLimiter
	toolLimiter *memory.MemoryRateLimiter
	chain       *gate.Chain
	mcp         *mcpserver.Server
	transport   *http.HTTPTransport
}

// newApp builds the audit log, limiters, gate chain, MCP server and HTTP
// transport from cfg. stdout receives audit events when audit.output is "stdout".
func newApp(cfg *config.Config, logger *slog.Logger, stdout io.Writer) (*app, error) {
	store, err := createAuditStore(cfg, stdout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit store: %w", err)
	}

	registry := http.NewRegistry()
	metrics := http.NewMetrics(registry)
	events := http.InstrumentEventLog(store, metrics)
	recorder := &audit.Recorder{Log: events}

	limiterOpts := []memory.RateLimiterOption{
		memory.WithCleanupInterval(cfg.RateLimit.CleanupIntervalDuration()),
		memory.WithRateLimiterLogger(logger),
	}
	rateLimiter := memory.NewRateLimiter(limiterOpts...)
	toolLimiter := memory.NewRateLimiter(limiterOpts...)
	http.RegisterRateLimitKeys(registry, rateLimiter.Size)

	chain, err := buildChain(cfg, rateLimiter, recorder, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	srv, err := mcpserver.New(mcpserver.Config{
		Name:               "mcp-guard",
		Version:            Version,
		FileRoot:           cfg.Tools.FileRoot,
		MaxInputLength:     cfg.Tools.MaxInputLength,
		MaxFileBytes:       cfg.Tools.MaxFileBytes,
		ToolCallsPerMinute: cfg.RateLimit.ToolCallsPerMinute,
	}, events, recorder,
		mcpserver.WithLogger(logger),
		mcpserver.WithToolLimiter(toolLimiter),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	proxies, err := http.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	transportOpts := []http.Option{
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithProtectedPath(cfg.Server.ProtectedPath),
		http.WithLogger(logger),
		http.WithTrustedProxies(proxies),
		http.WithMetrics(registry, metrics),
		http.WithHealthChecker(http.NewHealthChecker(rateLimiter, toolLimiter, store, Version)),
	}

	return &app{
		store:       store,
		rateLimiter: rateLimiter,
		toolLimiter: toolLimiter,
		chain:       chain,
		mcp:         srv,
		transport:   http.NewHTTPTransport(srv.HTTPHandler(), chain, transportOpts...),
	}, nil
}

// Close stops background work and releases files.
func (a *app) Close() error {
	a.rateLimiter.Stop()
	a.toolLimiter.Stop()
	return errors.Join(a.mcp.Close(), a.store.Close())
}

// buildChain assembles the admission gate. Disabled features leave their
// slot empty.
func buildChain(cfg *config.Config, limiter *memory.MemoryRateLimiter, recorder *audit.Recorder, logger *slog.Logger) (*gate.Chain, error) {
	stages := gate.Stages{
		Headers: gate.SecurityHeaders{},
		Origin:  origin.NewGuard(cfg.Security.TrustedOrigins, cfg.Server.ProtectedPath, recorder),
	}

	if cfg.Security.EnableRequestLogging {
		stages.Logging = gate.RequestLogging{Logger: logger}
	}

	if cfg.Security.EnableRateLimit {
		stages.RateLimit = gate.NewRateLimit(limiter, cfg.Security.MaxRequestsPerMinute, recorder)
	}

	if cfg.Security.EnableAuth {
		secret, err := auth.NewSecret(cfg.Security.APIKey, cfg.Security.APIKeyHash)
		if err != nil {
			return nil, fmt.Errorf("invalid auth secret: %w", err)
		}
		stages.Auth = auth.NewGuard(auth.Config{
			Enabled:         true,
			ProtectedPrefix: cfg.Server.ProtectedPath,
		}, secret, recorder)
	}

	return gate.NewChain(stages), nil
}

// createAuditStore creates an audit store based on configuration.
func createAuditStore(cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*memory.MemoryAuditStore, error) {
	switch {
	case cfg.Audit.Output == "none":
		return memory.NewAuditStore(cfg.Audit.Capacity), nil

	case cfg.Audit.Output == "stdout":
		logger.Debug("audit output: stdout", "capacity", cfg.Audit.Capacity)
		return memory.NewAuditStoreWithWriter(stdout, cfg.Audit.Capacity), nil

	case strings.HasPrefix(cfg.Audit.Output, "file://"):
		path := parseFileURI(cfg.Audit.Output)
		if path == "" {
			return nil, fmt.Errorf("invalid audit file URI: %s", cfg.Audit.Output)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file %s: %w", path, err)
		}
		logger.Debug("audit output: file", "path", path, "capacity", cfg.Audit.Capacity)
		return memory.NewAuditStoreWithWriter(f, cfg.Audit.Capacity), nil

	default:
		return nil, fmt.Errorf("invalid audit output: %s (must be 'none', 'stdout' or 'file://path')", cfg.Audit.Output)
	}
}

// parseFileURI extracts the path from a file:// URI.
func parseFileURI(uri string) string {
	path, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return ""
	}
	// On Windows, file:///C:/path produces /C:/path after prefix trim.
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return path
}

// printBanner prints a startup summary to w.
func printBanner(w io.Writer, version string, cfg *config.Config) {
	const (
		reset  = "\033[0m"
		bold   = "\033[1m"
		cyan   = "\033[36m"
		green  = "\033[32m"
		yellow = "\033[33m"
		dim    = "\033[2m"
	)

	host := cfg.Server.HTTPAddr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	base := "http://" + host

	modeStr := green + "production" + reset
	if cfg.DevMode {
		modeStr = yellow + "development" + reset
	}
	authStr := "off"
	if cfg.Security.EnableAuth {
		authStr = "bearer"
	}
	limitStr := "off"
	if cfg.Security.EnableRateLimit {
		limitStr = fmt.Sprintf("%d/min per client", cfg.Security.MaxRequestsPerMinute)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  %s%s mcp-guard %s%s\n", bold, cyan, version, reset)
	fmt.Fprintf(w, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(w, "  %-14s %s%s\n", "MCP:", base, cfg.Server.ProtectedPath)
	fmt.Fprintf(w, "  %-14s %s/health\n", "Health:", base)
	fmt.Fprintf(w, "  %-14s %s/metrics\n", "Metrics:", base)
	fmt.Fprintf(w, "  %-14s %s\n", "Mode:", modeStr)
	fmt.Fprintf(w, "  %-14s %s\n", "Auth:", authStr)
	fmt.Fprintf(w, "  %-14s %s\n", "Rate limit:", limitStr)
	fmt.Fprintf(w, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(w, "\n")
}
