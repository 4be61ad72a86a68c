package gate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sentinel-Gate/mcp-guard/internal/ctxkey"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/ratelimit"
)

// DefaultContentSecurityPolicy is applied by SecurityHeaders when no policy is given.
const DefaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// SecurityHeaders sets the hardening headers on every response, including
// responses for requests that a later stage rejects.
type SecurityHeaders struct {
	ContentSecurityPolicy string
}

// Name implements Stage.
func (s SecurityHeaders) Name() string { return "security_headers" }

// Evaluate implements Stage. It never rejects.
func (s SecurityHeaders) Evaluate(_ context.Context, _ *Request, resp *Response) *Rejection {
	csp := s.ContentSecurityPolicy
	if csp == "" {
		csp = DefaultContentSecurityPolicy
	}
	resp.Header.Set("Content-Security-Policy", csp)
	resp.Header.Set("X-Content-Type-Options", "nosniff")
	resp.Header.Set("X-Frame-Options", "DENY")
	resp.Header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	return nil
}

// RequestLogging logs each request that reaches it. It never rejects.
// The request-scoped logger in ctx (ctxkey.LoggerKey) is preferred over Logger.
type RequestLogging struct {
	Logger *slog.Logger
}

// Name implements Stage.
func (s RequestLogging) Name() string { return "request_logging" }

// Evaluate implements Stage.
func (s RequestLogging) Evaluate(ctx context.Context, req *Request, _ *Response) *Rejection {
	logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger)
	if !ok {
		logger = s.Logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("client_id", req.ClientID),
		slog.Bool("has_origin", req.Origin != ""),
	)
	return nil
}

// RateLimit throttles requests per client identifier with a fixed window.
type RateLimit struct {
	Limiter     ratelimit.Limiter
	MaxRequests int
	Window      time.Duration
	Recorder    *audit.Recorder
}

// NewRateLimit creates a per-client limiter stage allowing maxPerMinute
// requests per one-minute window.
func NewRateLimit(limiter ratelimit.Limiter, maxPerMinute int, recorder *audit.Recorder) *RateLimit {
	return &RateLimit{
		Limiter:     limiter,
		MaxRequests: maxPerMinute,
		Window:      time.Minute,
		Recorder:    recorder,
	}
}

// Name implements Stage.
func (s *RateLimit) Name() string { return "rate_limit" }

// Evaluate implements Stage.
func (s *RateLimit) Evaluate(_ context.Context, req *Request, resp *Response) *Rejection {
	key := ratelimit.FormatKey(ratelimit.KeyTypeIP, req.ClientID)
	result := s.Limiter.Check(key, s.MaxRequests, s.Window)
	if result.Allowed {
		return nil
	}

	retryAfter := result.RetryAfterSeconds()
	s.Recorder.Record(audit.EventRateLimitExceeded, req.ClientID, audit.SeverityMedium, map[string]any{
		"path":        req.Path,
		"limit":       s.MaxRequests,
		"retry_after": retryAfter,
		"reason":      audit.ReasonWindowExhausted,
	})
	return &Rejection{
		Status:     http.StatusTooManyRequests,
		Kind:       KindRateLimitExceeded,
		Message:    "Too many requests",
		RetryAfter: retryAfter,
	}
}
