// Package mcpserver is the MCP dispatcher behind the gate: a small set of
// tools and resources whose handlers validate their arguments inline.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/ratelimit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/validation"
)

// EventsResourceURI is the resource serving the full audit snapshot.
const EventsResourceURI = "audit://events"

// Config configures the dispatcher.
type Config struct {
	Name    string
	Version string

	// FileRoot is the directory read_file resolves paths against.
	// Empty disables file access.
	FileRoot       string
	MaxInputLength int
	MaxFileBytes   int64

	// ToolCallsPerMinute throttles tools/call per tool name. Zero disables it.
	ToolCallsPerMinute int
}

// Server wraps an mcp.Server with the guard's tools and resources.
type Server struct {
	cfg         Config
	mcp         *mcp.Server
	sanitizer   *validation.Sanitizer
	events      audit.EventLog
	recorder    *audit.Recorder
	toolLimiter ratelimit.Limiter
	root        *os.Root
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithToolLimiter sets the limiter used for per-tool throttling.
func WithToolLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.toolLimiter = l
	}
}

// WithSanitizer replaces the default input validator.
func WithSanitizer(v *validation.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = v
	}
}

// New creates the dispatcher. events is read by the security_events tool and
// the audit resource; recorder receives input rejection events.
func New(cfg Config, events audit.EventLog, recorder *audit.Recorder, opts ...Option) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "mcp-guard"
	}
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = validation.DefaultMaxInputLength
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 1 << 20
	}

	s := &Server{
		cfg:       cfg,
		sanitizer: validation.NewSanitizer(),
		events:    events,
		recorder:  recorder,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.FileRoot != "" {
		root, err := os.OpenRoot(cfg.FileRoot)
		if err != nil {
			return nil, fmt.Errorf("open file root: %w", err)
		}
		s.root = root
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	s.registerTools()
	s.registerResources()
	if s.toolLimiter != nil && cfg.ToolCallsPerMinute > 0 {
		s.mcp.AddReceivingMiddleware(s.toolThrottle)
	}
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// HTTPHandler returns the streamable HTTP handler serving this server.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// Close releases the file root.
func (s *Server) Close() error {
	if s.root == nil {
		return nil
	}
	return s.root.Close()
}

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         EventsResourceURI,
		Name:        "security-events",
		Description: "Snapshot of the audit log, oldest first",
		MIMEType:    "application/json",
	}, s.readEvents)
}

func (s *Server) readEvents(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	events := []audit.SecurityEvent{}
	if s.events != nil {
		events = s.events.Snapshot()
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
