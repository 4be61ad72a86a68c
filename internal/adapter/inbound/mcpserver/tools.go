package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/validation"
)

// ToolName is the closed set of tools the server dispatches.
type ToolName int

const (
	ToolUnknown ToolName = iota
	ToolEcho
	ToolReadFile
	ToolCheckURL
	ToolSecurityEvents
)

var toolNames = map[ToolName]string{
	ToolEcho:           "echo",
	ToolReadFile:       "read_file",
	ToolCheckURL:       "check_url",
	ToolSecurityEvents: "security_events",
}

// String returns the wire name, or "unknown".
func (t ToolName) String() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseToolName maps a wire name to its ToolName; unrecognized names map to ToolUnknown.
func ParseToolName(name string) ToolName {
	for t, n := range toolNames {
		if n == name {
			return t
		}
	}
	return ToolUnknown
}

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EchoInput is the argument of the echo tool. Text is untyped so that
// non-string values reach the validator and are rejected there.
type EchoInput struct {
	Text      any `json:"text" jsonschema:"the text to sanitize and echo back"`
	MaxLength int `json:"max_length,omitempty" jsonschema:"optional length limit, capped by the server limit"`
}

// ReadFileInput is the argument of the read_file tool.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"file path relative to the server file root"`
}

// CheckURLInput is the argument of the check_url tool.
type CheckURLInput struct {
	URL string `json:"url" jsonschema:"absolute http or https URL to validate"`
}

// SecurityEventsInput is the argument of the security_events tool.
type SecurityEventsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of events to return, newest first"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolEcho.String(),
		Description: "Sanitize free-form text and echo the cleaned result",
	}, s.handleEcho)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolReadFile.String(),
		Description: "Read a file below the configured file root",
	}, s.handleReadFile)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolCheckURL.String(),
		Description: "Validate a URL against the allowed schemes and private network hosts",
	}, s.handleCheckURL)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSecurityEvents.String(),
		Description: "List the most recent security events",
	}, s.handleSecurityEvents)
}

func (s *Server) handleEcho(_ context.Context, _ *mcp.CallToolRequest, in EchoInput) (*mcp.CallToolResult, any, error) {
	limit := s.cfg.MaxInputLength
	if in.MaxLength > 0 && in.MaxLength < limit {
		limit = in.MaxLength
	}

	cleaned, err := s.sanitizer.SanitizeInput(in.Text, limit)
	if err != nil {
		return s.rejectInput(ToolEcho, err), nil, nil
	}
	return textResult(cleaned), nil, nil
}

func (s *Server) handleReadFile(_ context.Context, _ *mcp.CallToolRequest, in ReadFileInput) (*mcp.CallToolResult, any, error) {
	p, err := s.sanitizer.ValidateFilePath(in.Path)
	if err != nil {
		return s.rejectInput(ToolReadFile, err), nil, nil
	}

	data, err := s.readFile(strings.TrimPrefix(p, "/"))
	if err != nil {
		s.logger.Debug("read_file failed", "path", p, "error", err)
		return errorResult(readFileMessage(err)), nil, nil
	}
	return textResult(string(data)), nil, nil
}

var errFileTooLarge = errors.New("file exceeds size limit")

func (s *Server) readFile(name string) ([]byte, error) {
	if s.root == nil {
		return nil, fs.ErrNotExist
	}
	f, err := s.root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrInvalid
	}
	if info.Size() > s.cfg.MaxFileBytes {
		return nil, errFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.cfg.MaxFileBytes {
		return nil, errFileTooLarge
	}
	return data, nil
}

// readFileMessage maps read errors to client-safe messages; paths and
// OS error text are not exposed.
func readFileMessage(err error) string {
	switch {
	case errors.Is(err, errFileTooLarge):
		return "File exceeds size limit"
	case errors.Is(err, fs.ErrNotExist):
		return "File not found"
	case errors.Is(err, fs.ErrInvalid):
		return "Not a regular file"
	default:
		return "File could not be read"
	}
}

type urlReport struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Path   string `json:"path"`
}

func (s *Server) handleCheckURL(_ context.Context, _ *mcp.CallToolRequest, in CheckURLInput) (*mcp.CallToolResult, any, error) {
	u, err := s.sanitizer.ValidateURL(in.URL, validation.DefaultURLSchemes)
	if err != nil {
		return s.rejectInput(ToolCheckURL, err), nil, nil
	}
	return jsonResult(urlReport{Scheme: u.Scheme, Host: u.Host, Path: u.Path}), nil, nil
}

func (s *Server) handleSecurityEvents(_ context.Context, _ *mcp.CallToolRequest, in SecurityEventsInput) (*mcp.CallToolResult, any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)
	return jsonResult(recentEvents(s.events, limit)), nil, nil
}

// recentEvents returns up to n events, newest first.
func recentEvents(log audit.EventLog, n int) []audit.SecurityEvent {
	if log == nil {
		return []audit.SecurityEvent{}
	}
	snap := log.Snapshot()
	n = min(n, len(snap))
	out := make([]audit.SecurityEvent, 0, n)
	for i := len(snap) - 1; i >= len(snap)-n; i-- {
		out = append(out, snap[i])
	}
	return out
}

// rejectInput records a validation failure and turns it into a tool error result.
func (s *Server) rejectInput(tool ToolName, err error) *mcp.CallToolResult {
	details := map[string]any{
		"tool": tool.String(),
		"kind": string(validation.KindOf(err)),
	}
	msg := "Invalid input"
	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Message
		if ve.Rule != "" {
			details["rule"] = ve.Rule
		}
	}
	s.recorder.Record(audit.EventInputRejected, tool.String(), audit.SeverityLow, details)
	return errorResult(fmt.Sprintf("%s: %s", tool, msg))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("Internal error")
	}
	return textResult(string(data))
}
