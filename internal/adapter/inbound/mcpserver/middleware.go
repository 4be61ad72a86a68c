package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/ratelimit"
)

// toolThrottle limits tools/call per tool name. Unknown names share one
// bucket so random names cannot mint unlimited windows.
func (s *Server) toolThrottle(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if method != "tools/call" {
			return next(ctx, method, req)
		}
		call, ok := req.(*mcp.CallToolRequest)
		if !ok || call.Params == nil {
			return next(ctx, method, req)
		}

		tool := ParseToolName(call.Params.Name)
		key := ratelimit.FormatKey(ratelimit.KeyTypeTool, tool.String())
		result := s.toolLimiter.Check(key, s.cfg.ToolCallsPerMinute, time.Minute)
		if result.Allowed {
			return next(ctx, method, req)
		}

		retryAfter := result.RetryAfterSeconds()
		s.recorder.Record(audit.EventToolRateLimited, tool.String(), audit.SeverityMedium, map[string]any{
			"limit":       s.cfg.ToolCallsPerMinute,
			"retry_after": retryAfter,
			"reason":      audit.ReasonWindowExhausted,
		})
		return errorResult(fmt.Sprintf("Tool rate limit exceeded, retry after %ds", retryAfter)), nil
	}
}
