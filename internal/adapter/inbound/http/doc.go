// Package http is the inbound HTTP adapter for mcp-guard.
//
// Every request passes the admission gate before it reaches a route:
//
//  1. MetricsMiddleware - records duration and status
//  2. RequestIDMiddleware - extracts or generates X-Request-ID and enriches the logger
//  3. ClientIDMiddleware - resolves the client identifier used for rate limiting
//  4. GateMiddleware - runs the gate.Chain (security headers, request logging,
//     origin, rate limit, auth) and writes a JSON rejection on deny
//  5. mux - the MCP streamable HTTP handler under the protected path, /health
//     and /metrics
//
// A rejected request gets its status code, any security and CORS headers the
// chain produced, and a body of the form:
//
//	{"error":"rate_limit_exceeded","message":"Too many requests","retryAfter":60}
//
// Rate limit rejections also carry a Retry-After header.
//
// # Client identifier
//
// The client identifier is the host part of RemoteAddr. When that peer is
// listed in WithTrustedProxies, the rightmost X-Forwarded-For hop that is not
// itself a trusted proxy is used instead, then X-Real-IP. Forwarding headers
// from any other peer are ignored.
package http
