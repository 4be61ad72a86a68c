// Package gate contains the request-admission chain: the fixed sequence of
// stages every inbound request passes before it reaches the MCP dispatcher.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the machine-readable error kind of a Rejection.
type Kind string

const (
	// KindAuthenticationMissing is a protected request without a usable bearer token.
	KindAuthenticationMissing Kind = "authentication_missing"
	// KindAuthenticationInvalid is a bearer token that does not match the secret.
	KindAuthenticationInvalid Kind = "authentication_invalid"
	// KindRateLimitExceeded is a caller over its per-window request budget.
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
	// KindOriginNotTrusted is a cross-origin request from an untrusted origin.
	KindOriginNotTrusted Kind = "origin_not_trusted"
)

// Request is the transport-independent view of an inbound request that the
// stages evaluate.
type Request struct {
	Method        string
	Path          string
	Origin        string
	Authorization string

	// ClientID is the best-effort caller identifier (usually the client IP).
	ClientID string

	RequestID string
}

// Response collects the headers stages attach to the eventual response.
// Headers are applied whether or not the request is admitted.
type Response struct {
	Header http.Header
}

// NewResponse returns a Response with an empty header set.
func NewResponse() *Response {
	return &Response{Header: make(http.Header)}
}

// Rejection is the terminal output of a stage that denies a request.
type Rejection struct {
	Status  int
	Kind    Kind
	Message string

	// RetryAfter is in whole seconds and only set for rate limit denials.
	RetryAfter int
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return fmt.Sprintf("%s (%d): %s", r.Kind, r.Status, r.Message)
}

// Stage is one step of the chain. Evaluate returns nil to pass the request
// on, or a Rejection to end evaluation.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, req *Request, resp *Response) *Rejection
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, req *Request, resp *Response) *Rejection
}

// Name implements Stage.
func (f StageFunc) Name() string { return f.StageName }

// Evaluate implements Stage.
func (f StageFunc) Evaluate(ctx context.Context, req *Request, resp *Response) *Rejection {
	return f.Fn(ctx, req, resp)
}

// UnderPrefix reports whether path is prefix itself or lies below it.
// An empty prefix covers every path.
func UnderPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
