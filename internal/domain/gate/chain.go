package gate

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"

// Stages names the slot of every stage in the chain. Slots are evaluated in
// field order; a nil slot is skipped.
type Stages struct {
	Headers   Stage
	Logging   Stage
	Origin    Stage
	RateLimit Stage
	Auth      Stage
}

// Chain evaluates its stages in a fixed order, stopping at the first Rejection.
type Chain struct {
	stages []Stage
	tracer trace.Tracer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithTracer sets the tracer used for evaluation spans.
// Defaults to the global tracer provider.
func WithTracer(t trace.Tracer) ChainOption {
	return func(c *Chain) {
		c.tracer = t
	}
}

// NewChain builds a Chain from the given stages.
func NewChain(s Stages, opts ...ChainOption) *Chain {
	c := &Chain{tracer: otel.Tracer(tracerName)}
	for _, stage := range []Stage{s.Headers, s.Logging, s.Origin, s.RateLimit, s.Auth} {
		if stage != nil {
			c.stages = append(c.stages, stage)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StageNames returns the names of the configured stages in evaluation order.
func (c *Chain) StageNames() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Evaluate runs req through the chain. The returned Response always carries
// the headers accumulated up to the deciding stage; the Rejection is nil when
// the request is admitted.
func (c *Chain) Evaluate(ctx context.Context, req *Request) (*Response, *Rejection) {
	ctx, span := c.tracer.Start(ctx, "gate.evaluate",
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.path", req.Path),
			attribute.String("client.id", req.ClientID),
		))
	defer span.End()

	resp := NewResponse()
	for _, stage := range c.stages {
		if rej := stage.Evaluate(ctx, req, resp); rej != nil {
			span.SetAttributes(
				attribute.String("gate.outcome", "rejected"),
				attribute.String("gate.stage", stage.Name()),
				attribute.String("gate.rejection", string(rej.Kind)),
				attribute.Int("http.status_code", rej.Status),
			)
			span.SetStatus(codes.Error, string(rej.Kind))
			return resp, rej
		}
	}

	span.SetAttributes(attribute.String("gate.outcome", "admitted"))
	return resp, nil
}
