package gate_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sentinel-Gate/mcp-guard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/auth"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/origin"
)

// recordingStage records its invocation and optionally rejects.
type recordingStage struct {
	name  string
	calls *[]string
	rej   *gate.Rejection
}

func (s recordingStage) Name() string { return s.name }

func (s recordingStage) Evaluate(_ context.Context, _ *gate.Request, resp *gate.Response) *gate.Rejection {
	*s.calls = append(*s.calls, s.name)
	resp.Header.Add("X-Stage", s.name)
	return s.rej
}

func TestChain_FixedOrder(t *testing.T) {
	t.Parallel()
	var calls []string
	stage := func(name string) gate.Stage { return recordingStage{name: name, calls: &calls} }

	// Slots are filled out of declaration order on purpose.
	chain := gate.NewChain(gate.Stages{
		Auth:      stage("auth"),
		RateLimit: stage("rate_limit"),
		Origin:    stage("origin"),
		Logging:   stage("logging"),
		Headers:   stage("headers"),
	})

	want := []string{"headers", "logging", "origin", "rate_limit", "auth"}
	if got := chain.StageNames(); !slices.Equal(got, want) {
		t.Errorf("StageNames() = %v, want %v", got, want)
	}

	resp, rej := chain.Evaluate(t.Context(), &gate.Request{Path: "/mcp"})
	if rej != nil {
		t.Fatalf("Evaluate() rejection = %v", rej)
	}
	if !slices.Equal(calls, want) {
		t.Errorf("call order = %v, want %v", calls, want)
	}
	if got := resp.Header.Values("X-Stage"); !slices.Equal(got, want) {
		t.Errorf("headers = %v, want %v", got, want)
	}
}

func TestChain_ShortCircuit(t *testing.T) {
	t.Parallel()
	var calls []string
	denied := &gate.Rejection{Status: http.StatusForbidden, Kind: gate.KindOriginNotTrusted, Message: "Origin not allowed"}

	chain := gate.NewChain(gate.Stages{
		Headers:   gate.SecurityHeaders{},
		Origin:    recordingStage{name: "origin", calls: &calls, rej: denied},
		RateLimit: recordingStage{name: "rate_limit", calls: &calls},
		Auth:      recordingStage{name: "auth", calls: &calls},
	})

	resp, rej := chain.Evaluate(t.Context(), &gate.Request{Path: "/mcp"})
	if rej != denied {
		t.Fatalf("Evaluate() rejection = %v, want %v", rej, denied)
	}
	if !slices.Equal(calls, []string{"origin"}) {
		t.Errorf("stages run = %v, want only origin", calls)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing on rejected response")
	}
}

func TestChain_SkipsNilStages(t *testing.T) {
	t.Parallel()
	chain := gate.NewChain(gate.Stages{Headers: gate.SecurityHeaders{}})
	if got := chain.StageNames(); !slices.Equal(got, []string{"security_headers"}) {
		t.Errorf("StageNames() = %v", got)
	}
	if _, rej := gate.NewChain(gate.Stages{}).Evaluate(t.Context(), &gate.Request{}); rej != nil {
		t.Errorf("empty chain rejected: %v", rej)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	resp := gate.NewResponse()
	if rej := (gate.SecurityHeaders{}).Evaluate(t.Context(), &gate.Request{}, resp); rej != nil {
		t.Fatalf("rejected: %v", rej)
	}
	want := map[string]string{
		"Content-Security-Policy": gate.DefaultContentSecurityPolicy,
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	resp = gate.NewResponse()
	(gate.SecurityHeaders{ContentSecurityPolicy: "default-src 'self'"}).Evaluate(t.Context(), &gate.Request{}, resp)
	if got := resp.Header.Get("Content-Security-Policy"); got != "default-src 'self'" {
		t.Errorf("custom CSP = %q", got)
	}
}

func TestChain_Span(t *testing.T) {
	t.Parallel()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var calls []string
	chain := gate.NewChain(gate.Stages{
		Auth: recordingStage{name: "auth", calls: &calls, rej: &gate.Rejection{Status: 401, Kind: gate.KindAuthenticationMissing}},
	}, gate.WithTracer(tp.Tracer("test")))

	chain.Evaluate(t.Context(), &gate.Request{Method: "POST", Path: "/mcp"})
	chain.Evaluate(t.Context(), &gate.Request{Method: "GET", Path: "/health"})

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "gate.evaluate" {
			t.Errorf("span name = %q", s.Name())
		}
	}
	if v := attr(spans[0].Attributes(), "gate.rejection"); v != string(gate.KindAuthenticationMissing) {
		t.Errorf("gate.rejection = %q", v)
	}
	if v := attr(spans[0].Attributes(), "gate.stage"); v != "auth" {
		t.Errorf("gate.stage = %q", v)
	}
}

func attr(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestUnderPrefix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path, prefix string
		want         bool
	}{
		{"/mcp", "/mcp", true},
		{"/mcp/", "/mcp", true},
		{"/mcp/x/y", "/mcp", true},
		{"/mcp/x", "/mcp/", true},
		{"/mcpx", "/mcp", false},
		{"/health", "/mcp", false},
		{"/", "/mcp", false},
		{"/anything", "", true},
		{"/anything", "/", true},
	}
	for _, tt := range tests {
		if got := gate.UnderPrefix(tt.path, tt.prefix); got != tt.want {
			t.Errorf("UnderPrefix(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
		}
	}
}

// TestChain_EndToEnd exercises the production stage set: 100 requests from one
// client pass, the 101st in the same minute is throttled with retryAfter=60.
func TestChain_EndToEnd(t *testing.T) {
	t.Parallel()
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return frozen }

	log := memory.NewAuditStore()
	recorder := &audit.Recorder{Log: log, Now: clock}
	limiter := memory.NewRateLimiter(memory.WithClock(clock))
	secret, err := auth.NewSecret("secret123", "")
	if err != nil {
		t.Fatal(err)
	}

	chain := gate.NewChain(gate.Stages{
		Headers:   gate.SecurityHeaders{},
		Logging:   gate.RequestLogging{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
		Origin:    origin.NewGuard([]string{"https://a.com"}, "/mcp", recorder),
		RateLimit: gate.NewRateLimit(limiter, 100, recorder),
		Auth:      auth.NewGuard(auth.Config{Enabled: true, ProtectedPrefix: "/mcp"}, secret, recorder),
	})

	req := &gate.Request{Method: "POST", Path: "/mcp", Origin: "https://a.com", Authorization: "Bearer secret123", ClientID: "192.0.2.1"}
	for i := 1; i <= 100; i++ {
		if _, rej := chain.Evaluate(t.Context(), req); rej != nil {
			t.Fatalf("request %d rejected: %v", i, rej)
		}
	}

	resp, rej := chain.Evaluate(t.Context(), req)
	if rej == nil {
		t.Fatal("request 101 admitted")
	}
	if rej.Status != http.StatusTooManyRequests || rej.Kind != gate.KindRateLimitExceeded {
		t.Errorf("rejection = %d/%s", rej.Status, rej.Kind)
	}
	if rej.RetryAfter != 60 {
		t.Errorf("RetryAfter = %d, want 60", rej.RetryAfter)
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("CSP missing on throttled response")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://a.com" {
		t.Error("origin stage did not run before the rate limiter")
	}

	events := log.Snapshot()
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	if events[0].Kind != audit.EventRateLimitExceeded || events[0].Severity != audit.SeverityMedium {
		t.Errorf("event = %s/%s", events[0].Kind, events[0].Severity)
	}

	// A different client has its own window.
	other := *req
	other.ClientID = "192.0.2.2"
	if _, rej := chain.Evaluate(t.Context(), &other); rej != nil {
		t.Errorf("other client rejected: %v", rej)
	}

	// Auth runs last: an untrusted origin is refused before the bad token is seen.
	bad := other
	bad.Origin = "https://evil.com"
	bad.Authorization = "Bearer wrong"
	if _, rej := chain.Evaluate(t.Context(), &bad); rej == nil || rej.Kind != gate.KindOriginNotTrusted {
		t.Errorf("rejection = %v, want origin_not_trusted", rej)
	}
}
