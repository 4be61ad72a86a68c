package origin

import (
	"net/http"
	"slices"
	"sync"
	"testing"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
)

type eventLog struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (l *eventLog) Append(e audit.SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Snapshot() []audit.SecurityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]audit.SecurityEvent(nil), l.events...)
}

func TestGuard_TrustedOrigin(t *testing.T) {
	t.Parallel()
	log := &eventLog{}
	g := NewGuard([]string{"https://a.com"}, "/mcp", &audit.Recorder{Log: log})

	resp := gate.NewResponse()
	if rej := g.Evaluate(t.Context(), &gate.Request{Path: "/mcp", Origin: "https://a.com"}, resp); rej != nil {
		t.Fatalf("trusted origin rejected: %v", rej)
	}

	want := map[string]string{
		"Access-Control-Allow-Origin":      "https://a.com",
		"Access-Control-Allow-Methods":     AllowMethods,
		"Access-Control-Allow-Headers":     AllowHeaders,
		"Access-Control-Allow-Credentials": "true",
		"Vary":                             "Origin",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if n := len(log.Snapshot()); n != 0 {
		t.Errorf("recorded %d events, want 0", n)
	}
}

func TestGuard_UntrustedOrigin(t *testing.T) {
	t.Parallel()
	log := &eventLog{}
	g := NewGuard([]string{"https://a.com"}, "/mcp", &audit.Recorder{Log: log})

	resp := gate.NewResponse()
	rej := g.Evaluate(t.Context(), &gate.Request{Path: "/mcp", Origin: "https://evil.com", ClientID: "198.51.100.2"}, resp)
	if rej == nil {
		t.Fatal("untrusted origin admitted")
	}
	if rej.Status != http.StatusForbidden || rej.Kind != gate.KindOriginNotTrusted {
		t.Errorf("rejection = %d/%s, want 403/%s", rej.Status, rej.Kind, gate.KindOriginNotTrusted)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin set on rejection: %q", got)
	}

	events := log.Snapshot()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != audit.EventOriginRejected || ev.Severity != audit.SeverityMedium {
		t.Errorf("event = %s/%s", ev.Kind, ev.Severity)
	}
	if ev.Identifier != "198.51.100.2" || ev.Details["origin"] != "https://evil.com" || ev.Details["path"] != "/mcp" {
		t.Errorf("event = %+v", ev)
	}
}

func TestGuard_Passes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		trusted []string
		path    string
		origin  string
	}{
		{"no origin, empty set", nil, "/mcp", ""},
		{"no origin, configured set", []string{"https://a.com"}, "/mcp", ""},
		{"any origin, empty set", nil, "/mcp", "https://evil.com"},
		{"untrusted origin outside prefix", []string{"https://a.com"}, "/health", "https://evil.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewGuard(tt.trusted, "/mcp", nil)
			resp := gate.NewResponse()
			if rej := g.Evaluate(t.Context(), &gate.Request{Path: tt.path, Origin: tt.origin}, resp); rej != nil {
				t.Errorf("rejected: %v", rej)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
				t.Errorf("allow-origin = %q, want unset", got)
			}
		})
	}
}

func TestGuard_ExactMatch(t *testing.T) {
	t.Parallel()
	g := NewGuard([]string{"https://a.com"}, "/mcp", nil)

	for _, o := range []string{"https://a.com/", "http://a.com", "https://a.com:443", "https://A.com"} {
		if rej := g.Evaluate(t.Context(), &gate.Request{Path: "/mcp", Origin: o}, gate.NewResponse()); rej == nil {
			t.Errorf("origin %q admitted, want exact-match rejection", o)
		}
	}
}

func TestGuard_Trusted(t *testing.T) {
	t.Parallel()
	g := NewGuard([]string{"https://b.com", "", "https://a.com", "https://b.com"}, "/mcp", nil)
	if got, want := g.Trusted(), []string{"https://a.com", "https://b.com"}; !slices.Equal(got, want) {
		t.Errorf("Trusted() = %v, want %v", got, want)
	}
}
