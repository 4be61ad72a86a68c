package auth

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
)

// eventLog is an unbounded audit.EventLog for assertions.
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

func newTestGuard(t *testing.T, enabled bool) (*Guard, *eventLog) {
	t.Helper()
	secret, err := NewSecret("secret123", "")
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}
	log := &eventLog{}
	recorder := &audit.Recorder{Log: log, Now: func() time.Time { return time.Unix(1700000000, 0) }}
	return NewGuard(Config{Enabled: enabled, ProtectedPrefix: "/mcp"}, secret, recorder), log
}

func TestGuard_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		header     string
		wantState  State
		wantStatus int
		wantKind   gate.Kind
		wantSev    audit.Severity
		wantReason string
	}{
		{name: "valid token", path: "/mcp", header: "Bearer secret123", wantState: StateAllowed},
		{name: "valid token nested path", path: "/mcp/session", header: "Bearer secret123", wantState: StateAllowed},
		{
			name: "wrong token", path: "/mcp", header: "Bearer wrong",
			wantState: StateRejected, wantStatus: http.StatusForbidden, wantKind: gate.KindAuthenticationInvalid,
			wantSev: audit.SeverityHigh, wantReason: audit.ReasonInvalidToken,
		},
		{
			name: "token with suffix", path: "/mcp", header: "Bearer secret1234",
			wantState: StateRejected, wantStatus: http.StatusForbidden, wantKind: gate.KindAuthenticationInvalid,
			wantSev: audit.SeverityHigh, wantReason: audit.ReasonInvalidToken,
		},
		{
			name: "no header", path: "/mcp",
			wantState: StateRejected, wantStatus: http.StatusUnauthorized, wantKind: gate.KindAuthenticationMissing,
			wantSev: audit.SeverityMedium, wantReason: audit.ReasonMissingAuthorization,
		},
		{
			name: "basic scheme", path: "/mcp", header: "Basic c2VjcmV0MTIz",
			wantState: StateRejected, wantStatus: http.StatusUnauthorized, wantKind: gate.KindAuthenticationMissing,
			wantSev: audit.SeverityMedium, wantReason: audit.ReasonMalformedAuthorization,
		},
		{
			name: "bearer without token", path: "/mcp", header: "Bearer ",
			wantState: StateRejected, wantStatus: http.StatusUnauthorized, wantKind: gate.KindAuthenticationMissing,
			wantSev: audit.SeverityMedium, wantReason: audit.ReasonMalformedAuthorization,
		},
		{
			name: "lowercase bearer", path: "/mcp", header: "bearer secret123",
			wantState: StateRejected, wantStatus: http.StatusUnauthorized, wantKind: gate.KindAuthenticationMissing,
			wantSev: audit.SeverityMedium, wantReason: audit.ReasonMalformedAuthorization,
		},
		{name: "unprotected path no header", path: "/health", wantState: StateAllowed},
		{name: "unprotected path wrong token", path: "/health", header: "Bearer wrong", wantState: StateAllowed},
		{name: "prefix lookalike", path: "/mcpx", wantState: StateAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			guard, log := newTestGuard(t, true)

			req := &gate.Request{Path: tt.path, Authorization: tt.header, ClientID: "203.0.113.7"}
			state, rej := guard.Check(req)
			if state != tt.wantState {
				t.Fatalf("Check() state = %v, want %v", state, tt.wantState)
			}

			events := log.Snapshot()
			if tt.wantState == StateAllowed {
				if rej != nil {
					t.Errorf("Check() rejection = %v, want nil", rej)
				}
				if len(events) != 0 {
					t.Errorf("recorded %d events on allow, want 0", len(events))
				}
				return
			}

			if rej == nil {
				t.Fatal("Check() rejection = nil, want non-nil")
			}
			if rej.Status != tt.wantStatus || rej.Kind != tt.wantKind {
				t.Errorf("rejection = %d/%s, want %d/%s", rej.Status, rej.Kind, tt.wantStatus, tt.wantKind)
			}
			if len(events) != 1 {
				t.Fatalf("recorded %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Kind != audit.EventAuthFailure {
				t.Errorf("event kind = %q, want %q", ev.Kind, audit.EventAuthFailure)
			}
			if ev.Severity != tt.wantSev {
				t.Errorf("severity = %q, want %q", ev.Severity, tt.wantSev)
			}
			if ev.Identifier != "203.0.113.7" {
				t.Errorf("identifier = %q", ev.Identifier)
			}
			if ev.Details["reason"] != tt.wantReason || ev.Details["path"] != tt.path {
				t.Errorf("details = %v", ev.Details)
			}
			for _, v := range ev.Details {
				if s, ok := v.(string); ok && (s == "secret123" || s == "wrong") {
					t.Errorf("event details leak token: %v", ev.Details)
				}
			}
		})
	}
}

func TestGuard_Disabled(t *testing.T) {
	t.Parallel()
	guard := NewGuard(Config{Enabled: false, ProtectedPrefix: "/mcp"}, nil, nil)

	for _, header := range []string{"", "Bearer wrong", "garbage"} {
		if rej := guard.Evaluate(t.Context(), &gate.Request{Path: "/mcp", Authorization: header}, gate.NewResponse()); rej != nil {
			t.Errorf("disabled guard rejected header %q: %v", header, rej)
		}
	}
}

func TestGuard_NilRecorder(t *testing.T) {
	t.Parallel()
	secret, _ := NewSecret("k", "")
	guard := NewGuard(Config{Enabled: true, ProtectedPrefix: "/mcp"}, secret, nil)

	state, rej := guard.Check(&gate.Request{Path: "/mcp"})
	if state != StateRejected || rej == nil {
		t.Fatalf("Check() = %v, %v; want rejected", state, rej)
	}
}

func TestGuard_HashedSecret(t *testing.T) {
	t.Parallel()
	hash, err := HashSecret("secret123")
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	secret, err := NewSecret("", hash)
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}
	guard := NewGuard(Config{Enabled: true, ProtectedPrefix: "/mcp"}, secret, nil)

	if state, _ := guard.Check(&gate.Request{Path: "/mcp", Authorization: "Bearer secret123"}); state != StateAllowed {
		t.Errorf("correct token state = %v, want allowed", state)
	}
	_, rej := guard.Check(&gate.Request{Path: "/mcp", Authorization: "Bearer nope"})
	if rej == nil || rej.Status != http.StatusForbidden {
		t.Errorf("wrong token rejection = %v, want 403", rej)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	for state, want := range map[State]string{StateUnchecked: "unchecked", StateAllowed: "allowed", StateRejected: "rejected"} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
