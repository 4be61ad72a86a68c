package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
)

// State is the outcome of a single guard check.
type State int

const (
	StateUnchecked State = iota
	StateAllowed
	StateRejected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAllowed:
		return "allowed"
	case StateRejected:
		return "rejected"
	default:
		return "unchecked"
	}
}

const bearerPrefix = "Bearer "

// Config configures a Guard.
type Config struct {
	// Enabled turns authentication on. When false every request is allowed.
	Enabled bool
	// ProtectedPrefix is the path prefix requiring a bearer token.
	ProtectedPrefix string
}

// Guard checks the bearer token of requests under the protected prefix.
//
// SECURITY: tokens are never logged or recorded; events carry only the
// client identifier, the path and a reason code.
type Guard struct {
	cfg      Config
	secret   *Secret
	recorder *audit.Recorder
}

var _ gate.Stage = (*Guard)(nil)

// NewGuard creates a Guard. secret may be nil only when cfg.Enabled is false.
func NewGuard(cfg Config, secret *Secret, recorder *audit.Recorder) *Guard {
	return &Guard{cfg: cfg, secret: secret, recorder: recorder}
}

// Name implements gate.Stage.
func (g *Guard) Name() string { return "auth" }

// Check moves a request from StateUnchecked to its terminal state. The
// Rejection is non-nil exactly when the state is StateRejected.
func (g *Guard) Check(req *gate.Request) (State, *gate.Rejection) {
	if !g.cfg.Enabled || !gate.UnderPrefix(req.Path, g.cfg.ProtectedPrefix) {
		return StateAllowed, nil
	}

	if req.Authorization == "" {
		return StateRejected, g.reject(req, audit.ReasonMissingAuthorization)
	}
	token, ok := strings.CutPrefix(req.Authorization, bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return StateRejected, g.reject(req, audit.ReasonMalformedAuthorization)
	}

	if g.secret == nil || !g.secret.Matches(token) {
		return StateRejected, g.reject(req, audit.ReasonInvalidToken)
	}
	return StateAllowed, nil
}

// Evaluate implements gate.Stage.
func (g *Guard) Evaluate(_ context.Context, req *gate.Request, _ *gate.Response) *gate.Rejection {
	_, rej := g.Check(req)
	return rej
}

func (g *Guard) reject(req *gate.Request, reason string) *gate.Rejection {
	details := map[string]any{
		"path":   req.Path,
		"reason": reason,
	}
	if reason == audit.ReasonInvalidToken {
		g.recorder.Record(audit.EventAuthFailure, req.ClientID, audit.SeverityHigh, details)
		return &gate.Rejection{
			Status:  http.StatusForbidden,
			Kind:    gate.KindAuthenticationInvalid,
			Message: "Invalid API key",
		}
	}
	g.recorder.Record(audit.EventAuthFailure, req.ClientID, audit.SeverityMedium, details)
	return &gate.Rejection{
		Status:  http.StatusUnauthorized,
		Kind:    gate.KindAuthenticationMissing,
		Message: "Authentication required",
	}
}
