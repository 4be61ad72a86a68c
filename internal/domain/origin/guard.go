// Package origin implements cross-origin enforcement for the protected path.
package origin

import (
	"context"
	"net/http"
	"slices"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
)

// CORS values sent back when a trusted origin is admitted.
const (
	AllowMethods = "GET, POST, DELETE, OPTIONS"
	AllowHeaders = "Content-Type, Authorization, Mcp-Session-Id"
)

// Guard decides cross-origin requests against a trusted-origin set.
//
// An empty trusted set is default-open: every origin passes and no CORS
// headers are added. Origins are compared as exact strings.
type Guard struct {
	trusted         map[string]struct{}
	protectedPrefix string
	recorder        *audit.Recorder
}

var _ gate.Stage = (*Guard)(nil)

// NewGuard creates a Guard for requests under protectedPrefix.
func NewGuard(trustedOrigins []string, protectedPrefix string, recorder *audit.Recorder) *Guard {
	trusted := make(map[string]struct{}, len(trustedOrigins))
	for _, o := range trustedOrigins {
		if o != "" {
			trusted[o] = struct{}{}
		}
	}
	return &Guard{trusted: trusted, protectedPrefix: protectedPrefix, recorder: recorder}
}

// Name implements gate.Stage.
func (g *Guard) Name() string { return "origin" }

// Trusted returns the trusted origins, sorted.
func (g *Guard) Trusted() []string {
	out := make([]string, 0, len(g.trusted))
	for o := range g.trusted {
		out = append(out, o)
	}
	slices.Sort(out)
	return out
}

// Evaluate implements gate.Stage.
func (g *Guard) Evaluate(_ context.Context, req *gate.Request, resp *gate.Response) *gate.Rejection {
	if req.Origin == "" || len(g.trusted) == 0 || !gate.UnderPrefix(req.Path, g.protectedPrefix) {
		return nil
	}

	if _, ok := g.trusted[req.Origin]; !ok {
		g.recorder.Record(audit.EventOriginRejected, req.ClientID, audit.SeverityMedium, map[string]any{
			"path":   req.Path,
			"origin": req.Origin,
			"reason": audit.ReasonUntrustedOrigin,
		})
		return &gate.Rejection{
			Status:  http.StatusForbidden,
			Kind:    gate.KindOriginNotTrusted,
			Message: "Origin not allowed",
		}
	}

	resp.Header.Set("Access-Control-Allow-Origin", req.Origin)
	resp.Header.Set("Access-Control-Allow-Methods", AllowMethods)
	resp.Header.Set("Access-Control-Allow-Headers", AllowHeaders)
	resp.Header.Set("Access-Control-Allow-Credentials", "true")
	resp.Header.Add("Vary", "Origin")
	return nil
}
