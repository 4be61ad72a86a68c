package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/gate"
)

// rejectionBody is the JSON body written for a rejected request.
type rejectionBody struct {
	Error      gate.Kind `json:"error"`
	Message    string    `json:"message"`
	RetryAfter int       `json:"retryAfter,omitempty"`
}

// GateMiddleware evaluates every request against chain. Headers produced by
// the chain are applied to the response in both outcomes; a rejected request
// never reaches next.
func GateMiddleware(chain *gate.Chain, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &gate.Request{
				Method:        r.Method,
				Path:          r.URL.Path,
				Origin:        r.Header.Get("Origin"),
				Authorization: r.Header.Get("Authorization"),
				ClientID:      ClientIDFromContext(r.Context()),
				RequestID:     RequestIDFromContext(r.Context()),
			}

			resp, rej := chain.Evaluate(r.Context(), req)
			for k, vs := range resp.Header {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}

			if rej == nil {
				if metrics != nil {
					metrics.GateDecisions.WithLabelValues("admitted").Inc()
				}
				next.ServeHTTP(w, r)
				return
			}

			if metrics != nil {
				metrics.GateDecisions.WithLabelValues("rejected").Inc()
				metrics.GateRejections.WithLabelValues(string(rej.Kind)).Inc()
			}
			LoggerFromContext(r.Context()).Debug("request rejected",
				"kind", rej.Kind,
				"status", rej.Status,
				"client_id", req.ClientID,
				"path", req.Path,
			)
			writeRejection(w, rej)
		})
	}
}

func writeRejection(w http.ResponseWriter, rej *gate.Rejection) {
	if rej.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rej.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rej.Status)
	_ = json.NewEncoder(w).Encode(rejectionBody{
		Error:      rej.Kind,
		Message:    rej.Message,
		RetryAfter: rej.RetryAfter,
	})
}
