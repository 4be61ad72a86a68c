// Package audit contains domain types for security audit logging.
package audit

import "time"

// Severity grades a security event.
type Severity string

// Severity levels, lowest first.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is one of the defined severity levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Event kinds recorded by the gate and the tool handlers.
const (
	// EventAuthFailure is a missing, malformed or mismatched bearer token.
	EventAuthFailure = "auth_failure"
	// EventOriginRejected is a cross-origin request from an untrusted origin.
	EventOriginRejected = "origin_rejected"
	// EventRateLimitExceeded is a client over its per-window request budget.
	EventRateLimitExceeded = "rate_limit_exceeded"
	// EventToolRateLimited is a tool over its per-window call budget.
	EventToolRateLimited = "tool_rate_limited"
	// EventInputRejected is a tool argument refused by the input validator.
	EventInputRejected = "input_rejected"
)

// Reason codes attached to events under the "reason" detail key.
const (
	ReasonMissingAuthorization   = "missing_authorization"
	ReasonMalformedAuthorization = "malformed_authorization"
	ReasonInvalidToken           = "invalid_token"
	ReasonUntrustedOrigin        = "untrusted_origin"
	ReasonWindowExhausted        = "window_exhausted"
)

// SecurityEvent is a single record of a security-relevant decision.
type SecurityEvent struct {
	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`
	// Kind categorizes the event (auth_failure, origin_rejected, ...).
	Kind string `json:"event"`
	// Identifier is the best-effort client identifier (usually the client IP).
	Identifier string `json:"identifier"`
	// Details carries free-form context such as path, reason and origin.
	Details map[string]any `json:"details,omitempty"`
	// Severity grades the event.
	Severity Severity `json:"severity"`
}

// Clone returns a copy of e that shares no mutable state with it. Nested
// map[string]any, []any, []string and []map[string]any values in Details are
// copied recursively; other values are copied as-is.
func (e SecurityEvent) Clone() SecurityEvent {
	if e.Details != nil {
		e.Details = cloneMap(e.Details)
	}
	return e
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		return cloneMap(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		return append([]string(nil), t...)
	case []map[string]any:
		if t == nil {
			return t
		}
		out := make([]map[string]any, len(t))
		for i, x := range t {
			if x != nil {
				out[i] = cloneMap(x)
			}
		}
		return out
	default:
		return v
	}
}
