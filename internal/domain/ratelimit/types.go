// Package ratelimit provides rate limiting domain types.
package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// Result contains the outcome of a single fixed-window check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Count is the number of admitted requests in the current window,
	// including this one when Allowed is true.
	Count int

	// RetryAfter is the time left until the window resets.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, never below 1.
func (r Result) RetryAfterSeconds() int {
	secs := int(math.Ceil(r.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// KeyType identifies the namespace of a rate limit key.
type KeyType string

const (
	// KeyTypeIP is for client-address rate limiting.
	KeyTypeIP KeyType = "ip"

	// KeyTypeTool is for per-tool throttling of tools/call.
	KeyTypeTool KeyType = "tool"
)

// keyPrefix is the base prefix for all rate limit keys.
const keyPrefix = "ratelimit"

// FormatKey returns a structured rate limit key.
// Format: "ratelimit:{type}:{value}"
// Examples:
//   - FormatKey(KeyTypeIP, "192.168.1.1") -> "ratelimit:ip:192.168.1.1"
//   - FormatKey(KeyTypeTool, "echo") -> "ratelimit:tool:echo"
func FormatKey(keyType KeyType, value string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, keyType, value)
}
