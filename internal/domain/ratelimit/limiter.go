package ratelimit

import "time"

// Limiter is a fixed-window request counter keyed by an arbitrary identifier.
//
// The first request for a key, or the first one after the window has
// expired, opens a new window with a count of 1. Further requests increment
// the count until it reaches maxRequests; from then on requests are denied
// and the window is left untouched until it expires.
//
// Check must be atomic per key: two concurrent callers for the same key
// can never both be admitted past maxRequests.
type Limiter interface {
	Check(key string, maxRequests int, window time.Duration) Result
}
