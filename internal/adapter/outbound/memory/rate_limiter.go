// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/ratelimit"
)

// defaultShards is the number of independently locked partitions of the key space.
const defaultShards = 32

// windowEntry is the fixed-window state of a single key.
type windowEntry struct {
	count     int
	resetTime time.Time
}

// limiterShard owns a disjoint subset of keys under its own lock.
type limiterShard struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

// MemoryRateLimiter implements ratelimit.Limiter with fixed windows held in memory.
// Keys are spread over a fixed set of shards (xxhash of the key), so checks on
// different keys rarely contend and checks on the same key are serialized.
// Expired windows are swept by a background goroutine started with StartCleanup.
type MemoryRateLimiter struct {
	shards          []*limiterShard
	now             func() time.Time
	logger          *slog.Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
}

// RateLimiterOption configures a MemoryRateLimiter.
type RateLimiterOption func(*MemoryRateLimiter)

// WithClock replaces time.Now. Used by tests to drive window expiry.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *MemoryRateLimiter) {
		r.now = now
	}
}

// WithCleanupInterval sets how often StartCleanup sweeps expired windows.
func WithCleanupInterval(d time.Duration) RateLimiterOption {
	return func(r *MemoryRateLimiter) {
		if d > 0 {
			r.cleanupInterval = d
		}
	}
}

// WithRateLimiterLogger sets the logger used by the sweep.
func WithRateLimiterLogger(logger *slog.Logger) RateLimiterOption {
	return func(r *MemoryRateLimiter) {
		r.logger = logger
	}
}

// NewRateLimiter creates a new in-memory rate limiter.
// Default cleanup interval: 1 minute.
func NewRateLimiter(opts ...RateLimiterOption) *MemoryRateLimiter {
	r := &MemoryRateLimiter{
		shards:          make([]*limiterShard, defaultShards),
		now:             time.Now,
		logger:          slog.Default(),
		stopChan:        make(chan struct{}),
		cleanupInterval: time.Minute,
	}
	for i := range r.shards {
		r.shards[i] = &limiterShard{entries: make(map[string]*windowEntry)}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryRateLimiter) shardFor(key string) *limiterShard {
	return r.shards[xxhash.Sum64String(key)%uint64(len(r.shards))]
}

// Check counts a request for key against maxRequests per window.
func (r *MemoryRateLimiter) Check(key string, maxRequests int, window time.Duration) ratelimit.Result {
	s := r.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.now()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetTime) {
		s.entries[key] = &windowEntry{count: 1, resetTime: now.Add(window)}
		return ratelimit.Result{Allowed: true, Count: 1}
	}

	if entry.count >= maxRequests {
		return ratelimit.Result{
			Allowed:    false,
			Count:      entry.count,
			RetryAfter: entry.resetTime.Sub(now),
		}
	}

	entry.count++
	return ratelimit.Result{Allowed: true, Count: entry.count}
}

// Cleanup removes every window whose reset time has passed and returns
// how many were removed. Shards are swept one at a time so a request is
// never blocked for longer than the sweep of a single shard.
func (r *MemoryRateLimiter) Cleanup() int {
	cleaned := 0
	for _, s := range r.shards {
		s.mu.Lock()
		now := r.now()
		for key, entry := range s.entries {
			if now.After(entry.resetTime) {
				delete(s.entries, key)
				cleaned++
			}
		}
		s.mu.Unlock()
	}

	if cleaned > 0 {
		r.logger.Debug("rate limiter cleanup completed",
			"cleaned_keys", cleaned,
			"remaining_keys", r.Size())
	}
	return cleaned
}

// StartCleanup starts the background cleanup goroutine.
// It stops when ctx is cancelled or Stop() is called.
func (r *MemoryRateLimiter) StartCleanup(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Stop gracefully stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (r *MemoryRateLimiter) Stop() {
	r.once.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}

// Size returns the current number of tracked keys.
func (r *MemoryRateLimiter) Size() int {
	total := 0
	for _, s := range r.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Compile-time interface verification.
var _ ratelimit.Limiter = (*MemoryRateLimiter)(nil)
