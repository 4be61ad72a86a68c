// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Sentinel-Gate/mcp-guard/internal/domain/audit"
)

const defaultRecentCap = 1000

// MemoryAuditStore implements audit.EventLog as a fixed-capacity ring buffer.
// When a writer is attached, every appended event is also encoded to it as
// one JSON line, for forwarding to an external sink. Writes happen outside
// the ring lock, so a slow sink never blocks Snapshot, GetRecent or Len.
type MemoryAuditStore struct {
	mu   sync.Mutex
	ring []audit.SecurityEvent
	head int // index of the oldest event
	size int

	writeMu sync.Mutex // serializes lines on writer
	writer  io.Writer
	logger  *slog.Logger
}

// resolveCapacity returns the first positive capacity value, or defaultRecentCap.
func resolveCapacity(capacity ...int) int {
	if len(capacity) > 0 && capacity[0] > 0 {
		return capacity[0]
	}
	return defaultRecentCap
}

// NewAuditStore creates an audit store that keeps events in memory only.
// An optional capacity parameter sets the ring buffer size (default 1000).
func NewAuditStore(capacity ...int) *MemoryAuditStore {
	return &MemoryAuditStore{
		ring:   make([]audit.SecurityEvent, resolveCapacity(capacity...)),
		logger: slog.Default(),
	}
}

// NewAuditStoreWithWriter creates an audit store that also writes each event
// to w as JSON. An optional capacity parameter sets the ring buffer size.
func NewAuditStoreWithWriter(w io.Writer, capacity ...int) *MemoryAuditStore {
	s := NewAuditStore(capacity...)
	s.writer = w
	return s
}

// Append stores an event, evicting the oldest one when the buffer is full.
// Concurrent appends may reach the writer in a different order than the ring.
func (s *MemoryAuditStore) Append(event audit.SecurityEvent) {
	event = event.Clone()

	var line []byte
	if s.writer != nil {
		var err error
		if line, err = json.Marshal(event); err != nil {
			s.logger.Warn("failed to encode audit event", "event", event.Kind, "error", err)
		} else {
			line = append(line, '\n')
		}
	}

	s.mu.Lock()
	if s.size < len(s.ring) {
		s.ring[(s.head+s.size)%len(s.ring)] = event
		s.size++
	} else {
		s.ring[s.head] = event
		s.head = (s.head + 1) % len(s.ring)
	}
	s.mu.Unlock()

	if line == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.writer.Write(line); err != nil {
		s.logger.Warn("failed to forward audit event", "event", event.Kind, "error", err)
	}
}

// Snapshot returns a copy of all buffered events, oldest first.
func (s *MemoryAuditStore) Snapshot() []audit.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]audit.SecurityEvent, s.size)
	for i := 0; i < s.size; i++ {
		result[i] = s.ring[(s.head+i)%len(s.ring)].Clone()
	}
	return result
}

// GetRecent returns the n most recent events (newest first).
func (s *MemoryAuditStore) GetRecent(n int) []audit.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > s.size {
		n = s.size
	}
	if n <= 0 {
		return nil
	}
	result := make([]audit.SecurityEvent, n)
	for i := 0; i < n; i++ {
		result[i] = s.ring[(s.head+s.size-1-i)%len(s.ring)].Clone()
	}
	return result
}

// Len returns the number of buffered events.
func (s *MemoryAuditStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capacity returns the maximum number of buffered events.
func (s *MemoryAuditStore) Capacity() int {
	return len(s.ring)
}

// Close releases the attached writer if it is a file other than stdout/stderr.
func (s *MemoryAuditStore) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if f, ok := s.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Close()
	}
	return nil
}

// Compile-time interface verification.
var _ audit.EventLog = (*MemoryAuditStore)(nil)
