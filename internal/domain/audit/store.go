package audit

import "time"

// EventLog is the append-only, bounded record of security events.
//
// Implementations must serialize appends so that insertion order and the
// capacity bound hold under concurrent use.
type EventLog interface {
	// Append records an event, evicting the oldest one when full.
	Append(event SecurityEvent)

	// Snapshot returns a copy of the current contents, oldest first.
	// Events are copied with SecurityEvent.Clone, so mutating the returned
	// slice, its events or nested Details values never affects the log.
	Snapshot() []SecurityEvent
}

// Recorder is a convenience for emitting events with a timestamp taken at
// the call site. A nil Recorder or one with a nil Log drops events.
type Recorder struct {
	Log EventLog
	Now func() time.Time
}

// Record appends an event built from its arguments.
func (r *Recorder) Record(kind, identifier string, severity Severity, details map[string]any) {
	if r == nil || r.Log == nil {
		return
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	r.Log.Append(SecurityEvent{
		Timestamp:  now().UTC(),
		Kind:       kind,
		Identifier: identifier,
		Details:    details,
		Severity:   severity,
	})
}
