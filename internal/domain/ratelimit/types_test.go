package ratelimit

import (
	"testing"
	"time"
)

func TestFormatKey(t *testing.T) {
	tests := []struct {
		keyType KeyType
		value   string
		want    string
	}{
		{KeyTypeIP, "192.168.1.1", "ratelimit:ip:192.168.1.1"},
		{KeyTypeTool, "echo", "ratelimit:tool:echo"},
		{KeyTypeIP, "", "ratelimit:ip:"},
	}
	for _, tt := range tests {
		if got := FormatKey(tt.keyType, tt.value); got != tt.want {
			t.Errorf("FormatKey(%q, %q) = %q, want %q", tt.keyType, tt.value, got, tt.want)
		}
	}
}

func TestResult_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name  string
		after time.Duration
		want  int
	}{
		{"full minute", time.Minute, 60},
		{"rounds up", 59*time.Second + 1*time.Millisecond, 60},
		{"zero clamps to one", 0, 1},
		{"sub-second", 200 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Result{RetryAfter: tt.after}
			if got := r.RetryAfterSeconds(); got != tt.want {
				t.Errorf("RetryAfterSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}
