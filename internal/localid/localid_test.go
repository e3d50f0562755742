// Package localid provides unit tests for local id generation.
package localid

import (
	"strings"
	"testing"
	"time"
)

// TestNewFormat tests that generated ids carry the local prefix and
// both components.
func TestNewFormat(t *testing.T) {
	id := New()

	if !strings.HasPrefix(id, Prefix) {
		t.Errorf("Expected prefix %q, got %q", Prefix, id)
	}

	parts := strings.SplitN(strings.TrimPrefix(id, Prefix), "_", 2)
	if len(parts) != 2 {
		t.Fatalf("Expected timestamp_suffix form, got %q", id)
	}

	if len(parts[1]) != 9 {
		t.Errorf("Expected 9-char suffix, got %q", parts[1])
	}
}

// TestNewUniqueness tests that ids generated in a tight loop never
// collide.
func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("Duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

// TestIsLocal tests local id detection.
func TestIsLocal(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{New(), true},
		{"local_1700000000000_abc123def", true},
		{"550e8400-e29b-41d4-a716-446655440000", false},
		{"42", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsLocal(tt.id); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

// TestCreatedAt tests timestamp extraction from well-formed and
// malformed ids.
func TestCreatedAt(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := New()
	after := time.Now().Add(time.Second)

	created := CreatedAt(id)
	if created.Before(before) || created.After(after) {
		t.Errorf("CreatedAt(%q) = %v, expected between %v and %v", id, created, before, after)
	}

	if !CreatedAt("remote-id").IsZero() {
		t.Error("Expected zero time for non-local id")
	}

	if !CreatedAt("local_notanumber_suffix").IsZero() {
		t.Error("Expected zero time for malformed timestamp")
	}
}
