package api

import (
	"testing"
)

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if !ValidateRunID(id) {
		t.Errorf("NewRunID() = %q, want valid run ID", id)
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "run_abcdefghijklmnopqrstuvwx", true},
		{"valid mixed case", "run_AbCdEfGhIjKlMnOpQrStUvWx", true},
		{"valid digits", "run_123456789012345678901234", true},
		{"wrong prefix", "resp_abcdefghijklmnopqrstuvwx", false},
		{"no prefix", "abcdefghijklmnopqrstuvwxyz1234", false},
		{"too short", "run_abc", false},
		{"too long", "run_abcdefghijklmnopqrstuvwxy", false},
		{"special chars", "run_abcdefghijklmnopqrstuv!@", false},
		{"empty", "", false},
		{"prefix only", "run_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRunID(tt.id); got != tt.want {
				t.Errorf("ValidateRunID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestRunIDUniqueness(t *testing.T) {
	const count = 1000
	seen := make(map[string]bool, count)

	for i := 0; i < count; i++ {
		id := NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run ID after %d generations: %s", i, id)
		}
		seen[id] = true
	}
}
