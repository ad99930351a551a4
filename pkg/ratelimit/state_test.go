package ratelimit

import (
	"testing"
	"time"
)

func TestKeyState_Purge(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		window   []time.Time
		cutoff   time.Time
		expected int
	}{
		{
			name:     "empty window",
			window:   nil,
			cutoff:   base,
			expected: 0,
		},
		{
			name:     "nothing stale",
			window:   []time.Time{base.Add(time.Second), base.Add(2 * time.Second)},
			cutoff:   base,
			expected: 2,
		},
		{
			name:     "entry exactly at cutoff is stale",
			window:   []time.Time{base, base.Add(time.Second)},
			cutoff:   base,
			expected: 1,
		},
		{
			name:     "everything stale",
			window:   []time.Time{base.Add(-2 * time.Second), base.Add(-time.Second)},
			cutoff:   base,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &keyState{window: tt.window}
			s.purge(tt.cutoff)
			if len(s.window) != tt.expected {
				t.Errorf("len(window) = %d, want %d", len(s.window), tt.expected)
			}
			for _, ts := range s.window {
				if !ts.After(tt.cutoff) {
					t.Errorf("timestamp %v survived purge at cutoff %v", ts, tt.cutoff)
				}
			}
		})
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "long key",
			key:      "abcdefgh12345678wxyz",
			expected: "abcdefgh...wxyz",
		},
		{
			name:     "short key is masked",
			key:      "short",
			expected: "****",
		},
		{
			name:     "twelve characters is masked",
			key:      "abcdefghijkl",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.key); got != tt.expected {
				t.Errorf("Preview() = %q, want %q", got, tt.expected)
			}
		})
	}
}
