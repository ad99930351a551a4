// Package ratelimit implements per-key sliding window rate limiting over a
// pool of API keys. Requests are rotated round-robin across the keys that
// still have capacity; when every key is at its quota the caller is blocked
// until the oldest request of some key leaves its window.
package ratelimit

import (
	"time"
)

// Defaults for the per-key request budget.
const (
	// DefaultRequestsPerWindow is the per-key quota inside one window.
	DefaultRequestsPerWindow = 10

	// DefaultWindow is the length of the trailing window.
	DefaultWindow = 60 * time.Second

	// DefaultSafetyMargin is added to every computed wait so that the
	// oldest timestamp has certainly left the window when the caller wakes.
	DefaultSafetyMargin = 100 * time.Millisecond
)

// keyState is the mutable per-key state guarded by KeyManager.mu.
type keyState struct {
	value string

	// window holds the timestamps of requests issued inside the trailing
	// window, oldest first.
	window []time.Time

	disabled   bool
	reason     string
	disabledAt time.Time
}

// purge drops every timestamp at or before cutoff.
func (s *keyState) purge(cutoff time.Time) {
	i := 0
	for i < len(s.window) && !s.window[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	s.window = append(s.window[:0], s.window[i:]...)
}

// oldest returns the first timestamp in the window.
// The window must not be empty.
func (s *keyState) oldest() time.Time {
	return s.window[0]
}

// KeyStatus is a read-only snapshot of one key's usage in the current window.
type KeyStatus struct {
	// Index is the stable zero-based position of the key in the pool.
	Index int `json:"index"`

	// Preview is a shortened, log-safe rendering of the key.
	Preview string `json:"preview"`

	// Used is the number of requests inside the current window.
	Used int `json:"used"`

	// Remaining is the quota left inside the current window.
	// Always 0 for disabled keys.
	Remaining int `json:"remaining"`

	Disabled   bool      `json:"disabled"`
	Reason     string    `json:"reason,omitempty"`
	DisabledAt time.Time `json:"disabled_at,omitempty"`
}

// Key is a key handed out by Acquire.
type Key struct {
	Value string
	Index int
}

// Preview returns a log-safe rendering of the key.
func (k Key) Preview() string {
	return Preview(k.Value)
}

// Preview shortens a key to its first eight and last four characters.
// Short keys are masked entirely.
func Preview(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
