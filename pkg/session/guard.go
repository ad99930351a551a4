package session

import "github.com/Sternrassler/football-collector/pkg/client"

// ErrorGuard counts consecutive unit failures. Throttling errors are not
// counted and a success resets the count.
type ErrorGuard struct {
	limit       int
	consecutive int
}

// NewErrorGuard creates a guard that trips after limit consecutive failures.
func NewErrorGuard(limit int) *ErrorGuard {
	if limit < 1 {
		limit = 1
	}
	return &ErrorGuard{limit: limit}
}

// Record registers the outcome of one unit and reports whether the guard
// has tripped.
func (g *ErrorGuard) Record(err error) bool {
	switch {
	case err == nil:
		g.consecutive = 0
	case client.IsRateLimitError(err):
		// throttling is self-healing
	default:
		g.consecutive++
	}
	return g.Tripped()
}

// Tripped reports whether the failure limit has been reached.
func (g *ErrorGuard) Tripped() bool {
	return g.consecutive >= g.limit
}

// Consecutive returns the current number of consecutive failures.
func (g *ErrorGuard) Consecutive() int {
	return g.consecutive
}
