package cache

import (
	"time"
)

// CacheEntry is a cached API response envelope.
type CacheEntry struct {
	// Data is the raw envelope body
	Data []byte `json:"data"`

	// Endpoint is the endpoint the body was fetched from
	Endpoint string `json:"endpoint"`

	// Params are the encoded query parameters of the call
	Params string `json:"params,omitempty"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when the body was stored
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for data that stays fresh for ttl from now.
func NewEntry(endpoint string, data []byte, now time.Time, ttl time.Duration) *CacheEntry {
	return &CacheEntry{
		Data:     data,
		Endpoint: endpoint,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired reports whether the entry is stale at now.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return now.After(e.Expires)
}

// TTL returns the time left at now, or 0 once expired.
func (e *CacheEntry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
