package cache

import (
	"time"
)

// endpointTTL lists the endpoints whose responses may be cached and for how
// long. Per-fixture endpoints are not cached: their data lands in output
// tables and is never re-requested once a unit is complete.
var endpointTTL = map[string]time.Duration{
	"countries":       7 * 24 * time.Hour,
	"leagues":         24 * time.Hour,
	"teams":           24 * time.Hour,
	"players/squads":  12 * time.Hour,
	"players/seasons": 24 * time.Hour,
	"fixtures":        time.Hour,
}

// TTLFor returns the default time responses of endpoint stay cached.
// Zero means the endpoint is not cacheable. A Manager starts from these
// values; see WithTTL.
func TTLFor(endpoint string) time.Duration {
	return endpointTTL[normalizeEndpoint(endpoint)]
}

// Cacheable reports whether responses of endpoint may be cached.
func Cacheable(endpoint string) bool {
	return TTLFor(endpoint) > 0
}
