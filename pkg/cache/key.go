package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "football"

// CacheKey represents a unique identifier for a cached API response.
type CacheKey struct {
	// Endpoint is the API endpoint path (e.g., "players/squads")
	Endpoint string

	// Params are the query parameters (e.g., {"team": "1504"})
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: football:endpoint:param1=val1:param2=val2
//
// Example:
//
//	football:players/squads:team=1504
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.Params[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
