package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable is returned for endpoints that are never cached
	ErrNotCacheable = errors.New("endpoint not cacheable")
)

// Manager caches API-Football response envelopes in Redis. It decides which
// endpoints are cached and for how long, and refuses bodies that carry API
// errors so a rejected call is never replayed from the cache.
type Manager struct {
	redis  *redis.Client
	ttls   map[string]time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides how long responses of endpoint are kept. A ttl <= 0
// stops caching endpoint.
func WithTTL(endpoint string, ttl time.Duration) Option {
	return func(m *Manager) {
		endpoint = normalizeEndpoint(endpoint)
		if ttl <= 0 {
			delete(m.ttls, endpoint)
			return
		}
		m.ttls[endpoint] = ttl
	}
}

// WithClock sets the time source used for entry timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a cache manager on redisClient with the default
// endpoint TTLs.
func NewManager(redisClient *redis.Client, opts ...Option) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}

	ttls := make(map[string]time.Duration, len(endpointTTL))
	for endpoint, ttl := range endpointTTL {
		ttls[endpoint] = ttl
	}

	m := &Manager{
		redis:  redisClient,
		ttls:   ttls,
		now:    time.Now,
		logger: log.With().Str("component", "cache").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTLFor returns how long responses of endpoint stay cached. Zero means the
// endpoint is not cached.
func (m *Manager) TTLFor(endpoint string) time.Duration {
	return m.ttls[normalizeEndpoint(endpoint)]
}

// Cacheable reports whether responses of endpoint are cached.
func (m *Manager) Cacheable(endpoint string) bool {
	return m.TTLFor(endpoint) > 0
}

// GetEnvelope returns the cached response body of endpoint for params.
// It returns ErrNotCacheable for endpoints outside the TTL table and
// ErrCacheMiss when nothing fresh is stored.
func (m *Manager) GetEnvelope(ctx context.Context, endpoint string, params url.Values) (*CacheEntry, error) {
	if !m.Cacheable(endpoint) {
		return nil, ErrNotCacheable
	}

	key := CacheKey{Endpoint: endpoint, Params: params}
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired(m.now()) {
		if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
			m.logger.Debug().Err(err).Str("key", key.String()).Msg("Failed to drop expired entry")
		}
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(normalizeEndpoint(endpoint)).Inc()
	return &entry, nil
}

// SetEnvelope stores body as the response of endpoint for params. Bodies of
// endpoints that are not cached, empty bodies and envelopes that report
// errors are skipped; SetEnvelope then returns a nil entry and a nil error.
func (m *Manager) SetEnvelope(ctx context.Context, endpoint string, params url.Values, body []byte) (*CacheEntry, error) {
	ttl := m.TTLFor(endpoint)
	if ttl <= 0 || !storable(body) {
		return nil, nil
	}

	key := CacheKey{Endpoint: endpoint, Params: params}
	entry := NewEntry(normalizeEndpoint(endpoint), body, m.now(), ttl)
	entry.Params = params.Encode()

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return nil, fmt.Errorf("redis set: %w", err)
	}

	CacheBytesWritten.Add(float64(len(data)))
	return entry, nil
}

// DeleteEnvelope removes the cached response of endpoint for params.
func (m *Manager) DeleteEnvelope(ctx context.Context, endpoint string, params url.Values) error {
	key := CacheKey{Endpoint: endpoint, Params: params}
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// storable reports whether body is an envelope worth replaying: valid JSON
// whose errors member is absent or empty.
func storable(body []byte) bool {
	if len(body) == 0 {
		return false
	}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}

	switch string(bytes.TrimSpace(envelope.Errors)) {
	case "", "null", "[]", "{}":
		return true
	}
	return false
}

func normalizeEndpoint(endpoint string) string {
	return strings.Trim(endpoint, "/")
}
