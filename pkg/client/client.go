// Package client provides the API-Football HTTP client: key rotation through
// a ratelimit.KeyManager, retry with backoff for transient failures, key
// failover on rejected credentials, and an optional response cache.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/football-collector/pkg/cache"
	"github.com/Sternrassler/football-collector/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "football_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "football_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "football_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	cooldownSecondsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "football_cooldown_seconds_total",
		Help: "Total seconds spent in rate limit cooldowns by reason",
	}, []string{"reason"})
)

// DefaultHost is the API-Football host.
const DefaultHost = "v3.football.api-sports.io"

// maxBodyBytes bounds the size of a response body read into memory.
const maxBodyBytes = 32 << 20

// Client is the API-Football client.
type Client struct {
	httpClient *http.Client
	keys       *ratelimit.KeyManager
	cache      *cache.Manager
	clock      ratelimit.Clock
	baseURL    string
	config     Config
	logger     zerolog.Logger

	requests  atomic.Int64
	exhausted atomic.Int64
}

// Config holds the client configuration.
type Config struct {
	// Keys is the key pool (REQUIRED)
	Keys *ratelimit.KeyManager

	// BaseURL of the API, with or without scheme
	BaseURL string

	// KeyHeader carries the API key on every request
	KeyHeader string

	// Timeout bounds every HTTP call
	Timeout time.Duration

	// RateLimitCooldown is slept after an HTTP 429
	RateLimitCooldown time.Duration

	// PayloadRateLimitCooldown is slept when the body reports a rate limit
	PayloadRateLimitCooldown time.Duration

	// Retry applies to network and server errors
	Retry RetryConfig

	// Cache is optional; nil disables response caching
	Cache *cache.Manager

	// Clock defaults to ratelimit.SystemClock
	Clock ratelimit.Clock
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(keys *ratelimit.KeyManager) Config {
	return Config{
		Keys:                     keys,
		BaseURL:                  DefaultHost,
		KeyHeader:                "x-apisports-key",
		Timeout:                  30 * time.Second,
		RateLimitCooldown:        10 * time.Second,
		PayloadRateLimitCooldown: 60 * time.Second,
		Retry:                    DefaultRetryConfig(),
		Clock:                    ratelimit.SystemClock{},
	}
}

// New creates a new API-Football client.
func New(cfg Config) (*Client, error) {
	if cfg.Keys == nil {
		return nil, fmt.Errorf("key manager is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.KeyHeader == "" {
		return nil, fmt.Errorf("key header is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	if cfg.Clock == nil {
		cfg.Clock = ratelimit.SystemClock{}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	return &Client{
		httpClient: &http.Client{},
		keys:       cfg.Keys,
		cache:      cfg.Cache,
		clock:      cfg.Clock,
		baseURL:    baseURL,
		config:     cfg,
		logger:     log.With().Str("component", "executor").Logger(),
	}, nil
}

// Execute performs one logical GET against endpoint and resolves it to a
// decoded envelope or a terminal error.
//
// Network and 5xx failures are retried with backoff. HTTP 429 and rate
// limits reported in the body are waited out and retried without bound.
// HTTP 403 and suspended accounts disable the key that was used and retry
// with the next one. Once every key is disabled Execute returns an empty
// envelope with Exhausted set and a nil error. Other API errors are
// returned as *APIError.
func (c *Client) Execute(ctx context.Context, endpoint string, params url.Values) (*Envelope, error) {
	endpoint = strings.Trim(endpoint, "/")

	if env, ok := c.fromCache(ctx, endpoint, params); ok {
		return env, nil
	}

	for {
		var (
			env  *Envelope
			body []byte
			key  ratelimit.Key
		)

		err := c.retryWithBackoff(ctx, endpoint, func() error {
			var err error
			key, err = c.keys.Acquire(ctx)
			if err != nil {
				return err
			}
			env, body, err = c.send(ctx, key, endpoint, params)
			return err
		})
		if err == nil {
			c.toCache(ctx, endpoint, params, body)
			return env, nil
		}

		if errors.Is(err, ratelimit.ErrAllKeysDisabled) {
			c.logger.Error().
				Str("endpoint", endpoint).
				Msg("All keys disabled, returning empty result")
			c.exhausted.Add(1)
			return &Envelope{Get: endpoint, Exhausted: true}, nil
		}

		if ctx.Err() != nil {
			if errors.Is(err, ErrContextCancelled) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}

		switch apiErr.ErrorClass {
		case ErrorClassForbidden, ErrorClassSuspended:
			c.keys.Disable(key.Index, disableReason(apiErr.ErrorClass))
			continue

		case ErrorClassRateLimit:
			cooldown, reason := c.config.PayloadRateLimitCooldown, "payload"
			if apiErr.StatusCode == http.StatusTooManyRequests {
				cooldown, reason = c.config.RateLimitCooldown, "http_429"
			}

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("key_index", key.Index).
				Str("reason", reason).
				Dur("cooldown", cooldown).
				Msg("Rate limited by server, cooling down")
			cooldownSecondsTotal.WithLabelValues(reason).Add(cooldown.Seconds())

			if err := c.clock.Sleep(ctx, cooldown); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
			}
			continue
		}

		return nil, err
	}
}

// send issues one HTTP call with key. The call runs on a context detached
// from ctx's cancellation so that an interrupt never aborts it mid-flight;
// it is bounded by Config.Timeout instead.
func (c *Client) send(ctx context.Context, key ratelimit.Key, endpoint string, params url.Values) (*Envelope, []byte, error) {
	c.requests.Add(1)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
	defer cancel()

	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(c.config.KeyHeader, key.Value)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("params", params.Encode()).
		Int("key_index", key.Index).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Int("key_index", key.Index).
			Str("error_class", string(errClass)).
			Msg("API request error")

		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassAPI)).Inc()
		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassAPI,
			Message:    "malformed response body",
			Err:        err,
		}
	}

	if len(env.Errors) > 0 {
		errClass := classifyMessages(env.Errors)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("key_index", key.Index).
			Str("error_class", string(errClass)).
			Str("errors", env.Errors.String()).
			Msg("API reported errors")

		return nil, nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    env.Errors.String(),
		}
	}

	return &env, body, nil
}

// fromCache returns a cached envelope when the cache holds one.
func (c *Client) fromCache(ctx context.Context, endpoint string, params url.Values) (*Envelope, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.GetEnvelope(ctx, endpoint, params)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrNotCacheable) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(entry.Data, &env); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cached envelope unreadable")
		return nil, false
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("params", params.Encode()).
		Time("cached_at", entry.CachedAt).
		Msg("Served from cache")
	return &env, true
}

// toCache hands a successful response body to the cache, which decides
// whether and for how long to keep it.
func (c *Client) toCache(ctx context.Context, endpoint string, params url.Values, body []byte) {
	if c.cache == nil {
		return
	}

	entry, err := c.cache.SetEnvelope(ctx, endpoint, params, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		return
	}
	if entry != nil {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Time("expires", entry.Expires).
			Msg("Cached response")
	}
}

// RequestCount returns the number of HTTP calls issued so far.
func (c *Client) RequestCount() int64 {
	return c.requests.Load()
}

// Keys returns the key pool.
func (c *Client) Keys() *ratelimit.KeyManager {
	return c.keys
}

// ExhaustedResults returns how many Execute calls were answered with an
// empty envelope because every key was disabled.
func (c *Client) ExhaustedResults() int64 {
	return c.exhausted.Load()
}

// Exhausted reports whether every key in the pool has been disabled.
func (c *Client) Exhausted() bool {
	return c.keys.ActiveCount() == 0
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
