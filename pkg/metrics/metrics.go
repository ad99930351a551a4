// Package metrics exposes the Prometheus registry used by the collector.
// All metrics are defined in their respective packages (ratelimit, client,
// cache, session) to maintain modularity and avoid circular dependencies.
//
// This package documents the catalogue and serves it over HTTP.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the collector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve serves /metrics on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Key Rotation Metrics (pkg/ratelimit):
//   - football_key_requests_total{key} (Counter): Requests granted per key index
//   - football_key_waits_total (Counter): Acquisitions that waited for a window slot
//   - football_key_wait_seconds (Histogram): Time spent waiting for a window slot
//   - football_keys_active (Gauge): Keys currently enabled
//   - football_keys_disabled_total{reason} (Counter): Keys disabled by reason
//
// Request Metrics (pkg/client):
//   - football_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - football_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - football_errors_total{class} (Counter): Errors by class
//   - football_cooldown_seconds_total{reason} (Counter): Seconds slept in rate limit cooldowns
//
// Retry Metrics (pkg/client):
//   - football_retries_total{error_class} (Counter): Retry attempts by error class
//   - football_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - football_retry_exhausted_total{error_class} (Counter): Calls that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - football_cache_hits_total (Counter): Envelopes served from Redis
//   - football_cache_misses_total (Counter): Cache misses
//   - football_cache_written_bytes_total (Counter): Bytes written to Redis
//   - football_cache_errors_total{operation} (Counter): Cache operation errors
//
// Session Metrics (pkg/session):
//   - football_session_units_total{job, outcome} (Counter): Units completed, failed or cut short by pool exhaustion
//   - football_session_state{job, state} (Gauge): 1 for the job's current state
//
// Example Prometheus Queries:
//
//   # Keys left in rotation
//   football_keys_active
//
//   # Unit failure rate per job
//   sum by (job) (rate(football_session_units_total{outcome="failed"}[15m]))
//
//   # Time lost to cooldowns
//   sum by (reason) (increase(football_cooldown_seconds_total[1h]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(football_request_duration_seconds_bucket[5m]))
