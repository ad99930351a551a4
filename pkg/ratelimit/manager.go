package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrNoKeys is returned when a KeyManager is built from an empty pool.
	ErrNoKeys = errors.New("no API keys configured")

	// ErrAllKeysDisabled is returned by Acquire once every key in the pool
	// has been disabled. It is permanent for the lifetime of the manager.
	ErrAllKeysDisabled = errors.New("all API keys are disabled")
)

// Prometheus metrics for key rotation.
var (
	keyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "football_key_requests_total",
		Help: "Total requests issued per key index",
	}, []string{"key"})

	keyWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "football_key_waits_total",
		Help: "Total number of times Acquire blocked because every key was at capacity",
	})

	keyWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "football_key_wait_seconds",
		Help:    "Time spent blocked waiting for key capacity",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
	})

	keysActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "football_keys_active",
		Help: "Number of keys that are not disabled",
	})

	keysDisabledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "football_keys_disabled_total",
		Help: "Total keys disabled by reason",
	}, []string{"reason"})
)

// Config holds the key manager configuration.
type Config struct {
	// Keys is the ordered key pool. Index positions are stable.
	Keys []string

	// RequestsPerWindow is the quota of each key inside Window.
	RequestsPerWindow int

	// Window is the length of the trailing window.
	Window time.Duration

	// SafetyMargin is added to every computed wait.
	SafetyMargin time.Duration

	// Clock defaults to SystemClock.
	Clock Clock
}

// DefaultConfig returns the default configuration for the given keys.
func DefaultConfig(keys []string) Config {
	return Config{
		Keys:              keys,
		RequestsPerWindow: DefaultRequestsPerWindow,
		Window:            DefaultWindow,
		SafetyMargin:      DefaultSafetyMargin,
		Clock:             SystemClock{},
	}
}

// KeyManager hands out keys round-robin while keeping each key inside its
// own sliding window budget.
type KeyManager struct {
	mu     sync.Mutex
	keys   []*keyState
	cursor int
	active int

	limit  int
	window time.Duration
	margin time.Duration
	clock  Clock
	logger zerolog.Logger
}

// NewKeyManager creates a key manager.
func NewKeyManager(cfg Config, logger zerolog.Logger) (*KeyManager, error) {
	if len(cfg.Keys) == 0 {
		return nil, ErrNoKeys
	}

	if cfg.RequestsPerWindow <= 0 {
		return nil, fmt.Errorf("requests_per_window must be > 0 (got %d)", cfg.RequestsPerWindow)
	}

	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be > 0 (got %s)", cfg.Window)
	}

	if cfg.SafetyMargin < 0 {
		return nil, fmt.Errorf("safety_margin must be >= 0 (got %s)", cfg.SafetyMargin)
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	keys := make([]*keyState, len(cfg.Keys))
	for i, k := range cfg.Keys {
		if k == "" {
			return nil, fmt.Errorf("key %d is empty", i)
		}
		keys[i] = &keyState{
			value:  k,
			window: make([]time.Time, 0, cfg.RequestsPerWindow),
		}
	}

	keysActive.Set(float64(len(keys)))

	logger.Info().
		Int("keys", len(keys)).
		Int("requests_per_window", cfg.RequestsPerWindow).
		Dur("window", cfg.Window).
		Int("max_per_window", len(keys)*cfg.RequestsPerWindow).
		Msg("Key manager initialized")

	return &KeyManager{
		keys:   keys,
		active: len(keys),
		limit:  cfg.RequestsPerWindow,
		window: cfg.Window,
		margin: cfg.SafetyMargin,
		clock:  cfg.Clock,
		logger: logger,
	}, nil
}

// Acquire returns the next usable key, blocking until one has capacity.
//
// Keys are scanned round-robin starting at the rotation cursor. The first
// enabled key with room in its window is stamped and returned, and the
// cursor moves past it. When no key has room the caller sleeps until the
// oldest timestamp of some key leaves its window (plus the safety margin)
// and the scan repeats. The lock is not held while sleeping.
//
// Acquire fails immediately with ErrAllKeysDisabled once the pool is empty,
// and with the context error if ctx ends while waiting.
func (m *KeyManager) Acquire(ctx context.Context) (Key, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Key{}, err
		}

		m.mu.Lock()
		key, wait, err := m.tryAcquireLocked()
		m.mu.Unlock()

		if err != nil {
			return Key{}, err
		}
		if wait < 0 {
			keyRequestsTotal.WithLabelValues(strconv.Itoa(key.Index)).Inc()
			return key, nil
		}
		if wait == 0 {
			continue
		}

		wait += m.margin
		keyWaitsTotal.Inc()
		keyWaitSeconds.Observe(wait.Seconds())

		m.logger.Warn().
			Dur("wait", wait).
			Int("active_keys", m.ActiveCount()).
			Msg("All keys at capacity, waiting for window")

		if err := m.clock.Sleep(ctx, wait); err != nil {
			return Key{}, err
		}
	}
}

// tryAcquireLocked performs one scan. It returns a key with wait < 0 on
// success, otherwise the time until the earliest key regains capacity
// (0 meaning rescan now). Purge, check and append happen under m.mu.
func (m *KeyManager) tryAcquireLocked() (Key, time.Duration, error) {
	if m.active == 0 {
		return Key{}, 0, ErrAllKeysDisabled
	}

	now := m.clock.Now()
	cutoff := now.Add(-m.window)
	n := len(m.keys)

	for i := 0; i < n; i++ {
		idx := (m.cursor + i) % n
		st := m.keys[idx]
		if st.disabled {
			continue
		}

		st.purge(cutoff)
		if len(st.window) < m.limit {
			st.window = append(st.window, now)
			m.cursor = (idx + 1) % n
			return Key{Value: st.value, Index: idx}, -1, nil
		}
	}

	wait := time.Duration(-1)
	for _, st := range m.keys {
		if st.disabled || len(st.window) == 0 {
			continue
		}
		w := st.oldest().Add(m.window).Sub(now)
		if wait < 0 || w < wait {
			wait = w
		}
	}
	if wait < 0 {
		wait = 0
	}

	return Key{}, wait, nil
}

// Disable permanently removes a key from rotation. Disabling an already
// disabled key or an unknown index is a no-op.
func (m *KeyManager) Disable(index int, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.keys) {
		m.logger.Warn().Int("key_index", index).Msg("Disable called with unknown key index")
		return
	}

	st := m.keys[index]
	if st.disabled {
		return
	}

	st.disabled = true
	st.reason = reason
	st.disabledAt = m.clock.Now()
	st.window = st.window[:0]
	m.active--

	keysActive.Set(float64(m.active))
	keysDisabledTotal.WithLabelValues(reason).Inc()

	m.logger.Warn().
		Int("key_index", index).
		Str("key", Preview(st.value)).
		Str("reason", reason).
		Int("active_keys", m.active).
		Msg("Key disabled")

	if m.active == 0 {
		m.logger.Error().Msg("All keys disabled, no further requests can be made")
	}
}

// Status returns a snapshot of every key after purging stale timestamps.
// The rotation cursor is not touched.
func (m *KeyManager) Status() []KeyStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-m.window)
	out := make([]KeyStatus, len(m.keys))
	for i, st := range m.keys {
		st.purge(cutoff)
		ks := KeyStatus{
			Index:      i,
			Preview:    Preview(st.value),
			Used:       len(st.window),
			Disabled:   st.disabled,
			Reason:     st.reason,
			DisabledAt: st.disabledAt,
		}
		if !st.disabled {
			ks.Remaining = m.limit - ks.Used
		}
		out[i] = ks
	}
	return out
}

// ActiveCount returns the number of keys that are not disabled.
func (m *KeyManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Size returns the pool size including disabled keys.
func (m *KeyManager) Size() int {
	return len(m.keys)
}

// KeyAt returns the key at index without stamping its window. The boolean
// is false for unknown or disabled indexes.
func (m *KeyManager) KeyAt(index int) (Key, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.keys) || m.keys[index].disabled {
		return Key{}, false
	}
	return Key{Value: m.keys[index].value, Index: index}, true
}

// Window returns the configured window length.
func (m *KeyManager) Window() time.Duration {
	return m.window
}
