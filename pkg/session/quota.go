package session

import (
	"context"
	"fmt"

	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/Sternrassler/football-collector/pkg/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultQuotaBuffer is the number of daily calls a session leaves unused.
const DefaultQuotaBuffer = 100

// QuotaMonitor reports the daily calls left across the key pool.
type QuotaMonitor interface {
	Remaining(ctx context.Context) (int, error)
}

// APIQuotaMonitor sums the remaining daily calls of every active key as
// reported by the status endpoint. When no key answers it defers to
// Fallback, if set.
type APIQuotaMonitor struct {
	client   *client.Client
	Fallback QuotaMonitor
	logger   zerolog.Logger
}

// NewAPIQuotaMonitor creates a monitor backed by the status endpoint.
func NewAPIQuotaMonitor(c *client.Client) *APIQuotaMonitor {
	return &APIQuotaMonitor{
		client: c,
		logger: log.With().Str("component", "quota-monitor").Logger(),
	}
}

// Remaining implements QuotaMonitor.
func (m *APIQuotaMonitor) Remaining(ctx context.Context) (int, error) {
	keys := m.client.Keys()

	total, answered := 0, 0
	var lastErr error
	for _, st := range keys.Status() {
		if st.Disabled {
			continue
		}

		status, err := m.client.AccountStatus(ctx, st.Index)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("key", st.Preview).
				Msg("Status request failed")
			lastErr = err
			continue
		}
		answered++
		total += status.Remaining()
	}

	if answered == 0 {
		if m.Fallback != nil {
			return m.Fallback.Remaining(ctx)
		}
		if lastErr == nil {
			return 0, nil
		}
		return 0, fmt.Errorf("no key reported its quota: %w", lastErr)
	}

	m.logger.Debug().
		Int("remaining", total).
		Int("keys", answered).
		Msg("Daily quota checked")
	return total, nil
}

// RequestCounter reports the number of calls issued by this process.
type RequestCounter interface {
	RequestCount() int64
}

// BudgetQuotaMonitor estimates the daily calls left from a configured
// per-key daily limit and the calls issued since it was created.
type BudgetQuotaMonitor struct {
	dailyLimit int
	keys       *ratelimit.KeyManager
	counter    RequestCounter
	base       int64
}

// NewBudgetQuotaMonitor creates a budget-based monitor. Calls made before
// creation are not counted.
func NewBudgetQuotaMonitor(dailyLimit int, keys *ratelimit.KeyManager, counter RequestCounter) *BudgetQuotaMonitor {
	return &BudgetQuotaMonitor{
		dailyLimit: dailyLimit,
		keys:       keys,
		counter:    counter,
		base:       counter.RequestCount(),
	}
}

// Remaining implements QuotaMonitor.
func (m *BudgetQuotaMonitor) Remaining(ctx context.Context) (int, error) {
	used := int(m.counter.RequestCount() - m.base)
	left := m.dailyLimit*m.keys.ActiveCount() - used
	if left < 0 {
		left = 0
	}
	return left, nil
}
