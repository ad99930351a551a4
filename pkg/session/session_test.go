package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/Sternrassler/football-collector/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unitRow struct {
	Unit  string `csv:"unit"`
	Value int    `csv:"value"`
}

func (r unitRow) Key() string { return r.Unit }

type fakeExecutor struct {
	requests  atomic.Int64
	exhausted atomic.Int64
}

func (f *fakeExecutor) RequestCount() int64     { return f.requests.Load() }
func (f *fakeExecutor) ExhaustedResults() int64 { return f.exhausted.Load() }

type fakeQuota struct {
	readings []int
	calls    int
}

func (q *fakeQuota) Remaining(ctx context.Context) (int, error) {
	i := q.calls
	if i >= len(q.readings) {
		i = len(q.readings) - 1
	}
	q.calls++
	return q.readings[i], nil
}

type harness struct {
	dir      string
	exec     *fakeExecutor
	fetched  []string
	progress string
	table    string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{
		dir:      dir,
		exec:     &fakeExecutor{},
		progress: filepath.Join(dir, "progress.json"),
		table:    filepath.Join(dir, "rows.csv"),
	}
}

// runner builds a runner whose fetch records the unit, counts one request
// and then defers to fn.
func (h *harness) runner(t *testing.T, cfg Config, quota QuotaMonitor, fn func(ctx context.Context, unit string) ([]unitRow, error)) *Runner[unitRow] {
	t.Helper()

	fetch := func(ctx context.Context, unit string) ([]unitRow, error) {
		h.fetched = append(h.fetched, unit)
		h.exec.requests.Add(1)
		return fn(ctx, unit)
	}
	flush := func(rows []unitRow) error {
		_, err := table.Merge(h.table, rows, table.KeepLast)
		return err
	}

	r, err := NewRunner[unitRow](cfg, h.exec, quota, fetch, flush)
	require.NoError(t, err)
	return r
}

func (h *harness) config() Config {
	return DefaultConfig("test-job", h.progress)
}

func okFetch(ctx context.Context, unit string) ([]unitRow, error) {
	n, _ := strconv.Atoi(unit)
	return []unitRow{{Unit: unit, Value: n * 10}}, nil
}

func units(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func TestNewRunner_Validation(t *testing.T) {
	h := newHarness(t)
	flush := func([]unitRow) error { return nil }

	_, err := NewRunner[unitRow](Config{ProgressPath: h.progress}, h.exec, nil, okFetch, flush)
	assert.Error(t, err)
	_, err = NewRunner[unitRow](Config{Job: "x"}, h.exec, nil, okFetch, flush)
	assert.Error(t, err)
	_, err = NewRunner[unitRow](h.config(), h.exec, nil, nil, flush)
	assert.Error(t, err)
}

func TestRun_CompletesAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, h.config(), nil, okFetch)

	res, err := r.Run(context.Background(), units(10))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 10, res.Completed)
	assert.Equal(t, 10, res.Rows)
	assert.EqualValues(t, 10, res.Requests)

	// Completed is terminal: no further calls.
	h.fetched = nil
	res, err = r.Run(context.Background(), units(10))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Empty(t, h.fetched)

	rows, err := table.Read[unitRow](h.table)
	require.NoError(t, err)
	assert.Len(t, rows, 10)
}

func TestRun_ResumeSkipsCompletedUnits(t *testing.T) {
	h := newHarness(t)

	p := NewProgress("test-job", testNow)
	for _, u := range []string{"1", "2", "3"} {
		p.MarkCompleted(u, 1, testNow)
	}
	p.State = StatePaused
	p.PauseReason = ReasonQuotaExhausted
	require.NoError(t, p.Save(h.progress))

	r := h.runner(t, h.config(), nil, okFetch)
	res, err := r.Run(context.Background(), units(5))
	require.NoError(t, err)

	assert.Equal(t, []string{"4", "5"}, h.fetched)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, StateCompleted, res.State)
}

func TestRun_InterruptAfterUnitSevenReprocessesOnlyRest(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		if unit == "7" {
			cancel()
		}
		return okFetch(ctx, unit)
	})

	res, err := r.Run(ctx, units(10))
	require.NoError(t, err)
	assert.Equal(t, StatePaused, res.State)
	assert.Equal(t, ReasonInterrupted, res.PauseReason)
	assert.Equal(t, units(7), h.fetched)

	// Rows of units 1-7 were flushed on interrupt, before the periodic flush.
	rows, err := table.Read[unitRow](h.table)
	require.NoError(t, err)
	assert.Len(t, rows, 7)

	h.fetched = nil
	res, err = r.Run(context.Background(), units(10))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []string{"8", "9", "10"}, h.fetched)

	rows, err = table.Read[unitRow](h.table)
	require.NoError(t, err)
	assert.Len(t, rows, 10, "one row per key after resume")
}

func TestRun_InterruptDuringFetchLeavesUnitIncomplete(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		if unit == "3" {
			cancel()
			return nil, fmt.Errorf("%w: %w", client.ErrContextCancelled, context.Canceled)
		}
		return okFetch(ctx, unit)
	})

	res, err := r.Run(ctx, units(5))
	require.NoError(t, err)
	assert.Equal(t, ReasonInterrupted, res.PauseReason)
	assert.Zero(t, res.Failed)

	p, err := LoadProgress(h.progress)
	require.NoError(t, err)
	assert.False(t, p.IsCompleted("3"))
	assert.Empty(t, p.Failed)
}

func TestRun_RepeatedResumesNeverDuplicateRows(t *testing.T) {
	h := newHarness(t)
	cfg := h.config()
	cfg.SaveEvery = 3

	for stopAt := 2; stopAt <= 10; stopAt += 3 {
		ctx, cancel := context.WithCancel(context.Background())
		stop := strconv.Itoa(stopAt)
		r := h.runner(t, cfg, nil, func(ctx context.Context, unit string) ([]unitRow, error) {
			if unit == stop {
				cancel()
			}
			return okFetch(ctx, unit)
		})
		_, err := r.Run(ctx, units(10))
		require.NoError(t, err)
		cancel()
	}

	r := h.runner(t, cfg, nil, okFetch)
	res, err := r.Run(context.Background(), units(10))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)

	rows, err := table.Read[unitRow](h.table)
	require.NoError(t, err)
	assert.Len(t, rows, 10)

	seen := map[string]int{}
	for _, u := range h.fetched {
		seen[u]++
	}
	for u, n := range seen {
		assert.Equal(t, 1, n, "unit %s fetched more than once", u)
	}
}

func TestRun_FailedUnitSkippedAndRetriedNextRun(t *testing.T) {
	h := newHarness(t)
	fail := true

	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		if unit == "2" && fail {
			return nil, errors.New("malformed response")
		}
		return okFetch(ctx, unit)
	})

	res, err := r.Run(context.Background(), units(4))
	require.NoError(t, err)
	assert.Equal(t, StatePaused, res.State)
	assert.Equal(t, ReasonUnitsFailed, res.PauseReason)
	assert.Equal(t, 3, res.Completed)
	assert.Equal(t, 1, res.Failed)

	p, err := LoadProgress(h.progress)
	require.NoError(t, err)
	assert.Equal(t, "malformed response", p.Failed["2"].Error)

	fail = false
	h.fetched = nil
	res, err = r.Run(context.Background(), units(4))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []string{"2"}, h.fetched)

	p, err = LoadProgress(h.progress)
	require.NoError(t, err)
	assert.Empty(t, p.Failed, "failure cleared on success")
	assert.Equal(t, 1, p.Errors)
	assert.Equal(t, 2, p.Sessions)
}

func TestRun_ErrorThresholdPauses(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		return nil, &client.APIError{StatusCode: 500, ErrorClass: client.ErrorClassServer}
	})

	res, err := r.Run(context.Background(), units(20))
	require.NoError(t, err)
	assert.Equal(t, StatePaused, res.State)
	assert.Equal(t, ReasonErrorThreshold, res.PauseReason)
	assert.Len(t, h.fetched, 5)
}

func TestRun_RateLimitErrorsDoNotTripGuard(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		return nil, &client.APIError{StatusCode: 429, ErrorClass: client.ErrorClassRateLimit}
	})

	res, err := r.Run(context.Background(), units(8))
	require.NoError(t, err)
	assert.Equal(t, ReasonUnitsFailed, res.PauseReason)
	assert.Len(t, h.fetched, 8)
}

func TestRun_QuotaPause(t *testing.T) {
	tests := []struct {
		name        string
		readings    []int
		wantFetched int
	}{
		{name: "at buffer before first unit", readings: []int{100}, wantFetched: 0},
		{name: "drops below buffer on second check", readings: []int{500, 60}, wantFetched: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			quota := &fakeQuota{readings: tt.readings}
			r := h.runner(t, h.config(), quota, okFetch)

			res, err := r.Run(context.Background(), units(12))
			require.NoError(t, err)
			assert.Equal(t, StatePaused, res.State)
			assert.Equal(t, ReasonQuotaExhausted, res.PauseReason)
			assert.Len(t, h.fetched, tt.wantFetched)

			rows, err := table.Read[unitRow](h.table)
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantFetched, "completed rows flushed on pause")
		})
	}
}

func TestRun_PoolExhaustionPausesWithoutCompletingUnit(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		if unit == "3" {
			h.exec.exhausted.Add(1)
			return nil, nil
		}
		return okFetch(ctx, unit)
	})

	res, err := r.Run(context.Background(), units(5))
	require.NoError(t, err)
	assert.Equal(t, StatePaused, res.State)
	assert.Equal(t, ReasonQuotaExhausted, res.PauseReason)
	assert.Equal(t, "all credentials disabled", res.Detail)

	p, err := LoadProgress(h.progress)
	require.NoError(t, err)
	assert.True(t, p.IsCompleted("2"))
	assert.False(t, p.IsCompleted("3"))
}

func TestRun_CachedUnitsRecordedAfterPoolExhaustion(t *testing.T) {
	h := newHarness(t)
	// The pool ran dry in an earlier session; the counter never resets.
	h.exec.exhausted.Store(1)

	r := h.runner(t, h.config(), nil, func(ctx context.Context, unit string) ([]unitRow, error) {
		if unit == "4" {
			h.exec.exhausted.Add(1)
			return nil, nil
		}
		return okFetch(ctx, unit)
	})

	res, err := r.Run(context.Background(), units(5))
	require.NoError(t, err)
	assert.Equal(t, ReasonQuotaExhausted, res.PauseReason)
	assert.Equal(t, 3, res.Completed, "units served without a credential are kept")

	p, err := LoadProgress(h.progress)
	require.NoError(t, err)
	for _, u := range []string{"1", "2", "3"} {
		assert.True(t, p.IsCompleted(u), "unit %s", u)
	}
	assert.False(t, p.IsCompleted("4"))
}

func TestRun_FlushErrorIsFatal(t *testing.T) {
	h := newHarness(t)
	cfg := h.config()
	cfg.SaveEvery = 2

	r, err := NewRunner[unitRow](cfg, h.exec, nil, okFetch, func([]unitRow) error {
		return errors.New("disk full")
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), units(3))
	require.Error(t, err)

	p, err := LoadProgress(h.progress)
	require.NoError(t, err)
	assert.Empty(t, p.Completed, "progress never claims unflushed units")
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)

	s, err := Snapshot("test-job", h.progress)
	require.NoError(t, err)
	assert.Equal(t, StateNotStarted, s.State)

	r := h.runner(t, h.config(), nil, okFetch)
	_, err = r.Run(context.Background(), units(3))
	require.NoError(t, err)

	s, err = Snapshot("test-job", h.progress)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, s.State)
	assert.Equal(t, 3, s.Completed)
	assert.Equal(t, 3, s.Records)
	assert.EqualValues(t, 3, s.Requests)

	_, statErr := os.Stat(h.progress)
	require.NoError(t, statErr)
}
