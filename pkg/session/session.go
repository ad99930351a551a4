// Package session drives resumable collection jobs.
//
// A Runner walks a job's work units in order, fetching each through the API
// client and accumulating the resulting rows. Completed units are recorded in
// a JSON progress file that is replaced atomically every SaveEvery units, so
// a killed or interrupted run resumes exactly where the last save left off.
// Rows are always flushed to the output table before the progress file that
// claims them is written.
//
// A run ends in one of these states:
//
//	completed                 every unit is complete; terminal until reset
//	paused (quota_exhausted)  daily quota at the buffer, or every key disabled
//	paused (interrupted)      the context was cancelled
//	paused (error_threshold)  too many consecutive unit failures
//	paused (units_failed)     every unit was tried but some failed
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for sessions.
var (
	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "football_session_units_total",
		Help: "Total work units processed by job and outcome",
	}, []string{"job", "outcome"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "football_session_state",
		Help: "Current session state by job (1 = active state)",
	}, []string{"job", "state"})
)

// Executor is the part of the API client a session needs.
type Executor interface {
	RequestCount() int64

	// ExhaustedResults counts the calls answered with an empty result
	// because every credential was disabled.
	ExhaustedResults() int64
}

// FetchFunc fetches one work unit and returns its rows.
type FetchFunc[T any] func(ctx context.Context, unit string) ([]T, error)

// FlushFunc persists accumulated rows.
type FlushFunc[T any] func(rows []T) error

// Config holds session configuration.
type Config struct {
	// Job names the collection job.
	Job string

	// ProgressPath is the progress file.
	ProgressPath string

	// SaveEvery is the number of completed units between saves.
	SaveEvery int

	// QuotaCheckEvery is the number of units between quota checks.
	QuotaCheckEvery int

	// QuotaBuffer is the number of daily calls left unused.
	QuotaBuffer int

	// MaxConsecutiveErrors trips the error guard.
	MaxConsecutiveErrors int
}

// DefaultConfig returns the default session configuration for job.
func DefaultConfig(job, progressPath string) Config {
	return Config{
		Job:                  job,
		ProgressPath:         progressPath,
		SaveEvery:            10,
		QuotaCheckEvery:      5,
		QuotaBuffer:          DefaultQuotaBuffer,
		MaxConsecutiveErrors: 5,
	}
}

// Result summarizes one run.
type Result struct {
	Job         string        `json:"job"`
	State       State         `json:"state"`
	PauseReason PauseReason   `json:"pause_reason,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	Total       int           `json:"total"`
	Skipped     int           `json:"skipped"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	Rows        int           `json:"rows"`
	Requests    int64         `json:"requests"`
	Duration    time.Duration `json:"duration"`
}

// Runner drives one job over its work units.
type Runner[T any] struct {
	cfg    Config
	exec   Executor
	quota  QuotaMonitor
	fetch  FetchFunc[T]
	flush  FlushFunc[T]
	now    func() time.Time
	logger zerolog.Logger
}

// NewRunner creates a runner. quota may be nil to disable quota checks.
func NewRunner[T any](cfg Config, exec Executor, quota QuotaMonitor, fetch FetchFunc[T], flush FlushFunc[T]) (*Runner[T], error) {
	if cfg.Job == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if cfg.ProgressPath == "" {
		return nil, fmt.Errorf("progress path is required")
	}
	if exec == nil || fetch == nil || flush == nil {
		return nil, fmt.Errorf("executor, fetch and flush are required")
	}
	if cfg.SaveEvery < 1 {
		cfg.SaveEvery = 1
	}
	if cfg.QuotaCheckEvery < 1 {
		cfg.QuotaCheckEvery = 1
	}
	if cfg.MaxConsecutiveErrors < 1 {
		cfg.MaxConsecutiveErrors = 1
	}

	return &Runner[T]{
		cfg:    cfg,
		exec:   exec,
		quota:  quota,
		fetch:  fetch,
		flush:  flush,
		now:    time.Now,
		logger: log.With().Str("component", "session").Str("job", cfg.Job).Logger(),
	}, nil
}

// run holds the mutable state of one Run call.
type run[T any] struct {
	*Runner[T]
	progress *Progress
	result   Result
	buffer   []T
	pending  int
	lastReq  int64
}

// Run processes every unit of units that is not yet complete. It returns
// an error only when the progress file or the output table cannot be read
// or written; unit failures are recorded and reflected in the result state.
func (r *Runner[T]) Run(ctx context.Context, units []string) (Result, error) {
	start := r.now()

	progress, err := LoadOrNew(r.cfg.ProgressPath, r.cfg.Job, start)
	if err != nil {
		return Result{}, err
	}

	st := &run[T]{
		Runner:   r,
		progress: progress,
		lastReq:  r.exec.RequestCount(),
		result:   Result{Job: r.cfg.Job, Total: len(units)},
	}

	if progress.State == StateCompleted {
		r.logger.Info().
			Int("completed", len(progress.Completed)).
			Msg("Session already completed, reset progress to run again")
		st.result.State = StateCompleted
		st.result.Skipped = len(units)
		return st.result, nil
	}

	remaining := progress.Remaining(units)
	st.result.Skipped = len(units) - len(remaining)

	progress.State = StateRunning
	progress.PauseReason = ReasonNone
	progress.Detail = ""
	progress.Sessions++
	if err := st.save(); err != nil {
		return st.result, err
	}
	r.setState(StateRunning)

	r.logger.Info().
		Int("total", len(units)).
		Int("already_completed", st.result.Skipped).
		Int("remaining", len(remaining)).
		Int("session", progress.Sessions).
		Msg("Session started")

	guard := NewErrorGuard(r.cfg.MaxConsecutiveErrors)

	for i, unit := range remaining {
		if ctx.Err() != nil {
			return st.pause(ReasonInterrupted, "interrupt received", start)
		}

		if r.quota != nil && i%r.cfg.QuotaCheckEvery == 0 {
			left, err := r.quota.Remaining(ctx)
			switch {
			case err != nil:
				r.logger.Warn().Err(err).Msg("Quota check failed, continuing")
			case left <= r.cfg.QuotaBuffer:
				return st.pause(ReasonQuotaExhausted,
					fmt.Sprintf("daily quota at %d, buffer %d", left, r.cfg.QuotaBuffer), start)
			}
		}

		exhaustedBefore := r.exec.ExhaustedResults()
		rows, err := r.fetch(ctx, unit)

		// An exhausted pool yields empty results that must not be recorded
		// as complete. Units answered from the cache are still good.
		if r.exec.ExhaustedResults() > exhaustedBefore {
			unitsTotal.WithLabelValues(r.cfg.Job, "exhausted").Inc()
			return st.pause(ReasonQuotaExhausted, "all credentials disabled", start)
		}

		if err != nil {
			if ctx.Err() != nil && errors.Is(err, client.ErrContextCancelled) {
				return st.pause(ReasonInterrupted, "interrupt received", start)
			}

			progress.MarkFailed(unit, err, r.now())
			st.result.Failed++
			unitsTotal.WithLabelValues(r.cfg.Job, "failed").Inc()

			r.logger.Warn().
				Err(err).
				Str("unit", unit).
				Int("consecutive_errors", guard.Consecutive()+1).
				Msg("Unit failed, skipping")

			if guard.Record(err) {
				return st.pause(ReasonErrorThreshold,
					fmt.Sprintf("%d consecutive failures, last: %v", guard.Consecutive(), err), start)
			}
			continue
		}
		guard.Record(nil)

		st.buffer = append(st.buffer, rows...)
		st.pending++
		progress.MarkCompleted(unit, len(rows), r.now())
		st.result.Completed++
		st.result.Rows += len(rows)
		unitsTotal.WithLabelValues(r.cfg.Job, "completed").Inc()

		r.logger.Debug().
			Str("unit", unit).
			Int("rows", len(rows)).
			Msg("Unit completed")

		if st.pending >= r.cfg.SaveEvery {
			if err := st.checkpoint(); err != nil {
				return st.result, err
			}
		}
	}

	if len(progress.Remaining(units)) > 0 {
		return st.pause(ReasonUnitsFailed,
			fmt.Sprintf("%d units failed and will be retried", len(progress.Failed)), start)
	}

	if err := st.flushBuffer(); err != nil {
		return st.result, err
	}
	completedAt := r.now()
	progress.State = StateCompleted
	progress.CompletedAt = &completedAt
	if err := st.save(); err != nil {
		return st.result, err
	}

	st.result.State = StateCompleted
	st.result.Duration = r.now().Sub(start)
	r.setState(StateCompleted)

	r.logger.Info().
		Int("completed", st.result.Completed).
		Int("rows", st.result.Rows).
		Dur("duration", st.result.Duration).
		Msg("Session completed")

	return st.result, nil
}

// checkpoint flushes buffered rows and then saves progress.
func (st *run[T]) checkpoint() error {
	if err := st.flushBuffer(); err != nil {
		return err
	}
	if err := st.save(); err != nil {
		return err
	}

	st.logger.Info().
		Int("completed", len(st.progress.Completed)).
		Int("failed", len(st.progress.Failed)).
		Msg("Progress saved")
	return nil
}

func (st *run[T]) flushBuffer() error {
	if len(st.buffer) > 0 {
		if err := st.flush(st.buffer); err != nil {
			return fmt.Errorf("flush %d rows: %w", len(st.buffer), err)
		}
	}
	st.buffer = nil
	st.pending = 0
	return nil
}

func (st *run[T]) save() error {
	req := st.exec.RequestCount()
	st.progress.Requests += req - st.lastReq
	st.result.Requests += req - st.lastReq
	st.lastReq = req
	st.progress.UpdatedAt = st.now()

	if err := st.progress.Save(st.cfg.ProgressPath); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// pause flushes, persists the paused state and builds the result.
func (st *run[T]) pause(reason PauseReason, detail string, start time.Time) (Result, error) {
	if err := st.flushBuffer(); err != nil {
		return st.result, err
	}

	st.progress.State = StatePaused
	st.progress.PauseReason = reason
	st.progress.Detail = detail
	if err := st.save(); err != nil {
		return st.result, err
	}

	st.result.State = StatePaused
	st.result.PauseReason = reason
	st.result.Detail = detail
	st.result.Duration = st.now().Sub(start)
	st.setState(StatePaused)

	event := st.logger.Warn()
	if reason == ReasonErrorThreshold || detail == "all credentials disabled" {
		event = st.logger.Error()
	}
	event.
		Str("reason", string(reason)).
		Str("detail", detail).
		Int("completed", st.result.Completed).
		Int("failed", st.result.Failed).
		Msg("Session paused")

	return st.result, nil
}

func (r *Runner[T]) setState(state State) {
	for _, s := range []State{StateRunning, StateCompleted, StatePaused} {
		v := 0.0
		if s == state {
			v = 1
		}
		sessionState.WithLabelValues(r.cfg.Job, string(s)).Set(v)
	}
}

// Snapshot returns the summary of the progress file at path without
// modifying it. A missing file reports StateNotStarted.
func Snapshot(job, path string) (Summary, error) {
	p, err := LoadOrNew(path, job, time.Time{})
	if err != nil {
		return Summary{}, err
	}
	return p.Summary(), nil
}
