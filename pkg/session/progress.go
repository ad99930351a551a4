package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"
)

// SchemaVersion is the version of the progress file format written by this
// package.
const SchemaVersion = 1

// ErrSchemaVersion is returned when a progress file was written with an
// unknown schema version.
var ErrSchemaVersion = errors.New("unsupported progress schema version")

// State is the lifecycle state of a session.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StatePaused     State = "paused"
)

// PauseReason qualifies StatePaused.
type PauseReason string

const (
	ReasonNone           PauseReason = ""
	ReasonQuotaExhausted PauseReason = "quota_exhausted"
	ReasonInterrupted    PauseReason = "interrupted"
	ReasonErrorThreshold PauseReason = "error_threshold"

	// ReasonUnitsFailed marks a session that processed every unit but left
	// failed units behind. The next run retries them.
	ReasonUnitsFailed PauseReason = "units_failed"
)

// UnitEntry describes one completed work unit.
type UnitEntry struct {
	CompletedAt time.Time `json:"completed_at"`
	Records     int       `json:"records"`
}

// FailedEntry describes the last failure of a work unit that is not complete.
type FailedEntry struct {
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Progress is the durable progress record of one collection job.
type Progress struct {
	SchemaVersion int                    `json:"schema_version"`
	Job           string                 `json:"job"`
	State         State                  `json:"state"`
	PauseReason   PauseReason            `json:"pause_reason,omitempty"`
	Detail        string                 `json:"detail,omitempty"`
	Completed     map[string]UnitEntry   `json:"completed"`
	Failed        map[string]FailedEntry `json:"failed"`
	Requests      int64                  `json:"requests"`
	Errors        int                    `json:"errors"`
	Sessions      int                    `json:"sessions"`
	StartedAt     time.Time              `json:"started_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// NewProgress returns an empty progress record for job.
func NewProgress(job string, now time.Time) *Progress {
	return &Progress{
		SchemaVersion: SchemaVersion,
		Job:           job,
		State:         StateNotStarted,
		Completed:     make(map[string]UnitEntry),
		Failed:        make(map[string]FailedEntry),
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// LoadProgress reads the progress record at path. A missing file is reported
// with an error matching os.ErrNotExist.
func LoadProgress(path string) (*Progress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse progress %s: %w", path, err)
	}
	if p.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d", ErrSchemaVersion, path, p.SchemaVersion, SchemaVersion)
	}

	if p.Completed == nil {
		p.Completed = make(map[string]UnitEntry)
	}
	if p.Failed == nil {
		p.Failed = make(map[string]FailedEntry)
	}
	return &p, nil
}

// LoadOrNew reads the progress record at path, or returns a new one when
// none exists.
func LoadOrNew(path, job string, now time.Time) (*Progress, error) {
	p, err := LoadProgress(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewProgress(job, now), nil
	}
	return p, err
}

// Save writes the record to path, replacing any previous file atomically.
func (p *Progress) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// ResetProgress deletes the progress record at path. A missing file is not
// an error.
func ResetProgress(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset progress: %w", err)
	}
	return nil
}

// IsCompleted reports whether unit is in the completed set.
func (p *Progress) IsCompleted(unit string) bool {
	_, ok := p.Completed[unit]
	return ok
}

// MarkCompleted adds unit to the completed set and clears its failure.
func (p *Progress) MarkCompleted(unit string, records int, now time.Time) {
	p.Completed[unit] = UnitEntry{CompletedAt: now, Records: records}
	delete(p.Failed, unit)
	p.UpdatedAt = now
}

// MarkFailed records the last failure of unit.
func (p *Progress) MarkFailed(unit string, err error, now time.Time) {
	entry := p.Failed[unit]
	entry.Error = err.Error()
	entry.Attempts++
	entry.LastAttempt = now
	p.Failed[unit] = entry
	p.Errors++
	p.UpdatedAt = now
}

// Remaining returns the units of all that are not complete, in order.
func (p *Progress) Remaining(all []string) []string {
	out := make([]string, 0, len(all))
	for _, u := range all {
		if !p.IsCompleted(u) {
			out = append(out, u)
		}
	}
	return out
}

// Summary is a read-only snapshot of a progress record.
type Summary struct {
	Job         string      `json:"job"`
	State       State       `json:"state"`
	PauseReason PauseReason `json:"pause_reason,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	Completed   int         `json:"completed"`
	Failed      int         `json:"failed"`
	Records     int         `json:"records"`
	Requests    int64       `json:"requests"`
	Errors      int         `json:"errors"`
	Sessions    int         `json:"sessions"`
	UpdatedAt   time.Time   `json:"updated_at"`
	FailedUnits []string    `json:"failed_units,omitempty"`
}

// Summary returns a snapshot of p.
func (p *Progress) Summary() Summary {
	s := Summary{
		Job:         p.Job,
		State:       p.State,
		PauseReason: p.PauseReason,
		Detail:      p.Detail,
		Completed:   len(p.Completed),
		Failed:      len(p.Failed),
		Requests:    p.Requests,
		Errors:      p.Errors,
		Sessions:    p.Sessions,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, e := range p.Completed {
		s.Records += e.Records
	}
	for u := range p.Failed {
		s.FailedUnits = append(s.FailedUnits, u)
	}
	sort.Strings(s.FailedUnits)
	return s
}

// writeFileAtomic replaces path with data through a synced temporary file
// in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644, renameio.WithTempDir(dir)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Reopen moves a completed progress record at path back to the paused state
// so the next run processes units added since it completed. Completed units
// stay complete. It reports whether the record was completed.
func Reopen(path string) (bool, error) {
	p, err := LoadProgress(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.State != StateCompleted {
		return false, nil
	}

	p.State = StatePaused
	p.PauseReason = ReasonNone
	p.Detail = "reopened"
	p.CompletedAt = nil
	if err := p.Save(path); err != nil {
		return false, err
	}
	return true, nil
}
