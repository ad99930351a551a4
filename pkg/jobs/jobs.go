// Package jobs defines the collection jobs: which work units each job
// enumerates, how a unit is fetched and flattened, and which table the rows
// are merged into.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/Sternrassler/football-collector/pkg/session"
	"github.com/Sternrassler/football-collector/pkg/table"
)

// Job names.
const (
	Fixtures       = "fixtures"
	Squads         = "squads"
	PlayerSeasons  = "player-seasons"
	FixtureStats   = "fixture-stats"
	Lineups        = "lineups"
	Events         = "events"
	FixturePlayers = "fixture-players"
)

// ErrNoUnits is returned when a job has nothing to enumerate, typically
// because the table it derives its units from has not been collected yet.
var ErrNoUnits = errors.New("no work units")

// ErrUnknownJob is returned by New for an unknown job name.
var ErrUnknownJob = errors.New("unknown job")

// Env is what every job runs against.
type Env struct {
	Client  *client.Client
	Quota   session.QuotaMonitor
	DataDir string
	Leagues []int
	Seasons []int

	// Session is the template for session configuration; Job and
	// ProgressPath are filled in per job.
	Session session.Config
}

// Job is one collection job.
type Job interface {
	// Name returns the job name.
	Name() string

	// TablePath returns the output table.
	TablePath() string

	// ProgressPath returns the progress file.
	ProgressPath() string

	// Units enumerates the job's work units in processing order.
	Units() ([]string, error)

	// Run runs one session over the job's units.
	Run(ctx context.Context) (session.Result, error)

	// Export writes the output table as parquet to dst.
	Export(dst string) (int, error)

	// Rebuild combines per-file tables srcs into dst.
	Rebuild(dst string, srcs []string) (int, error)
}

// job implements Job for row type T.
type job[T records.Record] struct {
	name  string
	env   *Env
	units func(e *Env) ([]string, error)
	fetch func(e *Env) session.FetchFunc[T]
}

func (j *job[T]) Name() string { return j.name }

func (j *job[T]) TablePath() string {
	return filepath.Join(j.env.DataDir, j.name+".csv")
}

func (j *job[T]) ProgressPath() string {
	return filepath.Join(j.env.DataDir, "progress", j.name+".json")
}

func (j *job[T]) Units() ([]string, error) {
	units, err := j.units(j.env)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoUnits, j.name)
	}
	return units, nil
}

func (j *job[T]) Run(ctx context.Context) (session.Result, error) {
	units, err := j.Units()
	if err != nil {
		return session.Result{}, err
	}

	cfg := j.env.Session
	cfg.Job = j.name
	cfg.ProgressPath = j.ProgressPath()

	path := j.TablePath()
	flush := func(rows []T) error {
		_, err := table.Merge(path, rows, table.KeepLast)
		return err
	}

	runner, err := session.NewRunner[T](cfg, j.env.Client, j.env.Quota, j.fetch(j.env), flush)
	if err != nil {
		return session.Result{}, err
	}
	return runner.Run(ctx, units)
}

func (j *job[T]) Export(dst string) (int, error) {
	return table.ExportParquet[T](j.TablePath(), dst)
}

func (j *job[T]) Rebuild(dst string, srcs []string) (int, error) {
	return table.Combine[T](dst, srcs, table.KeepFirst)
}

// New returns the job called name.
func New(name string, env *Env) (Job, error) {
	switch name {
	case Fixtures:
		return &job[records.Match]{name: name, env: env, units: fixtureUnits, fetch: fetchFixtures}, nil
	case Squads:
		return &job[records.SquadPlayer]{name: name, env: env, units: teamUnits, fetch: fetchSquad}, nil
	case PlayerSeasons:
		return &job[records.PlayerSeasonStat]{name: name, env: env, units: playerSeasonUnits, fetch: fetchPlayerSeason}, nil
	case FixtureStats:
		return &job[records.TeamMatchStat]{name: name, env: env, units: finishedFixtureUnits, fetch: fetchFixtureStats}, nil
	case Lineups:
		return &job[records.LineupEntry]{name: name, env: env, units: finishedFixtureUnits, fetch: fetchLineups}, nil
	case Events:
		return &job[records.MatchEvent]{name: name, env: env, units: finishedFixtureUnits, fetch: fetchEvents}, nil
	case FixturePlayers:
		return &job[records.FixturePlayerStat]{name: name, env: env, units: finishedFixtureUnits, fetch: fetchFixturePlayers}, nil
	}
	return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownJob, name, Names())
}

// Names lists every job in dependency order.
func Names() []string {
	return []string{Fixtures, Squads, PlayerSeasons, FixtureStats, Lineups, Events, FixturePlayers}
}

func sortedSeasons(seasons []int) []int {
	out := append([]int(nil), seasons...)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
