package jobs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/Sternrassler/football-collector/pkg/table"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Thresholds applied by Validate.
const (
	// MinSquadSize is the smallest squad that is not reported as thin.
	MinSquadSize = 10

	// MinStatsCoverage is the share of a squad that needs season statistics.
	MinStatsCoverage = 0.5

	// MinFixtureCoverage is the share of finished fixtures a per-fixture
	// table must cover before missing fixtures are reported as an error.
	MinFixtureCoverage = 0.9

	// StartersPerFixture is the number of starters in a complete lineup.
	StartersPerFixture = 22
)

// Edition is the known size of one edition of a competition.
type Edition struct {
	League   int
	From     int
	To       int // 0 means still current
	Fixtures int
	Teams    int
}

// Editions lists competition formats whose size is fixed.
var Editions = []Edition{
	{League: 1, From: 1998, To: 2022, Fixtures: 64, Teams: 32},
	{League: 1, From: 2026, Fixtures: 104, Teams: 48},
	{League: 4, From: 2016, Fixtures: 51, Teams: 24},
}

func editionFor(league, season int) (Edition, bool) {
	for _, ed := range Editions {
		if ed.League == league && season >= ed.From && (ed.To == 0 || season <= ed.To) {
			return ed, true
		}
	}
	return Edition{}, false
}

// Issue is one gap found in a collected table.
type Issue struct {
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Subject, i.Message)
}

// Report is the outcome of checking one job's table.
type Report struct {
	Job     string  `json:"job"`
	Rows    int     `json:"rows"`
	Checked int     `json:"checked"`
	Issues  []Issue `json:"issues,omitempty"`
}

func (r *Report) add(sev Severity, subject, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Errors returns the number of error issues.
func (r *Report) Errors() int { return r.count(SeverityError) }

// Warnings returns the number of warning issues.
func (r *Report) Warnings() int { return r.count(SeverityWarning) }

func (r *Report) count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// Validate checks the table of the job called name against the tables it
// derives from. It only reads.
func Validate(name string, env *Env) (*Report, error) {
	switch name {
	case Fixtures:
		return validateFixtures(env)
	case Squads:
		return validateSquads(env)
	case PlayerSeasons:
		return validatePlayerSeasons(env)
	case FixtureStats:
		return validateFixtureTable(env, name,
			func(r records.TeamMatchStat) int { return r.FixtureID },
			func(rows []records.TeamMatchStat) string {
				if n := distinctTeams(rows, func(r records.TeamMatchStat) int { return r.TeamID }); n != 2 {
					return fmt.Sprintf("statistics for %d teams, want 2", n)
				}
				return ""
			})
	case Lineups:
		return validateFixtureTable(env, name,
			func(r records.LineupEntry) int { return r.FixtureID },
			func(rows []records.LineupEntry) string {
				starters := 0
				for _, r := range rows {
					if r.IsStarter {
						starters++
					}
				}
				if starters != StartersPerFixture {
					return fmt.Sprintf("%d starters, want %d", starters, StartersPerFixture)
				}
				return ""
			})
	case Events:
		return validateFixtureTable(env, name,
			func(r records.MatchEvent) int { return r.FixtureID }, nil)
	case FixturePlayers:
		return validateFixtureTable(env, name,
			func(r records.FixturePlayerStat) int { return r.FixtureID },
			func(rows []records.FixturePlayerStat) string {
				if n := distinctTeams(rows, func(r records.FixturePlayerStat) int { return r.TeamID }); n != 2 {
					return fmt.Sprintf("player statistics for %d teams, want 2", n)
				}
				return ""
			})
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownJob, name)
}

// validateFixtures checks every configured league-season for fixtures and,
// where the competition format is known, for the expected number of
// fixtures and teams.
func validateFixtures(e *Env) (*Report, error) {
	matches, err := table.Read[records.Match](tablePath(e, Fixtures))
	if err != nil {
		return nil, err
	}
	rep := &Report{Job: Fixtures, Rows: len(matches)}

	byUnit := make(map[string][]records.Match)
	for _, m := range matches {
		byUnit[pairUnit(m.LeagueID, m.Season)] = append(byUnit[pairUnit(m.LeagueID, m.Season)], m)
	}

	units, _ := fixtureUnits(e)
	for _, unit := range units {
		league, season, err := parsePair(unit)
		if err != nil {
			return nil, err
		}
		rep.Checked++
		subject := fmt.Sprintf("league %d season %d", league, season)

		ms := byUnit[unit]
		if len(ms) == 0 {
			rep.add(SeverityError, subject, "no fixtures collected")
			continue
		}

		teams := make(map[int]bool)
		unfinished := 0
		for _, m := range ms {
			teams[m.HomeTeamID] = true
			teams[m.AwayTeamID] = true
			if !finishedStatuses[m.Status] {
				unfinished++
			}
		}
		delete(teams, 0)

		if ed, ok := editionFor(league, season); ok {
			if len(ms) != ed.Fixtures {
				rep.add(SeverityError, subject, "%d fixtures, want %d", len(ms), ed.Fixtures)
			}
			if len(teams) != ed.Teams {
				rep.add(SeverityError, subject, "%d teams, want %d", len(teams), ed.Teams)
			}
		}
		if unfinished > 0 {
			rep.add(SeverityWarning, subject, "%d of %d fixtures not finished", unfinished, len(ms))
		}
	}
	return rep, nil
}

// validateSquads checks that every team in the fixtures table has a squad
// of reasonable size.
func validateSquads(e *Env) (*Report, error) {
	squad, err := table.Read[records.SquadPlayer](tablePath(e, Squads))
	if err != nil {
		return nil, err
	}
	rep := &Report{Job: Squads, Rows: len(squad)}

	teams, err := teamUnits(e)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		rep.add(SeverityError, Fixtures, "no teams to check squads against")
		return rep, nil
	}

	sizes := make(map[int]int)
	for _, p := range squad {
		sizes[p.TeamID]++
	}

	for _, unit := range teams {
		id, _ := strconv.Atoi(unit)
		rep.Checked++
		subject := "team " + unit

		switch n := sizes[id]; {
		case n == 0:
			rep.add(SeverityError, subject, "no squad collected")
		case n < MinSquadSize:
			rep.add(SeverityWarning, subject, "%d players, want at least %d", n, MinSquadSize)
		}
	}
	return rep, nil
}

// validatePlayerSeasons checks per team how many squad players have season
// statistics for any configured season.
func validatePlayerSeasons(e *Env) (*Report, error) {
	stats, err := table.Read[records.PlayerSeasonStat](tablePath(e, PlayerSeasons))
	if err != nil {
		return nil, err
	}
	rep := &Report{Job: PlayerSeasons, Rows: len(stats)}

	squad, err := table.Read[records.SquadPlayer](tablePath(e, Squads))
	if err != nil {
		return nil, err
	}
	if len(squad) == 0 {
		rep.add(SeverityError, Squads, "no squad players to check statistics against")
		return rep, nil
	}

	wanted := make(map[int]bool, len(e.Seasons))
	for _, s := range e.Seasons {
		wanted[s] = true
	}
	covered := make(map[int]bool)
	for _, s := range stats {
		if len(wanted) == 0 || wanted[s.Season] {
			covered[s.PlayerID] = true
		}
	}

	players := make(map[int][]int)
	for _, p := range squad {
		players[p.TeamID] = append(players[p.TeamID], p.PlayerID)
	}
	teams := make([]int, 0, len(players))
	for id := range players {
		teams = append(teams, id)
	}
	sort.Ints(teams)

	for _, team := range teams {
		rep.Checked++
		subject := "team " + strconv.Itoa(team)

		var missing []int
		for _, id := range players[team] {
			if !covered[id] {
				missing = append(missing, id)
			}
		}
		total := len(players[team])
		have := total - len(missing)

		switch {
		case have == 0:
			rep.add(SeverityError, subject, "no statistics for any of %d squad players", total)
		case float64(have)/float64(total) < MinStatsCoverage:
			rep.add(SeverityWarning, subject, "statistics for %d of %d squad players; missing %s",
				have, total, idList(missing))
		case len(missing) > 0:
			rep.add(SeverityWarning, subject, "%d squad players without statistics: %s",
				len(missing), idList(missing))
		}
	}
	return rep, nil
}

// validateFixtureTable checks that a per-fixture table covers the finished
// fixtures and, when shape is set, that each covered fixture looks whole.
func validateFixtureTable[T records.Record](
	e *Env,
	job string,
	fixtureOf func(T) int,
	shape func([]T) string,
) (*Report, error) {
	rows, err := table.Read[T](tablePath(e, job))
	if err != nil {
		return nil, err
	}
	rep := &Report{Job: job, Rows: len(rows)}

	metas, err := fixtureMetas(e)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		rep.add(SeverityError, Fixtures, "no finished fixtures to check against")
		return rep, nil
	}

	byFixture := make(map[int][]T)
	for _, r := range rows {
		byFixture[fixtureOf(r)] = append(byFixture[fixtureOf(r)], r)
	}

	ids := make([]int, 0, len(metas))
	for id := range metas {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var missing []int
	for _, id := range ids {
		rep.Checked++
		got, ok := byFixture[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if shape == nil {
			continue
		}
		if msg := shape(got); msg != "" {
			rep.add(SeverityWarning, "fixture "+strconv.Itoa(id), "%s", msg)
		}
	}

	if len(missing) > 0 {
		coverage := float64(len(ids)-len(missing)) / float64(len(ids))
		sev := SeverityWarning
		if coverage < MinFixtureCoverage {
			sev = SeverityError
		}
		rep.add(sev, "coverage", "%d of %d finished fixtures missing (%.0f%% covered): %s",
			len(missing), len(ids), coverage*100, idList(missing))
	}
	return rep, nil
}

func distinctTeams[T any](rows []T, teamOf func(T) int) int {
	seen := make(map[int]bool)
	for _, r := range rows {
		seen[teamOf(r)] = true
	}
	return len(seen)
}

// idList renders ids for a message, eliding all but the first ten.
func idList(ids []int) string {
	const limit = 10

	parts := make([]string, 0, limit+1)
	for i, id := range ids {
		if i == limit {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(ids)-limit))
			break
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}
