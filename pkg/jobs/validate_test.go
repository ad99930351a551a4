package jobs

import (
	"testing"

	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/Sternrassler/football-collector/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subjects(rep *Report) map[string]Issue {
	out := make(map[string]Issue)
	for _, i := range rep.Issues {
		out[i.Subject] = i
	}
	return out
}

func TestValidate_UnknownJob(t *testing.T) {
	_, err := Validate("transfers", &Env{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestValidate_Fixtures(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Leagues: []int{4}, Seasons: []int{2020, 2024}}

	// 2024 has 51 fixtures between 24 teams, one not played yet.
	var matches []records.Match
	for i := 0; i < 51; i++ {
		status := "FT"
		if i == 50 {
			status = "NS"
		}
		matches = append(matches, records.Match{
			FixtureID: 1000 + i, LeagueID: 4, Season: 2024, Status: status,
			HomeTeamID: 1 + i%24, AwayTeamID: 1 + (i+1)%24,
		})
	}
	// 2020 is short of fixtures and teams.
	for i := 0; i < 10; i++ {
		matches = append(matches, records.Match{
			FixtureID: 2000 + i, LeagueID: 4, Season: 2020, Status: "FT",
			HomeTeamID: 1 + i%6, AwayTeamID: 1 + (i+1)%6,
		})
	}
	require.NoError(t, table.Write(tablePath(e, Fixtures), matches))

	rep, err := Validate(Fixtures, e)
	require.NoError(t, err)
	assert.Equal(t, 61, rep.Rows)
	assert.Equal(t, 2, rep.Checked)
	assert.Equal(t, 2, rep.Errors())
	assert.Equal(t, 1, rep.Warnings())

	assert.ElementsMatch(t, []Issue{
		{Severity: SeverityWarning, Subject: "league 4 season 2024", Message: "1 of 51 fixtures not finished"},
		{Severity: SeverityError, Subject: "league 4 season 2020", Message: "10 fixtures, want 51"},
		{Severity: SeverityError, Subject: "league 4 season 2020", Message: "6 teams, want 24"},
	}, rep.Issues)
}

func TestValidate_FixturesMissingSeason(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Leagues: []int{39}, Seasons: []int{2023}}

	rep, err := Validate(Fixtures, e)
	require.NoError(t, err)
	require.Len(t, rep.Issues, 1)
	assert.Equal(t, SeverityError, rep.Issues[0].Severity)
	assert.Equal(t, "no fixtures collected", rep.Issues[0].Message)
}

func TestValidate_Squads(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Seasons: []int{2024}}

	require.NoError(t, table.Write(tablePath(e, Fixtures), []records.Match{
		{FixtureID: 1, Season: 2024, Status: "FT", HomeTeamID: 10, AwayTeamID: 20},
		{FixtureID: 2, Season: 2024, Status: "FT", HomeTeamID: 30, AwayTeamID: 10},
	}))
	var squad []records.SquadPlayer
	for i := 0; i < 23; i++ {
		squad = append(squad, records.SquadPlayer{TeamID: 10, PlayerID: 100 + i})
	}
	for i := 0; i < 4; i++ {
		squad = append(squad, records.SquadPlayer{TeamID: 20, PlayerID: 200 + i})
	}
	require.NoError(t, table.Write(tablePath(e, Squads), squad))

	rep, err := Validate(Squads, e)
	require.NoError(t, err)
	assert.Equal(t, 27, rep.Rows)
	assert.Equal(t, 3, rep.Checked)

	issues := subjects(rep)
	assert.NotContains(t, issues, "team 10")
	assert.Equal(t, SeverityWarning, issues["team 20"].Severity)
	assert.Equal(t, "4 players, want at least 10", issues["team 20"].Message)
	assert.Equal(t, SeverityError, issues["team 30"].Severity)
}

func TestValidate_SquadsWithoutFixtures(t *testing.T) {
	rep, err := Validate(Squads, &Env{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Errors())
}

func TestValidate_PlayerSeasons(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Seasons: []int{2023, 2024}}

	require.NoError(t, table.Write(tablePath(e, Squads), []records.SquadPlayer{
		{TeamID: 1, PlayerID: 11}, {TeamID: 1, PlayerID: 12},
		{TeamID: 2, PlayerID: 21}, {TeamID: 2, PlayerID: 22}, {TeamID: 2, PlayerID: 23},
		{TeamID: 3, PlayerID: 31},
		{TeamID: 4, PlayerID: 41}, {TeamID: 4, PlayerID: 42},
	}))
	require.NoError(t, table.Write(tablePath(e, PlayerSeasons), []records.PlayerSeasonStat{
		{PlayerID: 11, Season: 2024}, {PlayerID: 12, Season: 2023},
		{PlayerID: 21, Season: 2024},
		{PlayerID: 31, Season: 2019},
		{PlayerID: 41, Season: 2024},
	}))

	rep, err := Validate(PlayerSeasons, e)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Rows)
	assert.Equal(t, 4, rep.Checked)

	issues := subjects(rep)
	assert.NotContains(t, issues, "team 1")
	assert.Equal(t, Issue{
		Severity: SeverityWarning, Subject: "team 2",
		Message: "statistics for 1 of 3 squad players; missing 22, 23",
	}, issues["team 2"])
	assert.Equal(t, Issue{
		Severity: SeverityError, Subject: "team 3",
		Message: "no statistics for any of 1 squad players",
	}, issues["team 3"], "seasons outside the configured ones do not count")
	assert.Equal(t, Issue{
		Severity: SeverityWarning, Subject: "team 4",
		Message: "1 squad players without statistics: 42",
	}, issues["team 4"])
}

func lineup(fixture, team, starters int) []records.LineupEntry {
	var out []records.LineupEntry
	for i := 0; i < starters; i++ {
		out = append(out, records.LineupEntry{FixtureID: fixture, TeamID: team, PlayerID: team*100 + i, IsStarter: true})
	}
	out = append(out, records.LineupEntry{FixtureID: fixture, TeamID: team, PlayerID: team*100 + 99, IsSubstitute: true})
	return out
}

func TestValidate_Lineups(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Seasons: []int{2024}}

	var matches []records.Match
	for id := 1; id <= 20; id++ {
		matches = append(matches, records.Match{FixtureID: id, Season: 2024, Status: "FT", HomeTeamID: 1, AwayTeamID: 2})
	}
	matches = append(matches, records.Match{FixtureID: 99, Season: 2024, Status: "NS", HomeTeamID: 1, AwayTeamID: 2})
	require.NoError(t, table.Write(tablePath(e, Fixtures), matches))

	var rows []records.LineupEntry
	for id := 1; id <= 19; id++ {
		rows = append(rows, lineup(id, 1, 11)...)
		if id == 7 {
			rows = append(rows, lineup(id, 2, 10)...)
			continue
		}
		rows = append(rows, lineup(id, 2, 11)...)
	}
	require.NoError(t, table.Write(tablePath(e, Lineups), rows))

	rep, err := Validate(Lineups, e)
	require.NoError(t, err)
	assert.Equal(t, 20, rep.Checked, "unfinished fixtures are not checked")

	issues := subjects(rep)
	assert.Equal(t, "21 starters, want 22", issues["fixture 7"].Message)
	assert.Equal(t, Issue{
		Severity: SeverityWarning, Subject: "coverage",
		Message: "1 of 20 finished fixtures missing (95% covered): 20",
	}, issues["coverage"])
	assert.Zero(t, rep.Errors())
}

func TestValidate_FixtureTablesBelowCoverage(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Seasons: []int{2024}}

	var matches []records.Match
	for id := 1; id <= 12; id++ {
		matches = append(matches, records.Match{FixtureID: id, Season: 2024, Status: "FT", HomeTeamID: 1, AwayTeamID: 2})
	}
	require.NoError(t, table.Write(tablePath(e, Fixtures), matches))
	require.NoError(t, table.Write(tablePath(e, FixtureStats), []records.TeamMatchStat{
		{FixtureID: 1, TeamID: 1}, {FixtureID: 1, TeamID: 2},
		{FixtureID: 2, TeamID: 1},
	}))

	rep, err := Validate(FixtureStats, e)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Rows)

	issues := subjects(rep)
	assert.Equal(t, "statistics for 1 teams, want 2", issues["fixture 2"].Message)
	assert.Equal(t, SeverityError, issues["coverage"].Severity)
	assert.Equal(t, "10 of 12 finished fixtures missing (17% covered): 3, 4, 5, 6, 7, 8, 9, 10, 11, 12",
		issues["coverage"].Message)

	for _, name := range []string{Events, FixturePlayers} {
		rep, err := Validate(name, e)
		require.NoError(t, err, name)
		assert.Equal(t, 0, rep.Rows, name)
		assert.Equal(t, 1, rep.Errors(), name)
	}
}

func TestValidate_ReadsOnly(t *testing.T) {
	e := &Env{DataDir: t.TempDir(), Leagues: []int{4}, Seasons: []int{2024}}

	for _, name := range Names() {
		_, err := Validate(name, e)
		require.NoError(t, err, name)
	}

	for _, name := range Names() {
		assert.NoFileExists(t, tablePath(e, name), name)
	}
}

func TestIDList_Elides(t *testing.T) {
	ids := make([]int, 13)
	for i := range ids {
		ids[i] = i + 1
	}
	assert.Equal(t, "1, 2, 3, 4, 5, 6, 7, 8, 9, 10, ... (3 more)", idList(ids))
	assert.Equal(t, "4", idList([]int{4}))
}
