package jobs

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/Sternrassler/football-collector/pkg/table"
)

// finishedStatuses are the fixture statuses whose statistics are final.
var finishedStatuses = map[string]bool{
	"FT":  true,
	"AET": true,
	"PEN": true,
	"AWD": true,
	"WO":  true,
}

func tablePath(e *Env, job string) string {
	return filepath.Join(e.DataDir, job+".csv")
}

// pairUnit renders a two-part unit identifier.
func pairUnit(a, b int) string {
	return strconv.Itoa(a) + ":" + strconv.Itoa(b)
}

// parsePair parses a unit rendered by pairUnit.
func parsePair(unit string) (int, int, error) {
	left, right, ok := strings.Cut(unit, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed unit %q", unit)
	}
	a, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed unit %q: %w", unit, err)
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed unit %q: %w", unit, err)
	}
	return a, b, nil
}

// fixtureUnits enumerates league:season pairs, most recent season first.
func fixtureUnits(e *Env) ([]string, error) {
	var out []string
	for _, season := range sortedSeasons(e.Seasons) {
		for _, league := range e.Leagues {
			out = append(out, pairUnit(league, season))
		}
	}
	return out, nil
}

// teamUnits enumerates every team found in the fixtures table, ascending.
func teamUnits(e *Env) ([]string, error) {
	matches, err := table.Read[records.Match](tablePath(e, Fixtures))
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, m := range matches {
		seen[m.HomeTeamID] = true
		seen[m.AwayTeamID] = true
	}
	delete(seen, 0)

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out, nil
}

// playerSeasonUnits enumerates player:season pairs from the squads table
// for every configured season, most recent season first, then ascending
// player id.
func playerSeasonUnits(e *Env) ([]string, error) {
	squad, err := table.Read[records.SquadPlayer](tablePath(e, Squads))
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var players []int
	for _, p := range squad {
		if p.PlayerID == 0 || seen[p.PlayerID] {
			continue
		}
		seen[p.PlayerID] = true
		players = append(players, p.PlayerID)
	}
	sort.Ints(players)

	var out []string
	for _, season := range sortedSeasons(e.Seasons) {
		for _, id := range players {
			out = append(out, pairUnit(id, season))
		}
	}
	return out, nil
}

// finishedFixtureUnits enumerates finished fixtures of the configured
// seasons, most recent season first, then ascending fixture id.
func finishedFixtureUnits(e *Env) ([]string, error) {
	metas, err := fixtureMetas(e)
	if err != nil {
		return nil, err
	}

	list := make([]records.FixtureMeta, 0, len(metas))
	for _, m := range metas {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Season != list[j].Season {
			return list[i].Season > list[j].Season
		}
		return list[i].FixtureID < list[j].FixtureID
	})

	out := make([]string, len(list))
	for i, m := range list {
		out[i] = strconv.Itoa(m.FixtureID)
	}
	return out, nil
}

// fixtureMetas loads the finished fixtures of the configured seasons keyed by
// fixture id.
func fixtureMetas(e *Env) (map[int]records.FixtureMeta, error) {
	matches, err := table.Read[records.Match](tablePath(e, Fixtures))
	if err != nil {
		return nil, err
	}

	wanted := make(map[int]bool, len(e.Seasons))
	for _, s := range e.Seasons {
		wanted[s] = true
	}

	out := make(map[int]records.FixtureMeta)
	for _, m := range matches {
		if !finishedStatuses[m.Status] {
			continue
		}
		if len(wanted) > 0 && !wanted[m.Season] {
			continue
		}
		out[m.FixtureID] = records.MetaFromMatch(m)
	}
	return out, nil
}
