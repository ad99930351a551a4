package jobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/Sternrassler/football-collector/pkg/session"
)

func fetchFixtures(e *Env) session.FetchFunc[records.Match] {
	return func(ctx context.Context, unit string) ([]records.Match, error) {
		league, season, err := parsePair(unit)
		if err != nil {
			return nil, err
		}
		items, err := e.Client.Fixtures(ctx, client.FixtureQuery{League: league, Season: season})
		if err != nil {
			return nil, err
		}
		return records.FlattenFixtures(items), nil
	}
}

func fetchSquad(e *Env) session.FetchFunc[records.SquadPlayer] {
	return func(ctx context.Context, unit string) ([]records.SquadPlayer, error) {
		team, err := strconv.Atoi(unit)
		if err != nil {
			return nil, fmt.Errorf("malformed unit %q: %w", unit, err)
		}
		items, err := e.Client.Squad(ctx, team)
		if err != nil {
			return nil, err
		}
		return records.FlattenSquad(team, items), nil
	}
}

func fetchPlayerSeason(e *Env) session.FetchFunc[records.PlayerSeasonStat] {
	return func(ctx context.Context, unit string) ([]records.PlayerSeasonStat, error) {
		player, season, err := parsePair(unit)
		if err != nil {
			return nil, err
		}
		items, err := e.Client.PlayerStatistics(ctx, player, season, 0)
		if err != nil {
			return nil, err
		}
		return records.FlattenPlayerStatistics(season, items), nil
	}
}

// fixtureFetch adapts a per-fixture endpoint to a fetch function. The fixture
// metadata is loaded once per run.
func fixtureFetch[I any, T any](
	e *Env,
	get func(ctx context.Context, fixture int) ([]I, error),
	flatten func(records.FixtureMeta, []I) []T,
) session.FetchFunc[T] {
	var metas map[int]records.FixtureMeta

	return func(ctx context.Context, unit string) ([]T, error) {
		id, err := strconv.Atoi(unit)
		if err != nil {
			return nil, fmt.Errorf("malformed unit %q: %w", unit, err)
		}

		if metas == nil {
			if metas, err = fixtureMetas(e); err != nil {
				return nil, err
			}
		}
		meta, ok := metas[id]
		if !ok {
			meta = records.FixtureMeta{FixtureID: id}
		}

		items, err := get(ctx, id)
		if err != nil {
			return nil, err
		}
		return flatten(meta, items), nil
	}
}

func fetchFixtureStats(e *Env) session.FetchFunc[records.TeamMatchStat] {
	return fixtureFetch(e, e.Client.FixtureStatistics, records.FlattenFixtureStatistics)
}

func fetchLineups(e *Env) session.FetchFunc[records.LineupEntry] {
	return fixtureFetch(e, e.Client.FixtureLineups, records.FlattenLineups)
}

func fetchEvents(e *Env) session.FetchFunc[records.MatchEvent] {
	return fixtureFetch(e, e.Client.FixtureEvents, records.FlattenEvents)
}

func fetchFixturePlayers(e *Env) session.FetchFunc[records.FixturePlayerStat] {
	return fixtureFetch(e, e.Client.FixturePlayers, records.FlattenFixturePlayers)
}
