package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/football-collector/pkg/pagination"
	"github.com/Sternrassler/football-collector/pkg/records"
)

// Endpoint paths.
const (
	EndpointStatus            = "status"
	EndpointCountries         = "countries"
	EndpointLeagues           = "leagues"
	EndpointTeams             = "teams"
	EndpointSquads            = "players/squads"
	EndpointPlayerSeasons     = "players/seasons"
	EndpointPlayers           = "players"
	EndpointFixtures          = "fixtures"
	EndpointFixtureStatistics = "fixtures/statistics"
	EndpointFixtureLineups    = "fixtures/lineups"
	EndpointFixtureEvents     = "fixtures/events"
	EndpointFixturePlayers    = "fixtures/players"
)

// LeagueQuery filters the leagues endpoint. Zero values are omitted.
type LeagueQuery struct {
	ID      int
	Country string
	Season  int
}

func (q LeagueQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "id", q.ID)
	if q.Country != "" {
		v.Set("country", q.Country)
	}
	setInt(v, "season", q.Season)
	return v
}

// FixtureQuery filters the fixtures endpoint. Zero values are omitted.
type FixtureQuery struct {
	League int
	Season int
	Team   int
}

func (q FixtureQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "league", q.League)
	setInt(v, "season", q.Season)
	setInt(v, "team", q.Team)
	return v
}

func setInt(v url.Values, name string, n int) {
	if n != 0 {
		v.Set(name, strconv.Itoa(n))
	}
}

func idParam(name string, id int) url.Values {
	return url.Values{name: {strconv.Itoa(id)}}
}

// fetch executes endpoint and decodes the response member into a slice of T.
// An exhausted key pool yields an empty slice and no error.
func fetch[T any](ctx context.Context, c *Client, endpoint string, params url.Values) ([]T, error) {
	env, err := c.Execute(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var out []T
	if err := env.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Countries lists every country known to the API.
func (c *Client) Countries(ctx context.Context) ([]records.Country, error) {
	return fetch[records.Country](ctx, c, EndpointCountries, nil)
}

// Leagues lists leagues and cups matching q.
func (c *Client) Leagues(ctx context.Context, q LeagueQuery) ([]records.LeagueItem, error) {
	return fetch[records.LeagueItem](ctx, c, EndpointLeagues, q.values())
}

// Teams lists the teams of a league season.
func (c *Client) Teams(ctx context.Context, league, season int) ([]records.TeamItem, error) {
	v := url.Values{}
	setInt(v, "league", league)
	setInt(v, "season", season)
	return fetch[records.TeamItem](ctx, c, EndpointTeams, v)
}

// TeamByID returns one team, or nil when the API knows no such team.
func (c *Client) TeamByID(ctx context.Context, id int) (*records.TeamItem, error) {
	items, err := fetch[records.TeamItem](ctx, c, EndpointTeams, idParam("id", id))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// SearchTeams finds teams by name or country. The API requires at least
// three characters.
func (c *Client) SearchTeams(ctx context.Context, search string) ([]records.TeamItem, error) {
	if len(search) < 3 {
		return nil, fmt.Errorf("search term %q too short (min 3 characters)", search)
	}
	return fetch[records.TeamItem](ctx, c, EndpointTeams, url.Values{"search": {search}})
}

// Squad returns the current squad of a team.
func (c *Client) Squad(ctx context.Context, team int) ([]records.SquadItem, error) {
	return fetch[records.SquadItem](ctx, c, EndpointSquads, idParam("team", team))
}

// PlayerSeasons lists the seasons a player has statistics for.
func (c *Client) PlayerSeasons(ctx context.Context, player int) ([]int, error) {
	return fetch[int](ctx, c, EndpointPlayerSeasons, idParam("player", player))
}

// PlayerStatistics returns a player's statistics for one season. A zero
// league returns every competition played that season.
func (c *Client) PlayerStatistics(ctx context.Context, player, season, league int) ([]records.PlayerItem, error) {
	v := idParam("id", player)
	setInt(v, "season", season)
	setInt(v, "league", league)
	return fetch[records.PlayerItem](ctx, c, EndpointPlayers, v)
}

// PlayersByTeamSeason returns one page of a team's players for a season
// together with the total page count.
func (c *Client) PlayersByTeamSeason(ctx context.Context, team, season, page int) ([]records.PlayerItem, int, error) {
	v := url.Values{}
	setInt(v, "team", team)
	setInt(v, "season", season)

	data, total, err := c.FetchPage(ctx, EndpointPlayers, v, page)
	if err != nil {
		return nil, 0, err
	}

	var out []records.PlayerItem
	if !isEmptyJSON(data) {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, 0, &APIError{ErrorClass: ErrorClassAPI, Message: "decode players page", Err: err}
		}
	}
	return out, total, nil
}

// TeamPlayers walks every page of a team's players for a season.
func (c *Client) TeamPlayers(ctx context.Context, team, season int) ([]records.PlayerItem, error) {
	v := url.Values{}
	setInt(v, "team", team)
	setInt(v, "season", season)

	pages, err := pagination.NewWalker(c, pagination.DefaultConfig()).Walk(ctx, EndpointPlayers, v)
	if err != nil {
		return nil, err
	}

	var out []records.PlayerItem
	for _, p := range pages {
		if isEmptyJSON(p.Data) {
			continue
		}
		var items []records.PlayerItem
		if err := json.Unmarshal(p.Data, &items); err != nil {
			return nil, &APIError{ErrorClass: ErrorClassAPI, Message: fmt.Sprintf("decode players page %d", p.Number), Err: err}
		}
		out = append(out, items...)
	}
	return out, nil
}

// FetchPage implements pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, endpoint string, params url.Values, page int) ([]byte, int, error) {
	v := url.Values{}
	for k, vals := range params {
		v[k] = append([]string(nil), vals...)
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}

	env, err := c.Execute(ctx, endpoint, v)
	if err != nil {
		return nil, 0, err
	}
	return env.Response, env.Paging.Total, nil
}

// Fixtures lists fixtures matching q.
func (c *Client) Fixtures(ctx context.Context, q FixtureQuery) ([]records.FixtureItem, error) {
	return fetch[records.FixtureItem](ctx, c, EndpointFixtures, q.values())
}

// FixtureStatistics returns the per-team statistics of a fixture.
func (c *Client) FixtureStatistics(ctx context.Context, fixture int) ([]records.FixtureStatisticsItem, error) {
	return fetch[records.FixtureStatisticsItem](ctx, c, EndpointFixtureStatistics, idParam("fixture", fixture))
}

// FixtureLineups returns both lineups of a fixture.
func (c *Client) FixtureLineups(ctx context.Context, fixture int) ([]records.LineupItem, error) {
	return fetch[records.LineupItem](ctx, c, EndpointFixtureLineups, idParam("fixture", fixture))
}

// FixtureEvents returns the events of a fixture in match order.
func (c *Client) FixtureEvents(ctx context.Context, fixture int) ([]records.EventItem, error) {
	return fetch[records.EventItem](ctx, c, EndpointFixtureEvents, idParam("fixture", fixture))
}

// FixturePlayers returns the per-player statistics of a fixture.
func (c *Client) FixturePlayers(ctx context.Context, fixture int) ([]records.FixturePlayersItem, error) {
	return fetch[records.FixturePlayersItem](ctx, c, EndpointFixturePlayers, idParam("fixture", fixture))
}

// AccountStatus queries the status endpoint with the key at keyIndex. The
// call bypasses rotation and window accounting and never disables the key.
func (c *Client) AccountStatus(ctx context.Context, keyIndex int) (*records.AccountStatus, error) {
	key, ok := c.keys.KeyAt(keyIndex)
	if !ok {
		return nil, fmt.Errorf("key %d is unknown or disabled", keyIndex)
	}

	var status records.AccountStatus
	err := c.retryWithBackoff(ctx, EndpointStatus, func() error {
		env, _, err := c.send(ctx, key, EndpointStatus, nil)
		if err != nil {
			return err
		}
		// An account without a subscription reports an empty list.
		if bytes.HasPrefix(bytes.TrimSpace(env.Response), []byte("[")) {
			return nil
		}
		return env.Decode(&status)
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}
