package records

import (
	"strconv"
	"strings"
)

// FixtureMeta carries the fixture context copied onto every per-fixture row.
type FixtureMeta struct {
	FixtureID int
	Season    int
	Round     string
}

// MetaFromMatch returns the fixture context of a match row.
func MetaFromMatch(m Match) FixtureMeta {
	return FixtureMeta{FixtureID: m.FixtureID, Season: m.Season, Round: m.Round}
}

// TeamMatchStat is one team's aggregate statistics in one fixture.
type TeamMatchStat struct {
	FixtureID int    `csv:"fixture_id" parquet:"fixture_id"`
	Season    int    `csv:"season" parquet:"season"`
	Round     string `csv:"round" parquet:"round"`
	TeamID    int    `csv:"team_id" parquet:"team_id"`
	TeamName  string `csv:"team_name" parquet:"team_name"`

	ShotsOnGoal      *int     `csv:"shots_on_goal,omitempty" parquet:"shots_on_goal,optional"`
	ShotsOffGoal     *int     `csv:"shots_off_goal,omitempty" parquet:"shots_off_goal,optional"`
	TotalShots       *int     `csv:"total_shots,omitempty" parquet:"total_shots,optional"`
	BlockedShots     *int     `csv:"blocked_shots,omitempty" parquet:"blocked_shots,optional"`
	ShotsInsideBox   *int     `csv:"shots_insidebox,omitempty" parquet:"shots_insidebox,optional"`
	ShotsOutsideBox  *int     `csv:"shots_outsidebox,omitempty" parquet:"shots_outsidebox,optional"`
	Fouls            *int     `csv:"fouls,omitempty" parquet:"fouls,optional"`
	CornerKicks      *int     `csv:"corner_kicks,omitempty" parquet:"corner_kicks,optional"`
	Offsides         *int     `csv:"offsides,omitempty" parquet:"offsides,optional"`
	BallPossession   *float64 `csv:"ball_possession,omitempty" parquet:"ball_possession,optional"`
	YellowCards      *int     `csv:"yellow_cards,omitempty" parquet:"yellow_cards,optional"`
	RedCards         *int     `csv:"red_cards,omitempty" parquet:"red_cards,optional"`
	GoalkeeperSaves  *int     `csv:"goalkeeper_saves,omitempty" parquet:"goalkeeper_saves,optional"`
	TotalPasses      *int     `csv:"total_passes,omitempty" parquet:"total_passes,optional"`
	PassesAccurate   *int     `csv:"passes_accurate,omitempty" parquet:"passes_accurate,optional"`
	PassesPct        *float64 `csv:"passes_pct,omitempty" parquet:"passes_pct,optional"`
	ExpectedGoals    *float64 `csv:"expected_goals,omitempty" parquet:"expected_goals,optional"`
	GoalsPrevented   *float64 `csv:"goals_prevented,omitempty" parquet:"goals_prevented,optional"`
}

// Key implements Record.
func (s TeamMatchStat) Key() string {
	return strconv.Itoa(s.FixtureID) + ":" + strconv.Itoa(s.TeamID)
}

// Group implements Grouped.
func (s TeamMatchStat) Group() string {
	return strconv.Itoa(s.FixtureID)
}

// FlattenFixtureStatistics converts fixtures/statistics items into one row
// per team. Unknown statistic types are ignored.
func FlattenFixtureStatistics(meta FixtureMeta, items []FixtureStatisticsItem) []TeamMatchStat {
	var out []TeamMatchStat
	for _, it := range items {
		if it.Team.ID == nil {
			continue
		}
		row := TeamMatchStat{
			FixtureID: meta.FixtureID,
			Season:    meta.Season,
			Round:     meta.Round,
			TeamID:    *it.Team.ID,
			TeamName:  it.Team.Name,
		}
		for _, st := range it.Statistics {
			v := st.Value
			switch strings.ToLower(st.Type) {
			case "shots on goal":
				row.ShotsOnGoal = v.Int()
			case "shots off goal":
				row.ShotsOffGoal = v.Int()
			case "total shots":
				row.TotalShots = v.Int()
			case "blocked shots":
				row.BlockedShots = v.Int()
			case "shots insidebox":
				row.ShotsInsideBox = v.Int()
			case "shots outsidebox":
				row.ShotsOutsideBox = v.Int()
			case "fouls":
				row.Fouls = v.Int()
			case "corner kicks":
				row.CornerKicks = v.Int()
			case "offsides":
				row.Offsides = v.Int()
			case "ball possession":
				row.BallPossession = v.Float()
			case "yellow cards":
				row.YellowCards = v.Int()
			case "red cards":
				row.RedCards = v.Int()
			case "goalkeeper saves":
				row.GoalkeeperSaves = v.Int()
			case "total passes":
				row.TotalPasses = v.Int()
			case "passes accurate":
				row.PassesAccurate = v.Int()
			case "passes %":
				row.PassesPct = v.Float()
			case "expected_goals":
				row.ExpectedGoals = v.Float()
			case "goals_prevented":
				row.GoalsPrevented = v.Float()
			}
		}
		out = append(out, row)
	}
	return out
}

// LineupEntry is one player in a team's lineup for one fixture.
type LineupEntry struct {
	FixtureID      int    `csv:"fixture_id" parquet:"fixture_id"`
	Season         int    `csv:"season" parquet:"season"`
	Round          string `csv:"round" parquet:"round"`
	TeamID         int    `csv:"team_id" parquet:"team_id"`
	TeamName       string `csv:"team_name" parquet:"team_name"`
	Formation      string `csv:"formation" parquet:"formation"`
	CoachID        *int   `csv:"coach_id,omitempty" parquet:"coach_id,optional"`
	CoachName      string `csv:"coach_name" parquet:"coach_name"`
	PlayerID       int    `csv:"player_id" parquet:"player_id"`
	PlayerName     string `csv:"player_name" parquet:"player_name"`
	PlayerNumber   *int   `csv:"player_number,omitempty" parquet:"player_number,optional"`
	PlayerPosition string `csv:"player_position" parquet:"player_position"`
	PlayerGrid     string `csv:"player_grid" parquet:"player_grid"`
	IsStarter      bool   `csv:"is_starter" parquet:"is_starter"`
	IsSubstitute   bool   `csv:"is_substitute" parquet:"is_substitute"`
}

// Key implements Record.
func (l LineupEntry) Key() string {
	return strconv.Itoa(l.FixtureID) + ":" + strconv.Itoa(l.TeamID) + ":" + strconv.Itoa(l.PlayerID)
}

// Group implements Grouped.
func (l LineupEntry) Group() string {
	return strconv.Itoa(l.FixtureID)
}

// FlattenLineups converts fixtures/lineups items into one row per starter and
// substitute. Players without an id are skipped.
func FlattenLineups(meta FixtureMeta, items []LineupItem) []LineupEntry {
	var out []LineupEntry
	for _, it := range items {
		if it.Team.ID == nil {
			continue
		}
		add := func(players []LineupPlayer, starter bool) {
			for _, lp := range players {
				p := lp.Player
				if p.ID == nil {
					continue
				}
				out = append(out, LineupEntry{
					FixtureID:      meta.FixtureID,
					Season:         meta.Season,
					Round:          meta.Round,
					TeamID:         *it.Team.ID,
					TeamName:       it.Team.Name,
					Formation:      it.Formation,
					CoachID:        it.Coach.ID,
					CoachName:      it.Coach.Name,
					PlayerID:       *p.ID,
					PlayerName:     p.Name,
					PlayerNumber:   p.Number,
					PlayerPosition: p.Pos,
					PlayerGrid:     p.Grid,
					IsStarter:      starter,
					IsSubstitute:   !starter,
				})
			}
		}
		add(it.StartXI, true)
		add(it.Substitutes, false)
	}
	return out
}

// MatchEvent is one goal, card, substitution or VAR event of a fixture.
type MatchEvent struct {
	FixtureID   int    `csv:"fixture_id" parquet:"fixture_id"`
	Sequence    int    `csv:"sequence" parquet:"sequence"`
	Season      int    `csv:"season" parquet:"season"`
	Round       string `csv:"round" parquet:"round"`
	TimeElapsed *int   `csv:"time_elapsed,omitempty" parquet:"time_elapsed,optional"`
	TimeExtra   *int   `csv:"time_extra,omitempty" parquet:"time_extra,optional"`
	TeamID      *int   `csv:"team_id,omitempty" parquet:"team_id,optional"`
	TeamName    string `csv:"team_name" parquet:"team_name"`
	PlayerID    *int   `csv:"player_id,omitempty" parquet:"player_id,optional"`
	PlayerName  string `csv:"player_name" parquet:"player_name"`
	AssistID    *int   `csv:"assist_id,omitempty" parquet:"assist_id,optional"`
	AssistName  string `csv:"assist_name" parquet:"assist_name"`
	EventType   string `csv:"event_type" parquet:"event_type"`
	EventDetail string `csv:"event_detail" parquet:"event_detail"`
	Comments    string `csv:"comments" parquet:"comments"`
}

// Key implements Record.
func (e MatchEvent) Key() string {
	return strconv.Itoa(e.FixtureID) + ":" + strconv.Itoa(e.Sequence)
}

// Group implements Grouped.
func (e MatchEvent) Group() string {
	return strconv.Itoa(e.FixtureID)
}

// FlattenEvents converts fixtures/events items into rows numbered in the
// order the API returned them. Sequence numbers are only stable within one
// fetch; Group lets a re-fetch replace the whole fixture.
func FlattenEvents(meta FixtureMeta, items []EventItem) []MatchEvent {
	out := make([]MatchEvent, 0, len(items))
	for i, ev := range items {
		out = append(out, MatchEvent{
			FixtureID:   meta.FixtureID,
			Sequence:    i,
			Season:      meta.Season,
			Round:       meta.Round,
			TimeElapsed: ev.Time.Elapsed,
			TimeExtra:   ev.Time.Extra,
			TeamID:      ev.Team.ID,
			TeamName:    ev.Team.Name,
			PlayerID:    ev.Player.ID,
			PlayerName:  ev.Player.Name,
			AssistID:    ev.Assist.ID,
			AssistName:  ev.Assist.Name,
			EventType:   ev.Type,
			EventDetail: ev.Detail,
			Comments:    ev.Comments,
		})
	}
	return out
}

// FixturePlayerStat is one player's statistics in one fixture.
type FixturePlayerStat struct {
	FixtureID     int      `csv:"fixture_id" parquet:"fixture_id"`
	Season        int      `csv:"season" parquet:"season"`
	Round         string   `csv:"round" parquet:"round"`
	TeamID        int      `csv:"team_id" parquet:"team_id"`
	TeamName      string   `csv:"team_name" parquet:"team_name"`
	PlayerID      int      `csv:"player_id" parquet:"player_id"`
	PlayerName    string   `csv:"player_name" parquet:"player_name"`
	MinutesPlayed *int     `csv:"minutes_played,omitempty" parquet:"minutes_played,optional"`
	PlayerNumber  *int     `csv:"player_number,omitempty" parquet:"player_number,optional"`
	Position      string   `csv:"position" parquet:"position"`
	Rating        *float64 `csv:"rating,omitempty" parquet:"rating,optional"`
	IsCaptain     *bool    `csv:"is_captain,omitempty" parquet:"is_captain,optional"`
	IsSubstitute  *bool    `csv:"is_substitute,omitempty" parquet:"is_substitute,optional"`
	Appeared      bool     `csv:"appeared" parquet:"appeared"`

	Counts
}

// Key implements Record.
func (s FixturePlayerStat) Key() string {
	return strconv.Itoa(s.FixtureID) + ":" + strconv.Itoa(s.TeamID) + ":" + strconv.Itoa(s.PlayerID)
}

// Group implements Grouped.
func (s FixturePlayerStat) Group() string {
	return strconv.Itoa(s.FixtureID)
}

// FlattenFixturePlayers converts fixtures/players items into one row per
// player. Position codes are expanded to full names.
func FlattenFixturePlayers(meta FixtureMeta, items []FixturePlayersItem) []FixturePlayerStat {
	var out []FixturePlayerStat
	for _, it := range items {
		if it.Team.ID == nil {
			continue
		}
		for _, p := range it.Players {
			if p.Player.ID == nil {
				continue
			}
			row := FixturePlayerStat{
				FixtureID:  meta.FixtureID,
				Season:     meta.Season,
				Round:      meta.Round,
				TeamID:     *it.Team.ID,
				TeamName:   it.Team.Name,
				PlayerID:   *p.Player.ID,
				PlayerName: p.Player.Name,
			}
			if len(p.Statistics) > 0 {
				st := p.Statistics[0]
				row.MinutesPlayed = st.Games.Minutes
				row.PlayerNumber = st.Games.Number
				row.Position = PositionName(st.Games.Position)
				row.Rating = st.Games.Rating.Float()
				row.IsCaptain = st.Games.Captain
				row.IsSubstitute = st.Games.Substitute
				row.Appeared = st.Games.Minutes != nil
				row.Counts = countsFrom(st.StatBlocks)
			}
			out = append(out, row)
		}
	}
	return out
}
