package records

import "strconv"

// Match is one fixture with its result.
type Match struct {
	FixtureID      int    `csv:"fixture_id" parquet:"fixture_id"`
	Season         int    `csv:"season" parquet:"season"`
	LeagueID       int    `csv:"league_id" parquet:"league_id"`
	LeagueName     string `csv:"league_name" parquet:"league_name"`
	Round          string `csv:"round" parquet:"round"`
	Date           string `csv:"date" parquet:"date"`
	Timestamp      int64  `csv:"timestamp" parquet:"timestamp"`
	VenueName      string `csv:"venue_name" parquet:"venue_name"`
	VenueCity      string `csv:"venue_city" parquet:"venue_city"`
	Referee        string `csv:"referee" parquet:"referee"`
	Status         string `csv:"status" parquet:"status"`
	StatusLong     string `csv:"status_long" parquet:"status_long"`
	ElapsedMinutes *int   `csv:"elapsed_minutes,omitempty" parquet:"elapsed_minutes,optional"`

	HomeTeamID     int    `csv:"home_team_id" parquet:"home_team_id"`
	HomeTeamName   string `csv:"home_team_name" parquet:"home_team_name"`
	HomeTeamWinner *bool  `csv:"home_team_winner,omitempty" parquet:"home_team_winner,optional"`
	AwayTeamID     int    `csv:"away_team_id" parquet:"away_team_id"`
	AwayTeamName   string `csv:"away_team_name" parquet:"away_team_name"`
	AwayTeamWinner *bool  `csv:"away_team_winner,omitempty" parquet:"away_team_winner,optional"`

	HomeGoals       *int `csv:"home_goals,omitempty" parquet:"home_goals,optional"`
	AwayGoals       *int `csv:"away_goals,omitempty" parquet:"away_goals,optional"`
	HalftimeHome    *int `csv:"halftime_home,omitempty" parquet:"halftime_home,optional"`
	HalftimeAway    *int `csv:"halftime_away,omitempty" parquet:"halftime_away,optional"`
	FulltimeHome    *int `csv:"fulltime_home,omitempty" parquet:"fulltime_home,optional"`
	FulltimeAway    *int `csv:"fulltime_away,omitempty" parquet:"fulltime_away,optional"`
	ExtratimeHome   *int `csv:"extratime_home,omitempty" parquet:"extratime_home,optional"`
	ExtratimeAway   *int `csv:"extratime_away,omitempty" parquet:"extratime_away,optional"`
	WentToExtraTime bool `csv:"went_to_extra_time" parquet:"went_to_extra_time"`
	PenaltyHome     *int `csv:"penalty_home,omitempty" parquet:"penalty_home,optional"`
	PenaltyAway     *int `csv:"penalty_away,omitempty" parquet:"penalty_away,optional"`
	WentToPenalties bool `csv:"went_to_penalties" parquet:"went_to_penalties"`
}

// Key implements Record.
func (m Match) Key() string {
	return strconv.Itoa(m.FixtureID)
}

// FlattenFixtures converts fixtures payload items into match rows.
func FlattenFixtures(items []FixtureItem) []Match {
	out := make([]Match, 0, len(items))
	for _, it := range items {
		f := it.Fixture
		score := it.Score
		out = append(out, Match{
			FixtureID:      f.ID,
			Season:         it.League.Season,
			LeagueID:       it.League.ID,
			LeagueName:     it.League.Name,
			Round:          it.League.Round,
			Date:           f.Date,
			Timestamp:      f.Timestamp,
			VenueName:      f.Venue.Name,
			VenueCity:      f.Venue.City,
			Referee:        f.Referee,
			Status:         f.Status.Short,
			StatusLong:     f.Status.Long,
			ElapsedMinutes: f.Status.Elapsed,

			HomeTeamID:     it.Teams.Home.ID,
			HomeTeamName:   it.Teams.Home.Name,
			HomeTeamWinner: it.Teams.Home.Winner,
			AwayTeamID:     it.Teams.Away.ID,
			AwayTeamName:   it.Teams.Away.Name,
			AwayTeamWinner: it.Teams.Away.Winner,

			HomeGoals:       it.Goals.Home,
			AwayGoals:       it.Goals.Away,
			HalftimeHome:    score.Halftime.Home,
			HalftimeAway:    score.Halftime.Away,
			FulltimeHome:    score.Fulltime.Home,
			FulltimeAway:    score.Fulltime.Away,
			ExtratimeHome:   score.Extratime.Home,
			ExtratimeAway:   score.Extratime.Away,
			WentToExtraTime: score.Extratime.Home != nil,
			PenaltyHome:     score.Penalty.Home,
			PenaltyAway:     score.Penalty.Away,
			WentToPenalties: score.Penalty.Home != nil || f.Status.Short == "PEN",
		})
	}
	return out
}
