package records

import "strconv"

// PlayerSeasonStat is one player's statistics for one team and league in a
// season.
type PlayerSeasonStat struct {
	PlayerID     int    `csv:"player_id" parquet:"player_id"`
	PlayerName   string `csv:"player_name" parquet:"player_name"`
	Firstname    string `csv:"firstname" parquet:"firstname"`
	Lastname     string `csv:"lastname" parquet:"lastname"`
	Nationality  string `csv:"nationality" parquet:"nationality"`
	BirthDate    string `csv:"birth_date" parquet:"birth_date"`
	BirthPlace   string `csv:"birth_place" parquet:"birth_place"`
	BirthCountry string `csv:"birth_country" parquet:"birth_country"`
	Age          *int   `csv:"age,omitempty" parquet:"age,optional"`
	Height       *int   `csv:"height,omitempty" parquet:"height,optional"`
	Weight       *int   `csv:"weight,omitempty" parquet:"weight,optional"`
	Injured      *bool  `csv:"injured,omitempty" parquet:"injured,optional"`
	Photo        string `csv:"photo" parquet:"photo"`

	Season        int    `csv:"season" parquet:"season"`
	TeamID        int    `csv:"team_id" parquet:"team_id"`
	TeamName      string `csv:"team_name" parquet:"team_name"`
	LeagueID      int    `csv:"league_id" parquet:"league_id"`
	LeagueName    string `csv:"league_name" parquet:"league_name"`
	LeagueCountry string `csv:"league_country" parquet:"league_country"`

	Position    string   `csv:"position" parquet:"position"`
	Appearances *int     `csv:"appearances,omitempty" parquet:"appearances,optional"`
	Lineups     *int     `csv:"lineups,omitempty" parquet:"lineups,optional"`
	Minutes     *int     `csv:"minutes,omitempty" parquet:"minutes,optional"`
	Rating      *float64 `csv:"rating,omitempty" parquet:"rating,optional"`
	Captain     *bool    `csv:"captain,omitempty" parquet:"captain,optional"`

	SubstitutesIn    *int `csv:"substitutes_in,omitempty" parquet:"substitutes_in,optional"`
	SubstitutesOut   *int `csv:"substitutes_out,omitempty" parquet:"substitutes_out,optional"`
	SubstitutesBench *int `csv:"substitutes_bench,omitempty" parquet:"substitutes_bench,optional"`

	Counts
}

// Counts are the counting statistics shared by season and match rows.
type Counts struct {
	ShotsTotal           *int     `csv:"shots_total,omitempty" parquet:"shots_total,optional"`
	ShotsOnTarget        *int     `csv:"shots_on_target,omitempty" parquet:"shots_on_target,optional"`
	Goals                *int     `csv:"goals,omitempty" parquet:"goals,optional"`
	GoalsConceded        *int     `csv:"goals_conceded,omitempty" parquet:"goals_conceded,optional"`
	Assists              *int     `csv:"assists,omitempty" parquet:"assists,optional"`
	Saves                *int     `csv:"saves,omitempty" parquet:"saves,optional"`
	PassesTotal          *int     `csv:"passes_total,omitempty" parquet:"passes_total,optional"`
	PassesKey            *int     `csv:"passes_key,omitempty" parquet:"passes_key,optional"`
	PassesAccuracy       *float64 `csv:"passes_accuracy,omitempty" parquet:"passes_accuracy,optional"`
	TacklesTotal         *int     `csv:"tackles_total,omitempty" parquet:"tackles_total,optional"`
	TacklesBlocks        *int     `csv:"tackles_blocks,omitempty" parquet:"tackles_blocks,optional"`
	TacklesInterceptions *int     `csv:"tackles_interceptions,omitempty" parquet:"tackles_interceptions,optional"`
	DuelsTotal           *int     `csv:"duels_total,omitempty" parquet:"duels_total,optional"`
	DuelsWon             *int     `csv:"duels_won,omitempty" parquet:"duels_won,optional"`
	DribblesAttempts     *int     `csv:"dribbles_attempts,omitempty" parquet:"dribbles_attempts,optional"`
	DribblesSuccess      *int     `csv:"dribbles_success,omitempty" parquet:"dribbles_success,optional"`
	DribblesPast         *int     `csv:"dribbles_past,omitempty" parquet:"dribbles_past,optional"`
	FoulsDrawn           *int     `csv:"fouls_drawn,omitempty" parquet:"fouls_drawn,optional"`
	FoulsCommitted       *int     `csv:"fouls_committed,omitempty" parquet:"fouls_committed,optional"`
	CardsYellow          *int     `csv:"cards_yellow,omitempty" parquet:"cards_yellow,optional"`
	CardsYellowRed       *int     `csv:"cards_yellowred,omitempty" parquet:"cards_yellowred,optional"`
	CardsRed             *int     `csv:"cards_red,omitempty" parquet:"cards_red,optional"`
	PenaltyWon           *int     `csv:"penalty_won,omitempty" parquet:"penalty_won,optional"`
	PenaltyCommitted     *int     `csv:"penalty_committed,omitempty" parquet:"penalty_committed,optional"`
	PenaltyScored        *int     `csv:"penalty_scored,omitempty" parquet:"penalty_scored,optional"`
	PenaltyMissed        *int     `csv:"penalty_missed,omitempty" parquet:"penalty_missed,optional"`
	PenaltySaved         *int     `csv:"penalty_saved,omitempty" parquet:"penalty_saved,optional"`
	Offsides             *int     `csv:"offsides,omitempty" parquet:"offsides,optional"`
}

func countsFrom(b StatBlocks) Counts {
	return Counts{
		ShotsTotal:           b.Shots.Total,
		ShotsOnTarget:        b.Shots.On,
		Goals:                b.Goals.Total,
		GoalsConceded:        b.Goals.Conceded,
		Assists:              b.Goals.Assists,
		Saves:                b.Goals.Saves,
		PassesTotal:          b.Passes.Total,
		PassesKey:            b.Passes.Key,
		PassesAccuracy:       b.Passes.Accuracy.Float(),
		TacklesTotal:         b.Tackles.Total,
		TacklesBlocks:        b.Tackles.Blocks,
		TacklesInterceptions: b.Tackles.Interceptions,
		DuelsTotal:           b.Duels.Total,
		DuelsWon:             b.Duels.Won,
		DribblesAttempts:     b.Dribbles.Attempts,
		DribblesSuccess:      b.Dribbles.Success,
		DribblesPast:         b.Dribbles.Past,
		FoulsDrawn:           b.Fouls.Drawn,
		FoulsCommitted:       b.Fouls.Committed,
		CardsYellow:          b.Cards.Yellow,
		CardsYellowRed:       b.Cards.YellowRed,
		CardsRed:             b.Cards.Red,
		PenaltyWon:           b.Penalty.Won,
		PenaltyCommitted:     b.Penalty.Commited,
		PenaltyScored:        b.Penalty.Scored,
		PenaltyMissed:        b.Penalty.Missed,
		PenaltySaved:         b.Penalty.Saved,
		Offsides:             b.Offsides,
	}
}

// Key implements Record.
func (s PlayerSeasonStat) Key() string {
	return strconv.Itoa(s.PlayerID) + ":" + strconv.Itoa(s.Season) + ":" +
		strconv.Itoa(s.LeagueID) + ":" + strconv.Itoa(s.TeamID)
}

// FlattenPlayerStatistics converts players payload items into one row per
// statistics block. Blocks without a team or league id are skipped since
// they cannot be keyed.
func FlattenPlayerStatistics(season int, items []PlayerItem) []PlayerSeasonStat {
	var out []PlayerSeasonStat
	for _, it := range items {
		p := it.Player
		for _, st := range it.Statistics {
			if st.Team.ID == nil || st.League.ID == nil {
				continue
			}
			s := season
			if st.League.Season != nil {
				s = *st.League.Season
			}
			out = append(out, PlayerSeasonStat{
				PlayerID:     p.ID,
				PlayerName:   p.Name,
				Firstname:    p.Firstname,
				Lastname:     p.Lastname,
				Nationality:  p.Nationality,
				BirthDate:    p.Birth.Date,
				BirthPlace:   p.Birth.Place,
				BirthCountry: p.Birth.Country,
				Age:          p.Age,
				Height:       ParseMeasure(p.Height),
				Weight:       ParseMeasure(p.Weight),
				Injured:      p.Injured,
				Photo:        p.Photo,

				Season:        s,
				TeamID:        *st.Team.ID,
				TeamName:      st.Team.Name,
				LeagueID:      *st.League.ID,
				LeagueName:    st.League.Name,
				LeagueCountry: st.League.Country,

				Position:    st.Games.Position,
				Appearances: st.Games.Appearences,
				Lineups:     st.Games.Lineups,
				Minutes:     st.Games.Minutes,
				Rating:      st.Games.Rating.Float(),
				Captain:     st.Games.Captain,

				SubstitutesIn:    st.Substitutes.In,
				SubstitutesOut:   st.Substitutes.Out,
				SubstitutesBench: st.Substitutes.Bench,

				Counts: countsFrom(st.StatBlocks),
			})
		}
	}
	return out
}
