// Package records defines the API-Football response payloads and the flat
// rows they are turned into before being written to output tables.
//
// Every row type implements Record: its Key is the natural composite key used
// to deduplicate rows when tables are merged.
package records

// Record is one flattened output row.
type Record interface {
	// Key returns the natural composite key of the row.
	Key() string
}

// Grouped is implemented by rows that one work unit fetches as a complete
// set, such as the events of a fixture. A fresh set for a group replaces
// every stored row of that group, so rows the API no longer returns do not
// linger.
type Grouped interface {
	Group() string
}

// Ref is the {id, name} pair the API uses for teams, players and coaches.
type Ref struct {
	ID   *int   `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo,omitempty"`
}

// Country is one element of the countries endpoint.
type Country struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Flag string `json:"flag"`
}

// LeagueItem is one element of the leagues endpoint.
type LeagueItem struct {
	League struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
		Logo string `json:"logo"`
	} `json:"league"`
	Country Country `json:"country"`
	Seasons []struct {
		Year    int    `json:"year"`
		Start   string `json:"start"`
		End     string `json:"end"`
		Current bool   `json:"current"`
	} `json:"seasons"`
}

// TeamItem is one element of the teams endpoint.
type TeamItem struct {
	Team struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		Code     string `json:"code"`
		Country  string `json:"country"`
		Founded  *int   `json:"founded"`
		National bool   `json:"national"`
		Logo     string `json:"logo"`
	} `json:"team"`
	Venue struct {
		ID       *int   `json:"id"`
		Name     string `json:"name"`
		City     string `json:"city"`
		Capacity *int   `json:"capacity"`
		Surface  string `json:"surface"`
	} `json:"venue"`
}

// SquadItem is one element of the players/squads endpoint.
type SquadItem struct {
	Team    Ref `json:"team"`
	Players []struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		Age      *int   `json:"age"`
		Number   *int   `json:"number"`
		Position string `json:"position"`
		Photo    string `json:"photo"`
	} `json:"players"`
}

// PlayerItem is one element of the players endpoint: a player profile and
// one statistics block per team and league played in the season.
type PlayerItem struct {
	Player struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
		Age       *int   `json:"age"`
		Birth     struct {
			Date    string `json:"date"`
			Place   string `json:"place"`
			Country string `json:"country"`
		} `json:"birth"`
		Nationality string `json:"nationality"`
		Height      string `json:"height"`
		Weight      string `json:"weight"`
		Injured     *bool  `json:"injured"`
		Photo       string `json:"photo"`
	} `json:"player"`
	Statistics []SeasonStatistics `json:"statistics"`
}

// SeasonStatistics is one team/league block of a player's season.
type SeasonStatistics struct {
	Team   Ref `json:"team"`
	League struct {
		ID      *int   `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Season  *int   `json:"season"`
	} `json:"league"`
	Games struct {
		// Appearences is spelled the way the API spells it.
		Appearences *int   `json:"appearences"`
		Lineups     *int   `json:"lineups"`
		Minutes     *int   `json:"minutes"`
		Number      *int   `json:"number"`
		Position    string `json:"position"`
		Rating      Num    `json:"rating"`
		Captain     *bool  `json:"captain"`
	} `json:"games"`
	Substitutes struct {
		In    *int `json:"in"`
		Out   *int `json:"out"`
		Bench *int `json:"bench"`
	} `json:"substitutes"`
	StatBlocks
}

// StatBlocks are the counting statistics shared by season and match payloads.
type StatBlocks struct {
	Offsides *int `json:"offsides"`
	Shots    struct {
		Total *int `json:"total"`
		On    *int `json:"on"`
	} `json:"shots"`
	Goals struct {
		Total    *int `json:"total"`
		Conceded *int `json:"conceded"`
		Assists  *int `json:"assists"`
		Saves    *int `json:"saves"`
	} `json:"goals"`
	Passes struct {
		Total    *int `json:"total"`
		Key      *int `json:"key"`
		Accuracy Num  `json:"accuracy"`
	} `json:"passes"`
	Tackles struct {
		Total         *int `json:"total"`
		Blocks        *int `json:"blocks"`
		Interceptions *int `json:"interceptions"`
	} `json:"tackles"`
	Duels struct {
		Total *int `json:"total"`
		Won   *int `json:"won"`
	} `json:"duels"`
	Dribbles struct {
		Attempts *int `json:"attempts"`
		Success  *int `json:"success"`
		Past     *int `json:"past"`
	} `json:"dribbles"`
	Fouls struct {
		Drawn     *int `json:"drawn"`
		Committed *int `json:"committed"`
	} `json:"fouls"`
	Cards struct {
		Yellow    *int `json:"yellow"`
		YellowRed *int `json:"yellowred"`
		Red       *int `json:"red"`
	} `json:"cards"`
	Penalty struct {
		Won *int `json:"won"`
		// Commited is spelled the way the API spells it.
		Commited *int `json:"commited"`
		Scored   *int `json:"scored"`
		Missed   *int `json:"missed"`
		Saved    *int `json:"saved"`
	} `json:"penalty"`
}

// HomeAway is a home/away pair of nullable counts.
type HomeAway struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// FixtureItem is one element of the fixtures endpoint.
type FixtureItem struct {
	Fixture struct {
		ID        int    `json:"id"`
		Referee   string `json:"referee"`
		Timezone  string `json:"timezone"`
		Date      string `json:"date"`
		Timestamp int64  `json:"timestamp"`
		Venue     struct {
			ID   *int   `json:"id"`
			Name string `json:"name"`
			City string `json:"city"`
		} `json:"venue"`
		Status struct {
			Long    string `json:"long"`
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Season  int    `json:"season"`
		Round   string `json:"round"`
	} `json:"league"`
	Teams struct {
		Home TeamSide `json:"home"`
		Away TeamSide `json:"away"`
	} `json:"teams"`
	Goals HomeAway `json:"goals"`
	Score struct {
		Halftime  HomeAway `json:"halftime"`
		Fulltime  HomeAway `json:"fulltime"`
		Extratime HomeAway `json:"extratime"`
		Penalty   HomeAway `json:"penalty"`
	} `json:"score"`
}

// TeamSide is one side of a fixture.
type TeamSide struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Winner *bool  `json:"winner"`
}

// FixtureStatisticsItem is one team's block of the fixtures/statistics endpoint.
type FixtureStatisticsItem struct {
	Team       Ref `json:"team"`
	Statistics []struct {
		Type  string `json:"type"`
		Value Num    `json:"value"`
	} `json:"statistics"`
}

// LineupPlayer is one entry of a lineup's startXI or substitutes list.
type LineupPlayer struct {
	Player struct {
		ID     *int   `json:"id"`
		Name   string `json:"name"`
		Number *int   `json:"number"`
		Pos    string `json:"pos"`
		Grid   string `json:"grid"`
	} `json:"player"`
}

// LineupItem is one team's block of the fixtures/lineups endpoint.
type LineupItem struct {
	Team        Ref            `json:"team"`
	Formation   string         `json:"formation"`
	StartXI     []LineupPlayer `json:"startXI"`
	Substitutes []LineupPlayer `json:"substitutes"`
	Coach       Ref            `json:"coach"`
}

// EventItem is one element of the fixtures/events endpoint.
type EventItem struct {
	Time struct {
		Elapsed *int `json:"elapsed"`
		Extra   *int `json:"extra"`
	} `json:"time"`
	Team     Ref    `json:"team"`
	Player   Ref    `json:"player"`
	Assist   Ref    `json:"assist"`
	Type     string `json:"type"`
	Detail   string `json:"detail"`
	Comments string `json:"comments"`
}

// FixturePlayersItem is one team's block of the fixtures/players endpoint.
type FixturePlayersItem struct {
	Team    Ref `json:"team"`
	Players []struct {
		Player     Ref `json:"player"`
		Statistics []struct {
			Games struct {
				Minutes    *int   `json:"minutes"`
				Number     *int   `json:"number"`
				Position   string `json:"position"`
				Rating     Num    `json:"rating"`
				Captain    *bool  `json:"captain"`
				Substitute *bool  `json:"substitute"`
			} `json:"games"`
			StatBlocks
		} `json:"statistics"`
	} `json:"players"`
}

// AccountStatus is the response of the status endpoint.
type AccountStatus struct {
	Account struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
		Email     string `json:"email"`
	} `json:"account"`
	Subscription struct {
		Plan   string `json:"plan"`
		End    string `json:"end"`
		Active bool   `json:"active"`
	} `json:"subscription"`
	Requests struct {
		Current  int `json:"current"`
		LimitDay int `json:"limit_day"`
	} `json:"requests"`
}

// Remaining returns the calls left today. Never negative.
func (s AccountStatus) Remaining() int {
	r := s.Requests.LimitDay - s.Requests.Current
	if r < 0 {
		return 0
	}
	return r
}
