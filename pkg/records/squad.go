package records

import "strconv"

// SquadPlayer is one player of a team's current squad.
type SquadPlayer struct {
	TeamID   int    `csv:"team_id" parquet:"team_id"`
	TeamName string `csv:"team_name" parquet:"team_name"`
	PlayerID int    `csv:"player_id" parquet:"player_id"`
	Name     string `csv:"player_name" parquet:"player_name"`
	Age      *int   `csv:"age,omitempty" parquet:"age,optional"`
	Number   *int   `csv:"number,omitempty" parquet:"number,optional"`
	Position string `csv:"position" parquet:"position"`
	Photo    string `csv:"photo" parquet:"photo"`
}

// Key implements Record.
func (p SquadPlayer) Key() string {
	return strconv.Itoa(p.TeamID) + ":" + strconv.Itoa(p.PlayerID)
}

// Group implements Grouped.
func (p SquadPlayer) Group() string {
	return strconv.Itoa(p.TeamID)
}

// FlattenSquad converts players/squads payload items into squad rows.
// teamID is used when the payload omits the team id.
func FlattenSquad(teamID int, items []SquadItem) []SquadPlayer {
	var out []SquadPlayer
	for _, it := range items {
		tid := teamID
		if it.Team.ID != nil {
			tid = *it.Team.ID
		}
		for _, p := range it.Players {
			out = append(out, SquadPlayer{
				TeamID:   tid,
				TeamName: it.Team.Name,
				PlayerID: p.ID,
				Name:     p.Name,
				Age:      p.Age,
				Number:   p.Number,
				Position: p.Position,
				Photo:    p.Photo,
			})
		}
	}
	return out
}
