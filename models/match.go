package models

type MatchStatus string

const (
	MatchUpcoming  MatchStatus = "upcoming"
	MatchLive      MatchStatus = "live"
	MatchCompleted MatchStatus = "completed"
)

// Match is the slice of the schedule entity the voting core consumes.
type Match struct {
	ID     string      `bson:"_id" json:"id"`
	Status MatchStatus `bson:"status" json:"status"`
}

type Player struct {
	ID           string `bson:"_id" json:"id"`
	DisplayName  string `bson:"displayName" json:"displayName"`
	Photo        string `bson:"photo" json:"photo"`
	Position     string `bson:"position" json:"position"`
	JerseyNumber int    `bson:"jerseyNumber" json:"jerseyNumber"`
}
