package leaderboard

import "travelkit/core"

// Entry is one traveler's standing on the board.
type Entry struct {
	Rank  int            `json:"rank"`
	User  core.UserID    `json:"user_id"`
	Score int64          `json:"travel_score"`
	Level core.LevelName `json:"level"`
}

// Board ranks travelers by travel score, highest first. Ties are broken by user id.
type Board interface {
	Update(user core.UserID, score int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Around(user core.UserID, radius int) []Entry
	Len() int
}
