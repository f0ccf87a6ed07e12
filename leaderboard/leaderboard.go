package leaderboard

import "progresskit/core"

// Entry is one user's score input to the ranker.
type Entry struct {
	User  core.UserID `json:"user_id"`
	XP    int64       `json:"xp"`
	Level int64       `json:"level"`
}

// Board abstracts live leaderboard operations on the hot path.
type Board interface {
	Update(e Entry)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
}
