package leaderboard

import (
	"sort"
	"time"

	"progresskit/core"
)

// Period names the scoring window a snapshot covers.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all-time"
)

// RankedEntry is one row of a snapshot. Delta is previousRank - rank
// (positive means the user moved up); it is nil for users absent from the
// previous snapshot, which is not the same as a delta of zero.
type RankedEntry struct {
	Rank  int         `json:"rank"`
	User  core.UserID `json:"user_id"`
	XP    int64       `json:"xp"`
	Level int64       `json:"level"`
	Delta *int        `json:"delta,omitempty"`
}

// Snapshot is a wholesale recomputed ranking for a period. Snapshots are
// superseded, never patched in place.
type Snapshot struct {
	Period  Period        `json:"period"`
	TakenAt time.Time     `json:"taken_at"`
	Entries []RankedEntry `json:"entries"`
}

// Rank orders entries by XP descending, breaking ties by level descending and
// then user id ascending, so the result is a deterministic total order. Ranks
// are 1-based and always distinct: tied scores still get consecutive ranks
// under the tie-break rather than a shared rank.
func Rank(period Period, entries []Entry, previous *Snapshot) Snapshot {
	sorted := append([]Entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	var prevRanks map[core.UserID]int
	if previous != nil {
		prevRanks = make(map[core.UserID]int, len(previous.Entries))
		for _, e := range previous.Entries {
			prevRanks[e.User] = e.Rank
		}
	}

	snap := Snapshot{
		Period:  period,
		TakenAt: time.Now().UTC(),
		Entries: make([]RankedEntry, 0, len(sorted)),
	}
	for i, e := range sorted {
		row := RankedEntry{Rank: i + 1, User: e.User, XP: e.XP, Level: e.Level}
		if prev, ok := prevRanks[e.User]; ok {
			delta := prev - row.Rank
			row.Delta = &delta
		}
		snap.Entries = append(snap.Entries, row)
	}
	return snap
}

// less is the canonical leaderboard ordering: higher XP first, then higher
// level, then user id ascending.
func less(a, b Entry) bool {
	if a.XP != b.XP {
		return a.XP > b.XP
	}
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	return a.User < b.User
}
