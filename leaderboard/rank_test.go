package leaderboard

import (
	"testing"

	"progresskit/core"
)

func TestRankOrdering(t *testing.T) {
	entries := []Entry{
		{User: "carol", XP: 500, Level: 3},
		{User: "alice", XP: 900, Level: 4},
		{User: "bob", XP: 500, Level: 3},
		{User: "dave", XP: 500, Level: 4},
	}
	snap := Rank(PeriodAllTime, entries, nil)

	want := []core.UserID{"alice", "dave", "bob", "carol"}
	for i, u := range want {
		if snap.Entries[i].User != u || snap.Entries[i].Rank != i+1 {
			t.Fatalf("row %d: %+v, want user %s rank %d", i, snap.Entries[i], u, i+1)
		}
	}
}

func TestRankTieBreakDistinctRanks(t *testing.T) {
	entries := []Entry{
		{User: "zed", XP: 100, Level: 2},
		{User: "amy", XP: 100, Level: 2},
	}
	snap := Rank(PeriodWeekly, entries, nil)
	if snap.Entries[0].User != "amy" || snap.Entries[1].User != "zed" {
		t.Fatalf("ties must order by user id ascending: %+v", snap.Entries)
	}
	if snap.Entries[0].Rank != 1 || snap.Entries[1].Rank != 2 {
		t.Fatalf("ties must still get distinct consecutive ranks: %+v", snap.Entries)
	}
}

func TestRankDelta(t *testing.T) {
	prev := Rank(PeriodWeekly, []Entry{
		{User: "a", XP: 300},
		{User: "b", XP: 200},
		{User: "c", XP: 100},
	}, nil)

	// c climbs from 3rd to 1st; d is new
	next := Rank(PeriodWeekly, []Entry{
		{User: "a", XP: 300},
		{User: "b", XP: 250},
		{User: "c", XP: 400},
		{User: "d", XP: 50},
	}, &prev)

	byUser := map[core.UserID]RankedEntry{}
	for _, e := range next.Entries {
		byUser[e.User] = e
	}
	if d := byUser["c"].Delta; d == nil || *d != 2 {
		t.Fatalf("c delta: %v", d)
	}
	if d := byUser["a"].Delta; d == nil || *d != -1 {
		t.Fatalf("a delta: %v", d)
	}
	if byUser["d"].Delta != nil {
		t.Fatalf("new user must have nil delta, got %v", *byUser["d"].Delta)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	entries := []Entry{{User: "b", XP: 1}, {User: "a", XP: 2}}
	Rank(PeriodAllTime, entries, nil)
	if entries[0].User != "b" {
		t.Fatal("input slice reordered")
	}
}
