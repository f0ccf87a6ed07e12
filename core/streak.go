package core

import (
	"fmt"
	"math"
	"time"
)

// StreakBonus is the reward step for a given streak length: a multiplier
// applied to the base award plus a flat XP bonus. Both components are
// non-decreasing in streak length.
type StreakBonus struct {
	Multiplier float64 `json:"multiplier"`
	FlatXP     int64   `json:"flat_xp"`
}

// Apply scales a base XP amount by the bonus.
func (b StreakBonus) Apply(baseXP int64) int64 {
	return int64(math.Floor(float64(baseXP)*b.Multiplier)) + b.FlatXP
}

// BonusForStreak is the canonical streak step function.
func BonusForStreak(streakDays int64) StreakBonus {
	switch {
	case streakDays >= 60:
		return StreakBonus{Multiplier: 2.0, FlatXP: 100}
	case streakDays >= 30:
		return StreakBonus{Multiplier: 2.0, FlatXP: 75}
	case streakDays >= 14:
		return StreakBonus{Multiplier: 1.5, FlatXP: 50}
	case streakDays >= 7:
		return StreakBonus{Multiplier: 1.25, FlatXP: 25}
	case streakDays >= 3:
		return StreakBonus{Multiplier: 1.1, FlatXP: 10}
	default:
		return StreakBonus{Multiplier: 1.0}
	}
}

// AdvanceStreak applies one activity date to a streak and returns the new
// state together with the bonus earned at the new streak length.
//
// Rules, by UTC calendar day:
//   - same day as LastActivityDate: no change (same-day replays are no-ops)
//   - exactly the next day: streak extends by one
//   - a gap of more than one day: streak resets to 1
//   - an earlier day: ErrOutOfOrderEvent, state unchanged
//
// LongestStreakDays never decreases.
func AdvanceStreak(state StreakState, activityDate time.Time) (StreakState, StreakBonus, error) {
	day := civilDay(activityDate)

	if state.LastActivityDate.IsZero() {
		state.CurrentStreakDays = 1
		state.LastActivityDate = day
	} else {
		last := civilDay(state.LastActivityDate)
		switch gap := daysBetween(last, day); {
		case gap < 0:
			return state, StreakBonus{}, fmt.Errorf("%w: activity on %s is older than last recorded %s",
				ErrOutOfOrderEvent, day.Format("2006-01-02"), last.Format("2006-01-02"))
		case gap == 0:
			// same-day re-entry
		case gap == 1:
			state.CurrentStreakDays++
			state.LastActivityDate = day
		default:
			state.CurrentStreakDays = 1
			state.LastActivityDate = day
		}
	}

	if state.CurrentStreakDays > state.LongestStreakDays {
		state.LongestStreakDays = state.CurrentStreakDays
	}
	return state, BonusForStreak(state.CurrentStreakDays), nil
}

// civilDay truncates t to its UTC calendar day.
func civilDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b; negative when b precedes a.
func daysBetween(a, b time.Time) int64 {
	return int64(b.Sub(a) / (24 * time.Hour))
}
