package core

import (
	"fmt"
	"time"
)

// RecordProgress moves one monotonic counter to newValue and returns the
// updated progress plus the definitions newly unlocked by the move. Counters
// carry cumulative values, so a decrease is a caller bug; it is rejected and
// the input state is returned unchanged. Replaying the same newValue is a
// no-op: an achievement unlocks exactly once, ever.
func RecordProgress(defs []AchievementDefinition, progress AchievementProgress, counter CounterName, newValue int64, now time.Time) (AchievementProgress, []AchievementDefinition, error) {
	if newValue < 0 {
		return progress, nil, fmt.Errorf("%w: negative counter value %d for %q", ErrInvalidInput, newValue, counter)
	}
	if cur := progress.Counters[counter]; newValue < cur {
		return progress, nil, fmt.Errorf("%w: counter %q would decrease from %d to %d", ErrInvalidInput, counter, cur, newValue)
	}

	updated := progress.Clone()
	if updated.Counters == nil {
		updated.Counters = map[CounterName]int64{}
	}
	if updated.Unlocked == nil {
		updated.Unlocked = map[AchievementID]time.Time{}
	}
	updated.Counters[counter] = newValue

	var unlocked []AchievementDefinition
	for _, d := range defs {
		if d.TrackedCounter != counter || newValue < d.Threshold {
			continue
		}
		if _, done := updated.Unlocked[d.ID]; done {
			continue
		}
		updated.Unlocked[d.ID] = now.UTC()
		unlocked = append(unlocked, d)
	}
	return updated, unlocked, nil
}

// CounterProgress reports completion of counter current toward target as a
// percentage capped at 100.
func CounterProgress(current, target int64) float64 {
	if target <= 0 {
		return 100
	}
	pct := float64(current) / float64(target) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
