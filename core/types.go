package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a learner in the progression domain.
type UserID string

// ActivityTag names the kind of activity that produced an XP grant,
// e.g. "pass_quiz" or "complete_course".
type ActivityTag string

// TransactionID is the caller-supplied identity of one logical XP grant.
// It is the unit of idempotency: the ledger records each id at most once per user.
type TransactionID string

// AchievementID names a catalog achievement.
type AchievementID string

// CounterName is a progress dimension tracked by achievements,
// e.g. "courses_completed" or "perfect_quizzes".
type CounterName string

// XPTransaction is an immutable, append-only ledger record.
type XPTransaction struct {
	ID        TransactionID `json:"id"`
	UserID    UserID        `json:"user_id"`
	Amount    int64         `json:"amount"`
	Source    ActivityTag   `json:"source"`
	Timestamp time.Time     `json:"timestamp"`
}

// XPTotal is a snapshot of a user's ledger aggregates. CumulativeXP is the sum
// of all recorded transaction amounts and never decreases. WeeklyXP and
// MonthlyXP cover only the open period identified by WeekKey/MonthKey.
type XPTotal struct {
	UserID       UserID    `json:"user_id"`
	CumulativeXP int64     `json:"cumulative_xp"`
	WeeklyXP     int64     `json:"weekly_xp"`
	MonthlyXP    int64     `json:"monthly_xp"`
	WeekKey      string    `json:"week_key,omitempty"`
	MonthKey     string    `json:"month_key,omitempty"`
	CurrentLevel int64     `json:"current_level"`
	LastActivity time.Time `json:"last_activity"`
}

// AchievementDefinition is a static catalog entry, immutable after load.
type AchievementDefinition struct {
	ID             AchievementID `json:"id"`
	Name           string        `json:"name"`
	TrackedCounter CounterName   `json:"tracked_counter"`
	Threshold      int64         `json:"threshold"`
	Rarity         RarityTier    `json:"rarity"`
	XPReward       int64         `json:"xp_reward"`
}

// AchievementProgress holds a user's monotonic counters and unlocked set.
// An achievement id appears in Unlocked at most once, ever.
type AchievementProgress struct {
	UserID   UserID                      `json:"user_id"`
	Counters map[CounterName]int64       `json:"counters"`
	Unlocked map[AchievementID]time.Time `json:"unlocked"`
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (p AchievementProgress) Clone() AchievementProgress {
	cp := AchievementProgress{
		UserID:   p.UserID,
		Counters: make(map[CounterName]int64, len(p.Counters)),
		Unlocked: make(map[AchievementID]time.Time, len(p.Unlocked)),
	}
	for k, v := range p.Counters {
		cp.Counters[k] = v
	}
	for k, v := range p.Unlocked {
		cp.Unlocked[k] = v
	}
	return cp
}

// StreakState tracks consecutive-day activity. LastActivityDate is a UTC
// calendar day; the time-of-day component is ignored by the streak rules.
type StreakState struct {
	UserID            UserID    `json:"user_id"`
	CurrentStreakDays int64     `json:"current_streak_days"`
	LongestStreakDays int64     `json:"longest_streak_days"`
	LastActivityDate  time.Time `json:"last_activity_date"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: integer overflow", ErrInvalidInput)
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateTransactionID ensures a non-empty id with a simple charset check.
func ValidateTransactionID(id TransactionID) error {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return fmt.Errorf("%w: empty transaction id", ErrInvalidInput)
	}
	// alnum, dash, underscore, colon, slash (derived ids use "/")
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == ':' || r == '/' {
			continue
		}
		return fmt.Errorf("%w: invalid transaction id", ErrInvalidInput)
	}
	return nil
}

// WeekKey formats t as an ISO-week bucket key, e.g. "2026-W35".
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthKey formats t as a month bucket key, e.g. "2026-08".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
