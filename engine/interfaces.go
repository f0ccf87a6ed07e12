package engine

import (
	"context"
	"time"

	"progresskit/core"
)

// Storage abstracts persistence for progression state. Implementations must
// linearize updates per user (a mutex, a Lua script, a row transaction); calls
// for different users must not block each other.
type Storage interface {
	// Award appends the transaction to the user's ledger and folds it into
	// the totals, atomically. A transaction id already recorded for the user
	// makes the call a successful no-op: the existing totals are returned and
	// applied is false. prior is the totals immediately before the award.
	Award(ctx context.Context, tx core.XPTransaction) (total core.XPTotal, prior core.XPTotal, applied bool, err error)

	// HasTransaction reports whether the transaction id is already recorded
	// for the user. The engine consults it before any mutation so a replayed
	// event touches nothing, not even the streak.
	HasTransaction(ctx context.Context, user core.UserID, id core.TransactionID) (bool, error)

	// Totals returns a consistent snapshot of the user's ledger aggregates.
	Totals(ctx context.Context, user core.UserID) (core.XPTotal, error)

	// ListTotals returns a point-in-time snapshot of every user's totals for
	// leaderboard aggregation. It must not hold per-user locks across users.
	ListTotals(ctx context.Context) ([]core.XPTotal, error)

	// Transactions returns the user's append-only ledger history.
	Transactions(ctx context.Context, user core.UserID) ([]core.XPTransaction, error)

	// Progress returns the user's achievement counters and unlocked set.
	Progress(ctx context.Context, user core.UserID) (core.AchievementProgress, error)

	// SetCounter moves a monotonic counter to value. A decrease fails with
	// core.ErrInvalidInput and leaves state unchanged.
	SetCounter(ctx context.Context, user core.UserID, counter core.CounterName, value int64) (core.AchievementProgress, error)

	// MarkUnlocked adds an achievement to the user's unlocked set. newly is
	// true only for the first call per (user, achievement), ever.
	MarkUnlocked(ctx context.Context, user core.UserID, id core.AchievementID, at time.Time) (newly bool, err error)

	// Streak returns the user's streak state.
	Streak(ctx context.Context, user core.UserID) (core.StreakState, error)

	// AdvanceStreak applies one activity date to the user's streak under the
	// per-user lock, using the canonical core.AdvanceStreak rules. extended
	// is false for same-day re-entries.
	AdvanceStreak(ctx context.Context, user core.UserID, activityDate time.Time) (state core.StreakState, bonus core.StreakBonus, extended bool, err error)
}
