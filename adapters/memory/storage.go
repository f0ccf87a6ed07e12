package memory

import (
	"context"
	"sync"
	"time"

	"progresskit/core"
	"progresskit/engine"
)

// Store is a concurrent in-memory Storage implementation. Each user owns one
// record guarded by its own mutex, so awards for different users never
// contend while awards for the same user are linearized.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu       sync.Mutex
	total    core.XPTotal
	ledger   []core.XPTransaction
	seen     map[core.TransactionID]struct{}
	progress core.AchievementProgress
	streak   core.StreakState
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		total: core.XPTotal{UserID: user},
		seen:  map[core.TransactionID]struct{}{},
		progress: core.AchievementProgress{
			UserID:   user,
			Counters: map[core.CounterName]int64{},
			Unlocked: map[core.AchievementID]time.Time{},
		},
		streak: core.StreakState{UserID: user},
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) Award(_ context.Context, tx core.XPTransaction) (core.XPTotal, core.XPTotal, bool, error) {
	rec := s.getOrCreate(tx.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	prior := rec.total
	if _, dup := rec.seen[tx.ID]; dup {
		return rec.total, prior, false, nil
	}
	next, err := core.ApplyTransaction(rec.total, tx)
	if err != nil {
		return rec.total, prior, false, err
	}
	rec.total = next
	rec.seen[tx.ID] = struct{}{}
	rec.ledger = append(rec.ledger, tx)
	return next, prior, true, nil
}

func (s *Store) HasTransaction(_ context.Context, user core.UserID, id core.TransactionID) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, dup := rec.seen[id]
	return dup, nil
}

func (s *Store) Totals(_ context.Context, user core.UserID) (core.XPTotal, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.total, nil
}

func (s *Store) ListTotals(_ context.Context) ([]core.XPTotal, error) {
	var out []core.XPTotal
	s.users.Range(func(_, v any) bool {
		rec := v.(*userRecord)
		rec.mu.Lock()
		out = append(out, rec.total)
		rec.mu.Unlock()
		return true
	})
	return out, nil
}

func (s *Store) Transactions(_ context.Context, user core.UserID) ([]core.XPTransaction, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]core.XPTransaction{}, rec.ledger...), nil
}

func (s *Store) Progress(_ context.Context, user core.UserID) (core.AchievementProgress, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.progress.Clone(), nil
}

func (s *Store) SetCounter(_ context.Context, user core.UserID, counter core.CounterName, value int64) (core.AchievementProgress, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	// RecordProgress with no definitions applies the monotonic-counter rules
	// without touching the unlocked set; unlocks are settled by MarkUnlocked.
	updated, _, err := core.RecordProgress(nil, rec.progress, counter, value, time.Now())
	if err != nil {
		return rec.progress.Clone(), err
	}
	rec.progress = updated
	return updated.Clone(), nil
}

func (s *Store) MarkUnlocked(_ context.Context, user core.UserID, id core.AchievementID, at time.Time) (bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, done := rec.progress.Unlocked[id]; done {
		return false, nil
	}
	rec.progress.Unlocked[id] = at.UTC()
	return true, nil
}

func (s *Store) Streak(_ context.Context, user core.UserID) (core.StreakState, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.streak, nil
}

func (s *Store) AdvanceStreak(_ context.Context, user core.UserID, activityDate time.Time) (core.StreakState, core.StreakBonus, bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	prev := rec.streak
	next, bonus, err := core.AdvanceStreak(prev, activityDate)
	if err != nil {
		return prev, core.StreakBonus{}, false, err
	}
	rec.streak = next
	extended := !next.LastActivityDate.Equal(prev.LastActivityDate)
	return next, bonus, extended, nil
}

var _ engine.Storage = (*Store)(nil)
