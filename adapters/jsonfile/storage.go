package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"progresskit/core"
	"progresskit/engine"
)

// Store persists the entire progression state to a single JSON file.
// Suitable for demos and small deployments. A single mutex guards the file;
// the per-user serialization the Storage contract asks for follows trivially.
type Store struct {
	path string
	mu   sync.Mutex
	data map[core.UserID]*userState
}

type userState struct {
	Total    core.XPTotal                    `json:"total"`
	Ledger   []core.XPTransaction            `json:"ledger,omitempty"`
	Seen     map[core.TransactionID]struct{} `json:"-"`
	Progress core.AchievementProgress        `json:"progress"`
	Streak   core.StreakState                `json:"streak"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*userState{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*userState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		v.Seen = make(map[core.TransactionID]struct{}, len(v.Ledger))
		for _, tx := range v.Ledger {
			v.Seen[tx.ID] = struct{}{}
		}
		if v.Progress.Counters == nil {
			v.Progress.Counters = map[core.CounterName]int64{}
		}
		if v.Progress.Unlocked == nil {
			v.Progress.Unlocked = map[core.AchievementID]time.Time{}
		}
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]*userState, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) *userState {
	if st, ok := s.data[user]; ok {
		return st
	}
	st := &userState{
		Total: core.XPTotal{UserID: user},
		Seen:  map[core.TransactionID]struct{}{},
		Progress: core.AchievementProgress{
			UserID:   user,
			Counters: map[core.CounterName]int64{},
			Unlocked: map[core.AchievementID]time.Time{},
		},
		Streak: core.StreakState{UserID: user},
	}
	s.data[user] = st
	return st
}

func (s *Store) Award(_ context.Context, tx core.XPTransaction) (core.XPTotal, core.XPTotal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(tx.UserID)

	prior := st.Total
	if _, dup := st.Seen[tx.ID]; dup {
		return st.Total, prior, false, nil
	}
	next, err := core.ApplyTransaction(st.Total, tx)
	if err != nil {
		return st.Total, prior, false, err
	}
	st.Total = next
	st.Seen[tx.ID] = struct{}{}
	st.Ledger = append(st.Ledger, tx)
	if err := s.persist(); err != nil {
		return st.Total, prior, false, err
	}
	return next, prior, true, nil
}

func (s *Store) HasTransaction(_ context.Context, user core.UserID, id core.TransactionID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, dup := s.get(user).Seen[id]
	return dup, nil
}

func (s *Store) Totals(_ context.Context, user core.UserID) (core.XPTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Total, nil
}

func (s *Store) ListTotals(_ context.Context) ([]core.XPTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.XPTotal, 0, len(s.data))
	for _, st := range s.data {
		out = append(out, st.Total)
	}
	return out, nil
}

func (s *Store) Transactions(_ context.Context, user core.UserID) ([]core.XPTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.XPTransaction{}, s.get(user).Ledger...), nil
}

func (s *Store) Progress(_ context.Context, user core.UserID) (core.AchievementProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Progress.Clone(), nil
}

func (s *Store) SetCounter(_ context.Context, user core.UserID, counter core.CounterName, value int64) (core.AchievementProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	updated, _, err := core.RecordProgress(nil, st.Progress, counter, value, time.Now())
	if err != nil {
		return st.Progress.Clone(), err
	}
	st.Progress = updated
	if err := s.persist(); err != nil {
		return st.Progress.Clone(), err
	}
	return updated.Clone(), nil
}

func (s *Store) MarkUnlocked(_ context.Context, user core.UserID, id core.AchievementID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)
	if _, done := st.Progress.Unlocked[id]; done {
		return false, nil
	}
	st.Progress.Unlocked[id] = at.UTC()
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Streak(_ context.Context, user core.UserID) (core.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Streak, nil
}

func (s *Store) AdvanceStreak(_ context.Context, user core.UserID, activityDate time.Time) (core.StreakState, core.StreakBonus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(user)

	prev := st.Streak
	next, bonus, err := core.AdvanceStreak(prev, activityDate)
	if err != nil {
		return prev, core.StreakBonus{}, false, err
	}
	st.Streak = next
	extended := !next.LastActivityDate.Equal(prev.LastActivityDate)
	if extended {
		if err := s.persist(); err != nil {
			return prev, core.StreakBonus{}, false, err
		}
	}
	return next, bonus, extended, nil
}

var _ engine.Storage = (*Store)(nil)
