package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"progresskit/catalog"
	"progresskit/core"
	"progresskit/leaderboard"
)

// ActivityEvent is the inbound shape consumed from upstream collaborators.
// CounterUpdates carry cumulative values, not deltas. XPAmount of zero means
// "use the catalog default for the activity tag".
type ActivityEvent struct {
	UserID         core.UserID                `json:"user_id"`
	ActivityTag    core.ActivityTag           `json:"activity_tag"`
	CounterUpdates map[core.CounterName]int64 `json:"counter_updates,omitempty"`
	XPAmount       int64                      `json:"xp_amount,omitempty"`
	TransactionID  core.TransactionID         `json:"transaction_id"`
	Timestamp      time.Time                  `json:"timestamp"`
}

// ActivityResult is what the caller persists and displays.
type ActivityResult struct {
	NewTotalXP           int64                        `json:"new_total_xp"`
	NewLevel             int64                        `json:"new_level"`
	DidLevelUp           bool                         `json:"did_level_up"`
	UnlockedAchievements []core.AchievementDefinition `json:"unlocked_achievements,omitempty"`
	StreakDays           int64                        `json:"streak_days"`
	BonusApplied         core.StreakBonus             `json:"bonus_applied"`
	AwardedXP            int64                        `json:"awarded_xp"`
	Duplicate            bool                         `json:"duplicate,omitempty"`
}

// LootGrant is the outcome of a loot roll.
type LootGrant struct {
	Tier    core.RarityTier `json:"tier"`
	ItemRef string          `json:"item_ref,omitempty"`
}

// UserSummary is the read model for one user across all engine state.
type UserSummary struct {
	Totals        core.XPTotal             `json:"totals"`
	Streak        core.StreakState         `json:"streak"`
	Progress      core.AchievementProgress `json:"progress"`
	Title         string                   `json:"title"`
	Perks         []string                 `json:"perks,omitempty"`
	LevelFloor    int64                    `json:"level_floor"`
	LevelCeiling  int64                    `json:"level_ceiling"`
	LevelFraction float64                  `json:"level_fraction"`
	XPToNextLevel int64                    `json:"xp_to_next_level"`
}

// ProgressionService wires storage, the event bus, the catalog, and the live
// leaderboard into the engine's public API.
type ProgressionService struct {
	storage Storage
	bus     *EventBus
	catalog *catalog.Catalog
	board   leaderboard.Board
}

func NewProgressionService(storage Storage, bus *EventBus, cat *catalog.Catalog, board leaderboard.Board) *ProgressionService {
	if storage == nil || bus == nil || cat == nil {
		panic("NewProgressionService requires non-nil storage, bus, and catalog")
	}
	if board == nil {
		board = leaderboard.NewSkipList()
	}
	return &ProgressionService{storage: storage, bus: bus, catalog: cat, board: board}
}

// Subscribe convenience method.
func (s *ProgressionService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers a handler for every progression event type.
func (s *ProgressionService) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *ProgressionService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *ProgressionService) Close() { s.bus.Close() }

// Catalog exposes the immutable configuration data.
func (s *ProgressionService) Catalog() *catalog.Catalog { return s.catalog }

// ProcessActivity runs one activity event through the full per-event path:
// streak adjustment, idempotent ledger award, level derivation, counter
// updates with achievement unlocks, and the live leaderboard update.
//
// Replaying an event with an already-recorded transaction id is safe: the
// award is a no-op and the result reports the unchanged totals.
func (s *ProgressionService) ProcessActivity(ctx context.Context, ev ActivityEvent) (ActivityResult, error) {
	user, err := core.NormalizeUserID(ev.UserID)
	if err != nil {
		return ActivityResult{}, err
	}
	if err := core.ValidateTransactionID(ev.TransactionID); err != nil {
		return ActivityResult{}, err
	}

	// A replayed transaction id is a successful no-op: report the current
	// state and mutate nothing, not even the streak. Award still dedupes
	// under the storage lock, so a racing replay cannot double-spend.
	seen, err := s.storage.HasTransaction(ctx, user, ev.TransactionID)
	if err != nil {
		return ActivityResult{}, err
	}
	if seen {
		total, err := s.storage.Totals(ctx, user)
		if err != nil {
			return ActivityResult{}, err
		}
		streak, err := s.storage.Streak(ctx, user)
		if err != nil {
			return ActivityResult{}, err
		}
		return ActivityResult{
			NewTotalXP: total.CumulativeXP,
			NewLevel:   total.CurrentLevel,
			StreakDays: streak.CurrentStreakDays,
			Duplicate:  true,
		}, nil
	}

	amount := ev.XPAmount
	if amount == 0 {
		amount = s.catalog.ActivityXP(ev.ActivityTag)
	}
	if amount <= 0 {
		return ActivityResult{}, fmt.Errorf("%w: no XP amount for activity %q", core.ErrInvalidInput, ev.ActivityTag)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	// Validate every counter update against the stored progress before
	// mutating anything, so a bad event is rejected whole.
	counters, err := s.validateCounters(ctx, user, ev.CounterUpdates)
	if err != nil {
		return ActivityResult{}, err
	}

	streak, bonus, extended, err := s.storage.AdvanceStreak(ctx, user, ts)
	if err != nil {
		return ActivityResult{}, err
	}

	tx := core.XPTransaction{
		ID:        ev.TransactionID,
		UserID:    user,
		Amount:    bonus.Apply(amount),
		Source:    ev.ActivityTag,
		Timestamp: ts,
	}
	total, prior, applied, err := s.storage.Award(ctx, tx)
	if err != nil {
		return ActivityResult{}, err
	}

	res := ActivityResult{
		NewTotalXP:   total.CumulativeXP,
		NewLevel:     total.CurrentLevel,
		StreakDays:   streak.CurrentStreakDays,
		BonusApplied: bonus,
		AwardedXP:    tx.Amount,
	}
	if !applied {
		res.Duplicate = true
		res.AwardedXP = 0
		return res, nil
	}

	s.bus.Publish(ctx, core.NewXPAwarded(user, ev.ActivityTag, tx.Amount, total.CumulativeXP))
	if extended {
		s.bus.Publish(ctx, core.NewStreakExtended(user, streak.CurrentStreakDays))
		// streak achievements watch the longest streak, which is monotonic
		counters = appendCounter(counters, "daily_streak", streak.LongestStreakDays)
	}

	priorLevel, err := core.Level(prior.CumulativeXP)
	if err != nil {
		return ActivityResult{}, err
	}

	for _, cu := range counters {
		unlocked, err := s.applyCounter(ctx, user, ev.TransactionID, cu, ts)
		if err != nil {
			return ActivityResult{}, err
		}
		res.UnlockedAchievements = append(res.UnlockedAchievements, unlocked...)
	}

	// Unlock rewards may have moved the total again.
	final, err := s.storage.Totals(ctx, user)
	if err != nil {
		return ActivityResult{}, err
	}
	res.NewTotalXP = final.CumulativeXP
	res.NewLevel = final.CurrentLevel
	if final.CurrentLevel > priorLevel {
		res.DidLevelUp = true
		s.bus.Publish(ctx, core.NewLevelUp(user, final.CurrentLevel))
	}

	s.board.Update(leaderboard.Entry{User: user, XP: final.CumulativeXP, Level: final.CurrentLevel})
	return res, nil
}

type counterUpdate struct {
	name  core.CounterName
	value int64
}

func (s *ProgressionService) validateCounters(ctx context.Context, user core.UserID, updates map[core.CounterName]int64) ([]counterUpdate, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	progress, err := s.storage.Progress(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]counterUpdate, 0, len(updates))
	for name, value := range updates {
		if value < 0 {
			return nil, fmt.Errorf("%w: negative counter %q", core.ErrInvalidInput, name)
		}
		if cur := progress.Counters[name]; value < cur {
			return nil, fmt.Errorf("%w: counter %q would decrease from %d to %d", core.ErrInvalidInput, name, cur, value)
		}
		out = append(out, counterUpdate{name: name, value: value})
	}
	// deterministic application order
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func appendCounter(counters []counterUpdate, name core.CounterName, value int64) []counterUpdate {
	for i, cu := range counters {
		if cu.name == name {
			if value > cu.value {
				counters[i].value = value
			}
			return counters
		}
	}
	return append(counters, counterUpdate{name: name, value: value})
}

// applyCounter moves one counter and settles any unlocks it triggers. Unlock
// XP rewards are fed back into the ledger as derived transactions keyed off
// the originating transaction id, so replays cannot double-award them.
func (s *ProgressionService) applyCounter(ctx context.Context, user core.UserID, txID core.TransactionID, cu counterUpdate, ts time.Time) ([]core.AchievementDefinition, error) {
	if _, err := s.storage.SetCounter(ctx, user, cu.name, cu.value); err != nil {
		return nil, err
	}

	var unlocked []core.AchievementDefinition
	for _, def := range s.catalog.ForCounter(cu.name) {
		if cu.value < def.Threshold {
			continue
		}
		newly, err := s.storage.MarkUnlocked(ctx, user, def.ID, ts)
		if err != nil {
			return nil, err
		}
		if !newly {
			continue
		}
		unlocked = append(unlocked, def)
		s.bus.Publish(ctx, core.NewAchievementUnlocked(user, def.ID, def.XPReward))

		if def.XPReward > 0 {
			reward := core.XPTransaction{
				ID:        core.TransactionID(fmt.Sprintf("%s/ach/%s", txID, def.ID)),
				UserID:    user,
				Amount:    def.XPReward,
				Source:    "achievement",
				Timestamp: ts,
			}
			if _, _, _, err := s.storage.Award(ctx, reward); err != nil {
				return nil, err
			}
		}
	}
	return unlocked, nil
}

// GrantLoot rolls a reward tier and item using caller-supplied random units
// in [0,1). The engine never reads an ambient random source, which keeps loot
// rolls pure and replayable.
func (s *ProgressionService) GrantLoot(ctx context.Context, userID core.UserID, tierUnit, itemUnit float64) (LootGrant, error) {
	user, err := core.NormalizeUserID(userID)
	if err != nil {
		return LootGrant{}, err
	}
	tier, err := core.SampleRarity(s.catalog.Weights(), tierUnit)
	if err != nil {
		return LootGrant{}, err
	}

	var item string
	if items := s.catalog.LootItems(tier); len(items) > 0 {
		if itemUnit < 0 || itemUnit >= 1 {
			return LootGrant{}, fmt.Errorf("%w: item unit %v outside [0,1)", core.ErrInvalidInput, itemUnit)
		}
		item = items[int(itemUnit*float64(len(items)))]
	}

	s.bus.Publish(ctx, core.NewLootGranted(user, tier, item))
	return LootGrant{Tier: tier, ItemRef: item}, nil
}

// GetUser assembles the full read model for a user.
func (s *ProgressionService) GetUser(ctx context.Context, userID core.UserID) (UserSummary, error) {
	user, err := core.NormalizeUserID(userID)
	if err != nil {
		return UserSummary{}, err
	}
	totals, err := s.storage.Totals(ctx, user)
	if err != nil {
		return UserSummary{}, err
	}
	streak, err := s.storage.Streak(ctx, user)
	if err != nil {
		return UserSummary{}, err
	}
	progress, err := s.storage.Progress(ctx, user)
	if err != nil {
		return UserSummary{}, err
	}

	floor, ceiling, fraction, err := core.Progress(totals.CumulativeXP)
	if err != nil {
		return UserSummary{}, err
	}
	level, err := core.Level(totals.CumulativeXP)
	if err != nil {
		return UserSummary{}, err
	}

	return UserSummary{
		Totals:        totals,
		Streak:        streak,
		Progress:      progress,
		Title:         s.catalog.TitleForLevel(level),
		Perks:         catalog.PerksForLevel(level),
		LevelFloor:    floor,
		LevelCeiling:  ceiling,
		LevelFraction: fraction,
		XPToNextLevel: ceiling - totals.CumulativeXP,
	}, nil
}

// Transactions exposes the append-only ledger history for auditing.
func (s *ProgressionService) Transactions(ctx context.Context, userID core.UserID) ([]core.XPTransaction, error) {
	user, err := core.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.storage.Transactions(ctx, user)
}

// TopN reads the live leaderboard.
func (s *ProgressionService) TopN(n int) []leaderboard.Entry {
	return s.board.TopN(n)
}

// SnapshotLeaderboard recomputes a full ranking for the period from a
// point-in-time scan of all totals. The scan may interleave with concurrent
// awards across users; that staleness is accepted and the snapshot is simply
// recomputed on the next tick.
func (s *ProgressionService) SnapshotLeaderboard(ctx context.Context, period leaderboard.Period, previous *leaderboard.Snapshot) (leaderboard.Snapshot, error) {
	totals, err := s.storage.ListTotals(ctx)
	if err != nil {
		return leaderboard.Snapshot{}, err
	}
	entries := make([]leaderboard.Entry, 0, len(totals))
	now := time.Now().UTC()
	for _, t := range totals {
		var xp int64
		switch period {
		case leaderboard.PeriodWeekly:
			if t.WeekKey != core.WeekKey(now) {
				continue // no activity this week
			}
			xp = t.WeeklyXP
		case leaderboard.PeriodMonthly:
			if t.MonthKey != core.MonthKey(now) {
				continue
			}
			xp = t.MonthlyXP
		default:
			xp = t.CumulativeXP
		}
		entries = append(entries, leaderboard.Entry{User: t.UserID, XP: xp, Level: t.CurrentLevel})
	}
	return leaderboard.Rank(period, entries, previous), nil
}
