package analytics

import (
	"sync"
	"time"

	"progresskit/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// AggregatedData is one rollup of progression KPIs for a period key.
type AggregatedData struct {
	Period AggregationPeriod `json:"period"`
	Key    string            `json:"key"` // "2026-08-28", "2026-W35" or "2026-08"

	ActiveUsers          int   `json:"active_users"`
	XPAwarded            int64 `json:"xp_awarded"`
	LevelUps             int64 `json:"level_ups"`
	AchievementsUnlocked int64 `json:"achievements_unlocked"`
	StreakExtensions     int64 `json:"streak_extensions"`

	CreatedAt time.Time `json:"created_at"`
}

// AggregationEngine rolls the live metrics into per-period snapshots that an
// Exporter can ship out.
type AggregationEngine struct {
	mu      sync.RWMutex
	metrics *EngagementMetrics

	rollups map[string]*AggregatedData
}

func NewAggregationEngine(metrics *EngagementMetrics) *AggregationEngine {
	return &AggregationEngine{
		metrics: metrics,
		rollups: make(map[string]*AggregatedData),
	}
}

// OnEvent forwards events to the underlying metrics hook.
func (ae *AggregationEngine) OnEvent(e core.Event) {
	ae.metrics.OnEvent(e)
}

// AggregateNow snapshots the daily, weekly and monthly rollups for now.
func (ae *AggregationEngine) AggregateNow(now time.Time) []*AggregatedData {
	now = now.UTC()
	day := now.Format("2006-01-02")
	week := core.WeekKey(now)
	month := core.MonthKey(now)

	ae.mu.Lock()
	defer ae.mu.Unlock()

	out := []*AggregatedData{
		ae.rollup(PeriodDaily, day, now),
		ae.rollup(PeriodWeekly, week, now),
		ae.rollup(PeriodMonthly, month, now),
	}
	return out
}

// Rollup returns the latest aggregation for a period key, if any.
func (ae *AggregationEngine) Rollup(period AggregationPeriod, key string) (*AggregatedData, bool) {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	data, ok := ae.rollups[string(period)+"/"+key]
	return data, ok
}

func (ae *AggregationEngine) rollup(period AggregationPeriod, key string, now time.Time) *AggregatedData {
	data := &AggregatedData{
		Period:      period,
		Key:         key,
		ActiveUsers: ae.metrics.ActiveUsers(key),
		CreatedAt:   now,
	}
	// Day-level counters only exist for the daily period; weekly and monthly
	// rollups carry the active-user count keyed by their own period key.
	if period == PeriodDaily {
		ae.metrics.mu.RLock()
		data.XPAwarded = ae.metrics.xpAwardedByDay[key]
		data.LevelUps = ae.metrics.levelUpsByDay[key]
		data.AchievementsUnlocked = ae.metrics.unlocksByDay[key]
		data.StreakExtensions = ae.metrics.streakExtensionsByDay[key]
		ae.metrics.mu.RUnlock()
	}
	ae.rollups[string(period)+"/"+key] = data
	return data
}
