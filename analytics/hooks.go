package analytics

import (
	"sync"
	"time"

	"progresskit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := e.Time.UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// EngagementMetrics tracks progression KPIs across daily, weekly and monthly
// windows: active users, XP awarded, level-ups, achievement unlocks, loot
// grants and streak extensions.
type EngagementMetrics struct {
	mu sync.RWMutex

	dailyActiveUsers   map[string]map[core.UserID]struct{}
	weeklyActiveUsers  map[string]map[core.UserID]struct{}
	monthlyActiveUsers map[string]map[core.UserID]struct{}

	xpAwardedByDay    map[string]int64
	xpAwardedBySource map[core.ActivityTag]int64

	levelUpsByDay     map[string]int64
	levelDistribution map[int64]int

	unlocksByDay         map[string]int64
	unlocksByAchievement map[core.AchievementID]int64

	lootByTier map[core.RarityTier]int64

	streakExtensionsByDay map[string]int64
	longestStreakSeen     int64
}

func NewEngagementMetrics() *EngagementMetrics {
	return &EngagementMetrics{
		dailyActiveUsers:      make(map[string]map[core.UserID]struct{}),
		weeklyActiveUsers:     make(map[string]map[core.UserID]struct{}),
		monthlyActiveUsers:    make(map[string]map[core.UserID]struct{}),
		xpAwardedByDay:        make(map[string]int64),
		xpAwardedBySource:     make(map[core.ActivityTag]int64),
		levelUpsByDay:         make(map[string]int64),
		levelDistribution:     make(map[int64]int),
		unlocksByDay:          make(map[string]int64),
		unlocksByAchievement:  make(map[core.AchievementID]int64),
		lootByTier:            make(map[core.RarityTier]int64),
		streakExtensionsByDay: make(map[string]int64),
	}
}

func (m *EngagementMetrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := e.Time.UTC().Format("2006-01-02")
	m.trackActiveUser(e.UserID, e.Time)

	switch e.Type {
	case core.EventXPAwarded:
		if e.Amount > 0 {
			m.xpAwardedByDay[day] += e.Amount
			m.xpAwardedBySource[e.Source] += e.Amount
		}
	case core.EventLevelUp:
		m.levelUpsByDay[day]++
		m.levelDistribution[e.Level]++
	case core.EventAchievementUnlocked:
		m.unlocksByDay[day]++
		m.unlocksByAchievement[e.Achievement]++
	case core.EventLootGranted:
		m.lootByTier[e.Tier]++
	case core.EventStreakExtended:
		m.streakExtensionsByDay[day]++
		if e.StreakDays > m.longestStreakSeen {
			m.longestStreakSeen = e.StreakDays
		}
	}
}

func (m *EngagementMetrics) trackActiveUser(user core.UserID, at time.Time) {
	day := at.UTC().Format("2006-01-02")
	week := core.WeekKey(at)
	month := core.MonthKey(at)

	if m.dailyActiveUsers[day] == nil {
		m.dailyActiveUsers[day] = make(map[core.UserID]struct{})
	}
	m.dailyActiveUsers[day][user] = struct{}{}

	if m.weeklyActiveUsers[week] == nil {
		m.weeklyActiveUsers[week] = make(map[core.UserID]struct{})
	}
	m.weeklyActiveUsers[week][user] = struct{}{}

	if m.monthlyActiveUsers[month] == nil {
		m.monthlyActiveUsers[month] = make(map[core.UserID]struct{})
	}
	m.monthlyActiveUsers[month][user] = struct{}{}
}

// ActiveUsers returns the unique-user count for a daily ("2006-01-02"),
// weekly ("2006-W01") or monthly ("2006-01") key.
func (m *EngagementMetrics) ActiveUsers(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if users, ok := m.dailyActiveUsers[key]; ok {
		return len(users)
	}
	if users, ok := m.weeklyActiveUsers[key]; ok {
		return len(users)
	}
	if users, ok := m.monthlyActiveUsers[key]; ok {
		return len(users)
	}
	return 0
}

func (m *EngagementMetrics) XPAwardedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpAwardedByDay[day]
}

func (m *EngagementMetrics) XPAwardedBySource(source core.ActivityTag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpAwardedBySource[source]
}

func (m *EngagementMetrics) LevelUpsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelUpsByDay[day]
}

func (m *EngagementMetrics) UnlocksByAchievement(id core.AchievementID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocksByAchievement[id]
}

func (m *EngagementMetrics) LootByTier(tier core.RarityTier) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lootByTier[tier]
}

func (m *EngagementMetrics) LongestStreakSeen() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.longestStreakSeen
}
