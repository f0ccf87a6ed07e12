package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventXPAwarded           EventType = "xp_awarded"
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventLootGranted         EventType = "loot_granted"
	EventStreakExtended      EventType = "streak_extended"
)

// Event represents an immutable domain event.
type Event struct {
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	UserID      UserID         `json:"user_id"`
	Amount      int64          `json:"amount,omitempty"`
	Total       int64          `json:"total,omitempty"`
	Source      ActivityTag    `json:"source,omitempty"`
	Level       int64          `json:"level,omitempty"`
	Achievement AchievementID  `json:"achievement,omitempty"`
	Tier        RarityTier     `json:"tier,omitempty"`
	ItemRef     string         `json:"item_ref,omitempty"`
	StreakDays  int64          `json:"streak_days,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewXPAwarded(user UserID, source ActivityTag, amount, total int64) Event {
	return Event{Type: EventXPAwarded, Time: time.Now().UTC(), UserID: user, Source: source, Amount: amount, Total: total}
}

func NewLevelUp(user UserID, level int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Level: level}
}

func NewAchievementUnlocked(user UserID, id AchievementID, reward int64) Event {
	return Event{Type: EventAchievementUnlocked, Time: time.Now().UTC(), UserID: user, Achievement: id, Amount: reward}
}

func NewLootGranted(user UserID, tier RarityTier, itemRef string) Event {
	return Event{Type: EventLootGranted, Time: time.Now().UTC(), UserID: user, Tier: tier, ItemRef: itemRef}
}

func NewStreakExtended(user UserID, days int64) Event {
	return Event{Type: EventStreakExtended, Time: time.Now().UTC(), UserID: user, StreakDays: days}
}
