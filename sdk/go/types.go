package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ActivityRequest is the payload for ReportActivity.
type ActivityRequest struct {
	ActivityTag    string           `json:"activity_tag"`
	CounterUpdates map[string]int64 `json:"counter_updates,omitempty"`
	XPAmount       int64            `json:"xp_amount,omitempty"`
	TransactionID  string           `json:"transaction_id"`
	Timestamp      time.Time        `json:"timestamp,omitempty"`
}

// ActivityResult mirrors the engine's activity outcome.
type ActivityResult struct {
	NewTotalXP           int64         `json:"new_total_xp"`
	NewLevel             int64         `json:"new_level"`
	DidLevelUp           bool          `json:"did_level_up"`
	UnlockedAchievements []Achievement `json:"unlocked_achievements,omitempty"`
	StreakDays           int64         `json:"streak_days"`
	AwardedXP            int64         `json:"awarded_xp"`
	Duplicate            bool          `json:"duplicate,omitempty"`
}

// Achievement mirrors a catalog entry.
type Achievement struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TrackedCounter string `json:"tracked_counter"`
	Threshold      int64  `json:"threshold"`
	Rarity         string `json:"rarity"`
	XPReward       int64  `json:"xp_reward"`
}

// LootGrant mirrors a loot roll outcome.
type LootGrant struct {
	Tier    string `json:"tier"`
	ItemRef string `json:"item_ref,omitempty"`
}

// UserSummary mirrors the public JSON surface of the user read model.
type UserSummary struct {
	Totals struct {
		UserID       string    `json:"user_id"`
		CumulativeXP int64     `json:"cumulative_xp"`
		WeeklyXP     int64     `json:"weekly_xp"`
		MonthlyXP    int64     `json:"monthly_xp"`
		CurrentLevel int64     `json:"current_level"`
		LastActivity time.Time `json:"last_activity"`
	} `json:"totals"`
	Streak struct {
		CurrentStreakDays int64     `json:"current_streak_days"`
		LongestStreakDays int64     `json:"longest_streak_days"`
		LastActivityDate  time.Time `json:"last_activity_date"`
	} `json:"streak"`
	Progress struct {
		Counters map[string]int64     `json:"counters"`
		Unlocked map[string]time.Time `json:"unlocked"`
	} `json:"progress"`
	Title         string   `json:"title"`
	Perks         []string `json:"perks,omitempty"`
	LevelFloor    int64    `json:"level_floor"`
	LevelCeiling  int64    `json:"level_ceiling"`
	LevelFraction float64  `json:"level_fraction"`
	XPToNextLevel int64    `json:"xp_to_next_level"`
}

// LeaderboardEntry is one live leaderboard row.
type LeaderboardEntry struct {
	User  string `json:"user_id"`
	XP    int64  `json:"xp"`
	Level int64  `json:"level"`
}

// RankedEntry is one snapshot row with rank and movement.
type RankedEntry struct {
	Rank  int    `json:"rank"`
	User  string `json:"user_id"`
	XP    int64  `json:"xp"`
	Level int64  `json:"level"`
	Delta *int   `json:"delta,omitempty"`
}

// Snapshot is a point-in-time ranking for a period.
type Snapshot struct {
	Period  string        `json:"period"`
	TakenAt time.Time     `json:"taken_at"`
	Entries []RankedEntry `json:"entries"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
