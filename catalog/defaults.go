package catalog

import "progresskit/core"

// DefaultAchievements is the stock threshold catalog for a learning platform.
func DefaultAchievements() []core.AchievementDefinition {
	return []core.AchievementDefinition{
		{ID: "first_course", Name: "First Course", TrackedCounter: "courses_completed", Threshold: 1, Rarity: core.RarityCommon, XPReward: 50},
		{ID: "course_explorer", Name: "Course Explorer", TrackedCounter: "courses_completed", Threshold: 5, Rarity: core.RarityUncommon, XPReward: 150},
		{ID: "dedicated_learner", Name: "Dedicated Learner", TrackedCounter: "courses_completed", Threshold: 10, Rarity: core.RarityRare, XPReward: 300},
		{ID: "course_master", Name: "Course Master", TrackedCounter: "courses_completed", Threshold: 25, Rarity: core.RarityEpic, XPReward: 750},

		{ID: "perfect_score", Name: "Perfect Score", TrackedCounter: "perfect_quizzes", Threshold: 1, Rarity: core.RarityCommon, XPReward: 100},
		{ID: "quiz_ace", Name: "Quiz Ace", TrackedCounter: "perfect_quizzes", Threshold: 10, Rarity: core.RarityRare, XPReward: 400},
		{ID: "perfection_streak", Name: "Perfection Streak", TrackedCounter: "perfect_quizzes", Threshold: 50, Rarity: core.RarityLegendary, XPReward: 1500},

		{ID: "getting_started", Name: "Getting Started", TrackedCounter: "daily_streak", Threshold: 3, Rarity: core.RarityCommon, XPReward: 25},
		{ID: "week_warrior", Name: "Week Warrior", TrackedCounter: "daily_streak", Threshold: 7, Rarity: core.RarityUncommon, XPReward: 100},
		{ID: "monthly_dedication", Name: "Monthly Dedication", TrackedCounter: "daily_streak", Threshold: 30, Rarity: core.RarityEpic, XPReward: 500},
		{ID: "century_streak", Name: "Century Streak", TrackedCounter: "daily_streak", Threshold: 100, Rarity: core.RarityLegendary, XPReward: 2000},
	}
}

// DefaultTitles is the level title ladder.
func DefaultTitles() []TitleThreshold {
	return []TitleThreshold{
		{Level: 1, Title: "Novice"},
		{Level: 5, Title: "Student"},
		{Level: 10, Title: "Scholar"},
		{Level: 15, Title: "Practitioner"},
		{Level: 20, Title: "Professional"},
		{Level: 25, Title: "Expert"},
		{Level: 30, Title: "Specialist"},
		{Level: 40, Title: "Distinguished"},
		{Level: 50, Title: "Master"},
		{Level: 75, Title: "Authority"},
		{Level: 100, Title: "Grand Master"},
	}
}

// DefaultLootTable maps each tier to the stock item refs drawn at that tier.
func DefaultLootTable() map[core.RarityTier][]string {
	return map[core.RarityTier][]string{
		core.RarityCommon:    {"sticker_pack", "profile_banner", "note_theme"},
		core.RarityUncommon:  {"avatar_frame_bronze", "highlighter_set"},
		core.RarityRare:      {"avatar_frame_silver", "study_timer_skin"},
		core.RarityEpic:      {"avatar_frame_gold", "animated_badge"},
		core.RarityLegendary: {"founders_crest"},
	}
}

// DefaultActivityXP maps activity tags to their base XP grant.
func DefaultActivityXP() map[core.ActivityTag]int64 {
	return map[core.ActivityTag]int64{
		"complete_lesson": 50,
		"pass_quiz":       100,
		"perfect_quiz":    150,
		"complete_module": 200,
		"complete_course": 500,
		"help_peer":       25,
		"daily_login":     10,
	}
}

// PerksForLevel lists the perks unlocked at or below the given level.
func PerksForLevel(level int64) []string {
	var perks []string
	steps := []struct {
		level int64
		perk  string
	}{
		{5, "Custom avatar frame"},
		{10, "Priority support"},
		{15, "Exclusive badges"},
		{20, "Early access to new courses"},
		{25, "Mentorship opportunities"},
		{30, "Custom study plans"},
		{40, "VIP community access"},
		{50, "Course creation tools"},
	}
	for _, s := range steps {
		if level >= s.level {
			perks = append(perks, s.perk)
		}
	}
	return perks
}
