package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"progresskit/core"
)

// Catalog is the immutable configuration data the engine consults: the
// achievement definitions, the rarity weight table, the loot table, and the
// level title thresholds. It is loaded once at startup and never mutated.
type Catalog struct {
	achievements []core.AchievementDefinition
	byCounter    map[core.CounterName][]core.AchievementDefinition
	weights      []core.RarityWeight
	loot         map[core.RarityTier][]string
	titles       []TitleThreshold
	activityXP   map[core.ActivityTag]int64
}

// TitleThreshold maps a minimum level to a display title.
type TitleThreshold struct {
	Level int64  `json:"level"`
	Title string `json:"title"`
}

// File is the JSON shape a catalog is loaded from.
type File struct {
	Achievements []core.AchievementDefinition    `json:"achievements"`
	Weights      []core.RarityWeight             `json:"rarity_weights,omitempty"`
	Loot         map[core.RarityTier][]string    `json:"loot,omitempty"`
	Titles       []TitleThreshold                `json:"titles,omitempty"`
	ActivityXP   map[core.ActivityTag]int64      `json:"activity_xp,omitempty"`
}

// New builds a catalog from explicit data, applying defaults for any empty
// section and validating the result.
func New(f File) (*Catalog, error) {
	c := &Catalog{
		achievements: append([]core.AchievementDefinition{}, f.Achievements...),
		byCounter:    map[core.CounterName][]core.AchievementDefinition{},
		weights:      f.Weights,
		loot:         f.Loot,
		titles:       f.Titles,
		activityXP:   f.ActivityXP,
	}
	if len(c.achievements) == 0 {
		c.achievements = DefaultAchievements()
	}
	if len(c.weights) == 0 {
		c.weights = core.DefaultRarityWeights()
	}
	if len(c.loot) == 0 {
		c.loot = DefaultLootTable()
	}
	if len(c.titles) == 0 {
		c.titles = DefaultTitles()
	}
	if len(c.activityXP) == 0 {
		c.activityXP = DefaultActivityXP()
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	for _, d := range c.achievements {
		c.byCounter[d.TrackedCounter] = append(c.byCounter[d.TrackedCounter], d)
	}
	sort.Slice(c.titles, func(i, j int) bool { return c.titles[i].Level < c.titles[j].Level })
	return c, nil
}

// Default returns the stock catalog.
func Default() *Catalog {
	c, err := New(File{})
	if err != nil {
		panic(err) // defaults are static and always valid
	}
	return c
}

// LoadFile reads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(f)
}

func (c *Catalog) validate() error {
	seen := map[core.AchievementID]struct{}{}
	for _, d := range c.achievements {
		if d.ID == "" {
			return fmt.Errorf("%w: achievement with empty id", core.ErrInvalidInput)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate achievement id %q", core.ErrInvalidInput, d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.TrackedCounter == "" {
			return fmt.Errorf("%w: achievement %q has no tracked counter", core.ErrInvalidInput, d.ID)
		}
		if d.Threshold <= 0 {
			return fmt.Errorf("%w: achievement %q threshold must be positive", core.ErrInvalidInput, d.ID)
		}
		if d.XPReward < 0 {
			return fmt.Errorf("%w: achievement %q has negative reward", core.ErrInvalidInput, d.ID)
		}
	}
	return core.ValidateWeights(c.weights)
}

// Achievements returns all definitions.
func (c *Catalog) Achievements() []core.AchievementDefinition {
	return append([]core.AchievementDefinition{}, c.achievements...)
}

// ForCounter returns the definitions watching the given counter.
func (c *Catalog) ForCounter(counter core.CounterName) []core.AchievementDefinition {
	return c.byCounter[counter]
}

// Weights returns the rarity weight table in sampling order.
func (c *Catalog) Weights() []core.RarityWeight {
	return append([]core.RarityWeight{}, c.weights...)
}

// LootItems returns the item refs available at a tier.
func (c *Catalog) LootItems(tier core.RarityTier) []string {
	return c.loot[tier]
}

// TitleForLevel resolves the highest title threshold the level has reached.
func (c *Catalog) TitleForLevel(level int64) string {
	title := ""
	for _, t := range c.titles {
		if level >= t.Level {
			title = t.Title
		}
	}
	if title == "" && len(c.titles) > 0 {
		title = c.titles[0].Title
	}
	return title
}

// ActivityXP returns the default XP grant for an activity tag, or 0 when the
// tag is unknown and the caller must supply an explicit amount.
func (c *Catalog) ActivityXP(tag core.ActivityTag) int64 {
	return c.activityXP[tag]
}
