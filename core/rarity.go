package core

import "fmt"

// RarityTier is one of the fixed, ordered reward tiers.
type RarityTier string

const (
	RarityCommon    RarityTier = "common"
	RarityUncommon  RarityTier = "uncommon"
	RarityRare      RarityTier = "rare"
	RarityEpic      RarityTier = "epic"
	RarityLegendary RarityTier = "legendary"
)

// RarityWeight pairs a tier with its positive sampling weight. Order matters:
// sampling walks the slice as given, so tests can pin exact outcomes.
type RarityWeight struct {
	Tier   RarityTier `json:"tier"`
	Weight int64      `json:"weight"`
}

// DefaultRarityWeights is the stock 50/30/15/4/1 distribution.
func DefaultRarityWeights() []RarityWeight {
	return []RarityWeight{
		{Tier: RarityCommon, Weight: 50},
		{Tier: RarityUncommon, Weight: 30},
		{Tier: RarityRare, Weight: 15},
		{Tier: RarityEpic, Weight: 4},
		{Tier: RarityLegendary, Weight: 1},
	}
}

// RarityXPMultiplier scales XP rewards by tier.
func RarityXPMultiplier(tier RarityTier) float64 {
	switch tier {
	case RarityUncommon:
		return 1.5
	case RarityRare:
		return 2
	case RarityEpic:
		return 3
	case RarityLegendary:
		return 5
	default:
		return 1
	}
}

// ValidateWeights rejects empty tables and non-positive weights.
func ValidateWeights(weights []RarityWeight) error {
	if len(weights) == 0 {
		return fmt.Errorf("%w: empty weight table", ErrInvalidDistribution)
	}
	for i, w := range weights {
		if w.Weight <= 0 {
			return fmt.Errorf("%w: weight %d for tier %q at index %d", ErrInvalidDistribution, w.Weight, w.Tier, i)
		}
	}
	return nil
}

// SampleRarity selects a tier from the weight table using a caller-supplied
// random unit in [0,1). The engine never reads an ambient random source; the
// caller owns the generator, which keeps sampling pure and replayable.
//
// The scaled value is walked against cumulative weights and the first tier
// whose cumulative weight strictly exceeds it wins; the last tier absorbs any
// floating-point residue.
func SampleRarity(weights []RarityWeight, randomUnit float64) (RarityTier, error) {
	if err := ValidateWeights(weights); err != nil {
		return "", err
	}
	if randomUnit < 0 || randomUnit >= 1 {
		return "", fmt.Errorf("%w: random unit %v outside [0,1)", ErrInvalidInput, randomUnit)
	}
	var total int64
	for _, w := range weights {
		total += w.Weight
	}
	scaled := randomUnit * float64(total)
	var cum int64
	for _, w := range weights {
		cum += w.Weight
		if scaled < float64(cum) {
			return w.Tier, nil
		}
	}
	return weights[len(weights)-1].Tier, nil
}
