package core

import "errors"

// Sentinel errors for the engine's error taxonomy. All are rejected before any
// state mutation; callers match with errors.Is.
var (
	// ErrInvalidInput covers negative or zero grants, decreasing counters,
	// negative XP lookups, and malformed identifiers.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOutOfOrderEvent is returned when an activity date precedes the last
	// recorded one; old events must not be applied after newer ones.
	ErrOutOfOrderEvent = errors.New("out of order event")

	// ErrInvalidDistribution is returned when a rarity weight table is empty
	// or contains a non-positive weight.
	ErrInvalidDistribution = errors.New("invalid distribution")
)
