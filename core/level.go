package core

import (
	"fmt"
	"math"
)

// The level curve is quadratic: reaching level L requires 100*(L-1)^2
// cumulative XP, so each level costs strictly more than the one before it.
// XPThreshold is the single canonical definition of the curve; every other
// component derives levels from it rather than duplicating the formula.

// maxCurveLevel is the last level whose threshold still fits in int64;
// one level higher, 100*(L-1)^2 overflows.
const maxCurveLevel = 303700050

// XPThreshold returns the cumulative XP at which the given level begins.
// Levels below 1 are treated as level 1, which begins at 0 XP. Levels past
// the representable end of the curve saturate at math.MaxInt64.
func XPThreshold(level int64) int64 {
	if level <= 1 {
		return 0
	}
	if level > maxCurveLevel {
		return math.MaxInt64
	}
	d := level - 1
	return 100 * d * d
}

// Level maps cumulative XP to a level. Level(0) == 1 and the result is
// non-decreasing in XP. Negative XP is a precondition violation.
func Level(totalXP int64) (int64, error) {
	if totalXP < 0 {
		return 0, fmt.Errorf("%w: negative xp %d", ErrInvalidInput, totalXP)
	}
	lvl := int64(math.Sqrt(float64(totalXP)/100.0)) + 1
	if lvl > maxCurveLevel {
		lvl = maxCurveLevel
	}
	// Fix up against the canonical thresholds so float rounding can never
	// put a boundary value on the wrong side. The curve saturates at
	// maxCurveLevel, where every remaining XP value maps.
	for lvl > 1 && XPThreshold(lvl) > totalXP {
		lvl--
	}
	for lvl < maxCurveLevel && XPThreshold(lvl+1) <= totalXP {
		lvl++
	}
	return lvl, nil
}

// Progress reports the XP band of the current level and how far through it
// the user is. For any valid XP, floor <= totalXP < ceiling and the fraction
// lies in [0, 1).
func Progress(totalXP int64) (floor, ceiling int64, fraction float64, err error) {
	lvl, err := Level(totalXP)
	if err != nil {
		return 0, 0, 0, err
	}
	floor = XPThreshold(lvl)
	ceiling = XPThreshold(lvl + 1)
	fraction = float64(totalXP-floor) / float64(ceiling-floor)
	return floor, ceiling, fraction, nil
}

// XPToNextLevel returns the XP remaining until the next level boundary.
func XPToNextLevel(totalXP int64) (int64, error) {
	lvl, err := Level(totalXP)
	if err != nil {
		return 0, err
	}
	return XPThreshold(lvl+1) - totalXP, nil
}
