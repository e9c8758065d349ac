package core

// MaxLevel is the top tier. Levels are always in [1, MaxLevel].
const MaxLevel = 5

// levelMins holds the inclusive minimum XP for each level band. Bands are
// contiguous and exhaustive: every non-negative XP value falls in exactly
// one band, and the top band is unbounded above.
var levelMins = [MaxLevel]int64{0, 100, 250, 500, 1000}

// LevelForXP maps lifetime XP to a level by scanning the ordered bands.
// Callers normalize missing values to 0 beforehand; anything below the
// first band clamps to level 1.
func LevelForXP(xp int64) int {
	for lvl := MaxLevel; lvl >= 2; lvl-- {
		if xp >= levelMins[lvl-1] {
			return lvl
		}
	}
	return 1
}

// MinXPForLevel returns the XP at which the given level begins. Inputs
// outside [1, MaxLevel] clamp to the nearest band.
func MinXPForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelMins[level-1]
}

// MinXPForNextLevel returns the XP at which the next level begins. At the
// top level it returns the top level's own minimum, signaling that there
// is no further progression.
func MinXPForNextLevel(level int) int64 {
	if level >= MaxLevel {
		return levelMins[MaxLevel-1]
	}
	return MinXPForLevel(level + 1)
}

// LevelThresholds returns the inclusive minimum XP of each band in
// ascending level order. The copy is safe for callers to retain.
func LevelThresholds() []int64 {
	out := make([]int64, MaxLevel)
	copy(out, levelMins[:])
	return out
}
