package services

// Level thresholds: cumulative XP required to *be* at a level. Seeded with
// fixed early-game values, then each step doubles the span of the previous
// one so levels widen monotonically.
const maxLevel = 40

var levelThresholds = buildLevelThresholds(maxLevel)

func buildLevelThresholds(levels int) []int64 {
	seeds := []int64{0, 100, 250, 500, 1000}
	thresholds := make([]int64, 0, levels)
	thresholds = append(thresholds, seeds...)
	for len(thresholds) < levels {
		n := len(thresholds)
		span := thresholds[n-1] - thresholds[n-2]
		thresholds = append(thresholds, thresholds[n-1]+span*2)
	}
	return thresholds[:levels]
}

// LevelOf maps cumulative XP to a level: the highest level whose threshold
// is <= xp. Level 1 starts at 0 XP.
func LevelOf(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	level := 1
	for i := 1; i < len(levelThresholds); i++ {
		if xp < levelThresholds[i] {
			break
		}
		level = i + 1
	}
	return level
}

// LevelProgress describes where within a level a cumulative XP total sits.
type LevelProgress struct {
	Level       int     `json:"level"`
	XPIntoLevel int64   `json:"xp_into_level"`
	XPToNext    int64   `json:"xp_to_next"`
	Percent     float64 `json:"percent"`
}

// Progress returns the level plus progress-within-level for a cumulative XP
// total. At the table's last level XPToNext is 0 and Percent is 100.
func Progress(xp int64) LevelProgress {
	if xp < 0 {
		xp = 0
	}
	level := LevelOf(xp)
	floor := levelThresholds[level-1]
	if level == len(levelThresholds) {
		return LevelProgress{Level: level, XPIntoLevel: xp - floor, XPToNext: 0, Percent: 100}
	}
	ceil := levelThresholds[level]
	span := ceil - floor
	into := xp - floor
	return LevelProgress{
		Level:       level,
		XPIntoLevel: into,
		XPToNext:    ceil - xp,
		Percent:     float64(into) / float64(span) * 100,
	}
}
