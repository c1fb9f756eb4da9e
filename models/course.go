package models

// CourseDifficulty scales reward payouts.
type CourseDifficulty string

const (
	DifficultyEasy   CourseDifficulty = "easy"
	DifficultyMedium CourseDifficulty = "medium"
	DifficultyHard   CourseDifficulty = "hard"
)

// Multiplier returns the reward scaling factor for the difficulty.
func (d CourseDifficulty) Multiplier() float64 {
	switch d {
	case DifficultyMedium:
		return 1.25
	case DifficultyHard:
		return 1.5
	default:
		return 1.0
	}
}

// Course is the minimal course record the engine needs: an identity plus a
// difficulty for reward scaling. Content and page data live with the
// content service.
type Course struct {
	ID         string           `gorm:"primaryKey;type:uuid" json:"id"`
	Title      string           `gorm:"not null" json:"title"`
	Topic      string           `gorm:"not null" json:"topic"`
	Difficulty CourseDifficulty `gorm:"type:varchar(16);not null;default:'easy'" json:"difficulty"`

	Timestamps
}
