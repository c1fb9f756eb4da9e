package models

import "time"

// QuestionType separates auto-scored questions from externally graded ones.
type QuestionType string

const (
	QuestionTypeObjective  QuestionType = "objective"  // 1 mark if correct
	QuestionTypeSubjective QuestionType = "subjective" // up to 4 marks from external grading
)

// MaxSubjectiveMarks is the mark ceiling for a subjective question.
const MaxSubjectiveMarks = 4

// Question is a stored item from the content-generation collaborator.
// Questions are persisted once and referenced by id thereafter, so both
// challenge participants always see identical content.
type Question struct {
	ID       string       `gorm:"primaryKey;type:uuid" json:"id"`
	CourseID string       `gorm:"index;not null" json:"course_id"`
	Type     QuestionType `gorm:"type:varchar(16);not null" json:"type"`

	Prompt          string     `gorm:"type:text;not null" json:"prompt"`
	Options         StringList `gorm:"type:text" json:"options,omitempty"`
	CorrectAnswer   string     `gorm:"type:text" json:"-"` // objective only, never sent to clients
	SuggestedAnswer string     `gorm:"type:text" json:"-"` // subjective only

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// MaxMarks returns the mark ceiling for this question.
func (q Question) MaxMarks() int {
	if q.Type == QuestionTypeSubjective {
		return MaxSubjectiveMarks
	}
	return 1
}

// QuestionGrant marks that a user answered a question correctly at least once.
// Write-once via create-if-absent: it gates the per-question first-correct XP
// so retakes cannot farm XP from the same question.
type QuestionGrant struct {
	UserID     string    `gorm:"primaryKey" json:"user_id"`
	QuestionID string    `gorm:"primaryKey;type:uuid" json:"question_id"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}
