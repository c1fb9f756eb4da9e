package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// QuizScope is the unit of content an attempt covers.
type QuizScope string

const (
	ScopeLesson QuizScope = "lesson"
	ScopeModule QuizScope = "module"
	ScopeCourse QuizScope = "course"
)

// QuestionScore is the per-question outcome of a completed attempt.
type QuestionScore struct {
	Correct bool `json:"correct"`
	Marks   int  `json:"marks"`
}

// AnswerMap stores the user's answers keyed by question id.
type AnswerMap map[string]string

func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *AnswerMap) Scan(src interface{}) error { return scanJSON(src, m) }

// ScoreMap stores per-question scores keyed by question id.
type ScoreMap map[string]QuestionScore

func (m ScoreMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *ScoreMap) Scan(src interface{}) error { return scanJSON(src, m) }

// QuizAttempt is one instance of answering a fixed, ordered question set.
// Lifecycle: in progress (CompletedAt nil) until completed or abandoned;
// terminal states accept no further transitions.
type QuizAttempt struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string    `gorm:"index:idx_attempt_key;not null" json:"user_id"`
	CourseID string    `gorm:"index:idx_attempt_key;not null" json:"course_id"`
	Scope    QuizScope `gorm:"type:varchar(16);index:idx_attempt_key;not null" json:"scope"`

	ModuleIndex *int `json:"module_index,omitempty"`
	LessonIndex *int `json:"lesson_index,omitempty"`

	QuestionIDs StringList `gorm:"type:text;not null" json:"question_ids"`
	Answers     AnswerMap  `gorm:"type:text" json:"answers"`
	Scores      ScoreMap   `gorm:"type:text" json:"scores,omitempty"`

	TotalScore int  `json:"total_score" gorm:"default:0"`
	MaxScore   int  `json:"max_score" gorm:"default:0"`
	IsRetake   bool `json:"is_retake" gorm:"default:false"`

	// Resume cursor for reconnecting clients.
	CurrentQuestionIndex int `json:"current_question_index" gorm:"default:0"`

	Abandoned   bool       `json:"abandoned" gorm:"default:false"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"index"`

	Timestamps
}

// InProgress reports whether the attempt still accepts mutations.
func (a *QuizAttempt) InProgress() bool {
	return a.CompletedAt == nil && !a.Abandoned
}

// Percent returns the attempt score as an integer percentage.
// A zero-question attempt scores 0%, never a division by zero.
func (a *QuizAttempt) Percent() int {
	return ScorePercent(a.TotalScore, a.MaxScore)
}

// ScorePercent converts a score pair to an integer percentage, treating
// maxScore == 0 as 0%.
func ScorePercent(total, max int) int {
	if max <= 0 {
		return 0
	}
	return total * 100 / max
}
