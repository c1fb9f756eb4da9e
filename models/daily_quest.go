package models

import (
	"database/sql/driver"
	"encoding/json"
)

// QuestType identifies what a daily quest objective counts.
type QuestType string

const (
	QuestCompleteLessons QuestType = "complete_lesson"
	QuestCompleteQuizzes QuestType = "complete_quiz"
	QuestPerfectQuiz     QuestType = "perfect_quiz"
	QuestPlayChallenges  QuestType = "play_challenge"
	QuestWinChallenges   QuestType = "win_challenge"
	QuestEarnCredits     QuestType = "earn_credits"
	QuestAnswerStreak    QuestType = "answer_streak"
	QuestClaimRewards    QuestType = "claim_reward"
)

// Quest is one of the three daily objectives in a user's set.
type Quest struct {
	ID            string    `json:"id"`
	Type          QuestType `json:"type"`
	Target        int       `json:"target"`
	Progress      int       `json:"progress"`
	Completed     bool      `json:"completed"`
	Claimed       bool      `json:"claimed"`
	XPReward      int64     `json:"xp_reward"`
	CreditsReward int64     `json:"credits_reward"`
}

// QuestList stores the daily quest slice as a JSON text column.
type QuestList []Quest

func (l QuestList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *QuestList) Scan(src interface{}) error { return scanJSON(src, l) }

// MaxRefreshTokens is the daily quota of manual quest re-rolls.
const MaxRefreshTokens = 3

// DailyQuestSet is the per-user rotating set of three objectives.
// Quests redraw whenever the stored date differs from the current UTC date;
// refresh tokens replenish on their own date cycle, decoupled from the
// quest redraw.
type DailyQuestSet struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	Quests        QuestList `gorm:"type:text;not null" json:"quests"`
	LastResetDate string    `gorm:"type:varchar(10);not null" json:"last_reset_date"` // UTC yyyy-mm-dd

	RefreshTokens      int    `json:"refresh_tokens" gorm:"default:3"`
	LastTokenResetDate string `gorm:"type:varchar(10);not null" json:"last_token_reset_date"`

	// Version guards conditional read-modify-write updates so concurrent
	// quest events for the same user never lose increments.
	Version int64 `json:"-" gorm:"default:0"`

	Timestamps
}

// FindQuest returns a pointer into the set's quest slice, or nil.
func (s *DailyQuestSet) FindQuest(questID string) *Quest {
	for i := range s.Quests {
		if s.Quests[i].ID == questID {
			return &s.Quests[i]
		}
	}
	return nil
}

// HasQuestType reports whether a quest of the given type is already in the set.
func (s *DailyQuestSet) HasQuestType(t QuestType) bool {
	for i := range s.Quests {
		if s.Quests[i].Type == t {
			return true
		}
	}
	return false
}
