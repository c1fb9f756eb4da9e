package models

import "time"

// ChallengeStatus is the lifecycle state of a wagered 1v1 duel.
type ChallengeStatus string

const (
	ChallengeStatusPending   ChallengeStatus = "pending"
	ChallengeStatusAccepted  ChallengeStatus = "accepted"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusRejected  ChallengeStatus = "rejected"
	ChallengeStatusExpired   ChallengeStatus = "expired"
)

// Challenge is a two-party wagered duel over a shared question set.
// The bet is escrowed from each party at the moment they commit: the
// challenger at creation, the challenged at acceptance. The pot is only
// paid out once a terminal winner is known.
type Challenge struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengerID string `gorm:"index;not null" json:"challenger_id"`
	ChallengedID string `gorm:"index;not null" json:"challenged_id"`
	CourseID     string `gorm:"index;not null" json:"course_id"`

	QuizType    QuizScope  `gorm:"type:varchar(16);not null" json:"quiz_type"` // module or course
	ModuleIndex *int       `json:"module_index,omitempty"`
	QuestionIDs StringList `gorm:"type:text;not null" json:"question_ids"` // generated once, shared by both players

	BetAmount int64           `json:"bet_amount" gorm:"not null;check:bet_amount >= 0"`
	Status    ChallengeStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	ChallengerAttemptID *string `json:"challenger_attempt_id,omitempty"`
	ChallengerScore     *int    `json:"challenger_score,omitempty"`
	ChallengerTimeSec   *int    `json:"challenger_time_sec,omitempty"`

	ChallengedAttemptID *string `json:"challenged_attempt_id,omitempty"`
	ChallengedScore     *int    `json:"challenged_score,omitempty"`
	ChallengedTimeSec   *int    `json:"challenged_time_sec,omitempty"`

	WinnerID *string `json:"winner_id,omitempty"`

	ExpiresAt          time.Time  `json:"expires_at" gorm:"not null;index"` // response deadline while pending
	CompletionDeadline *time.Time `json:"completion_deadline,omitempty" gorm:"index"`

	Timestamps
}

// IsParticipant reports whether the user is a party to this challenge.
func (c *Challenge) IsParticipant(userID string) bool {
	return userID == c.ChallengerID || userID == c.ChallengedID
}

// ChallengerPlayed reports whether the challenger's result slot is filled.
func (c *Challenge) ChallengerPlayed() bool { return c.ChallengerAttemptID != nil }

// ChallengedPlayed reports whether the challenged party's result slot is filled.
func (c *Challenge) ChallengedPlayed() bool { return c.ChallengedAttemptID != nil }
