package models

import "time"

// RewardClaim records that a score-threshold reward tier was issued.
// Existence of the row is the idempotency guard: it is written once,
// before payment, and never overwritten.
type RewardClaim struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string    `gorm:"uniqueIndex:idx_reward_claim_key;not null" json:"user_id"`
	CourseID string    `gorm:"uniqueIndex:idx_reward_claim_key;not null" json:"course_id"`
	Scope    QuizScope `gorm:"type:varchar(16);uniqueIndex:idx_reward_claim_key;not null" json:"scope"`
	ScopeKey string    `gorm:"uniqueIndex:idx_reward_claim_key;not null" json:"scope_key"` // e.g. "module:2", "course"
	Tier     int       `gorm:"uniqueIndex:idx_reward_claim_key;not null" json:"tier"`      // threshold percent: 50, 70, 90, 100

	XPAwarded      int64 `json:"xp_awarded"`
	CreditsAwarded int64 `json:"credits_awarded"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
