package models

import "time"

// UserAccount holds the running XP/Credits totals for a user (denormalized for O(1) reads).
// Balances are mutated only through the ledger service, never by callers directly.
type UserAccount struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // gateway user id

	XP      int64 `json:"xp" gorm:"default:0"`
	Credits int64 `json:"credits" gorm:"default:0;check:credits >= 0"`
	Level   int   `json:"level" gorm:"default:1"`

	ChallengeWins int64 `json:"challenge_wins" gorm:"default:0"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// LedgerKind distinguishes the two balances a ledger entry can touch.
type LedgerKind string

const (
	LedgerKindXP      LedgerKind = "xp"
	LedgerKindCredits LedgerKind = "credits"
)

// LedgerEntry is an immutable, append-only record of a single balance mutation.
// It is an audit trail, not the source of truth for the current balance.
type LedgerEntry struct {
	ID     string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string     `gorm:"index;not null" json:"user_id"`
	Kind   LedgerKind `gorm:"type:varchar(16);not null;index" json:"kind"`

	Amount       int64   `json:"amount"` // signed: negative for debits
	Reason       string  `gorm:"type:varchar(128);not null" json:"reason"`
	Metadata     JSONMap `gorm:"type:text" json:"metadata,omitempty"`
	BalanceAfter int64   `json:"balance_after"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
