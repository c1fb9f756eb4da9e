package models

import "errors"

var (
	// ErrNotFound is returned when a referenced attempt, challenge or account is absent.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidState is returned when an operation is illegal for the current lifecycle state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrInsufficientFunds is returned when a debit would push credits below zero.
	ErrInsufficientFunds = errors.New("insufficient credits")
	// ErrAlreadyClaimed signals an idempotency guard: the reward was issued before.
	ErrAlreadyClaimed = errors.New("reward already claimed")
	// ErrAlreadyPlayed signals a challenge slot was already filled by this participant.
	ErrAlreadyPlayed = errors.New("result already recorded for this participant")
	// ErrUnauthorized is returned when the caller is not a party to the resource.
	ErrUnauthorized = errors.New("caller is not a party to this resource")
	// ErrGenerationFailed wraps failures of the question-generation collaborator.
	ErrGenerationFailed = errors.New("question generation failed")
	// ErrNoRefreshTokens is returned when the daily quota of quest re-rolls is spent.
	ErrNoRefreshTokens = errors.New("no quest refresh tokens left today")
	// ErrAttemptInProgress is returned when an unterminated attempt already exists for the key.
	ErrAttemptInProgress = errors.New("another attempt is already in progress")
)
