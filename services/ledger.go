package services

import (
	"context"
	"errors"
	"time"

	"quizarena-progression/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns all XP/Credits balance mutations. Callers never touch
// account columns directly: every mutation goes through a transaction that
// updates the running total and appends an immutable ledger entry.
type LedgerService struct {
	DB    *gorm.DB
	Bus   *Bus
	Board *LeaderboardService // optional; best-effort mirror
}

func NewLedgerService(db *gorm.DB, bus *Bus, board *LeaderboardService) *LedgerService {
	return &LedgerService{DB: db, Bus: bus, Board: board}
}

// EnsureAccount fetches the account for a user, creating it on first touch.
func (s *LedgerService) EnsureAccount(tx *gorm.DB, userID string) (*models.UserAccount, error) {
	var acct models.UserAccount
	err := tx.Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		acct = models.UserAccount{ID: uuid.NewString(), UserID: userID, Level: 1}
		// Create-if-absent: concurrent first touches race on the unique
		// user_id index, so swallow the conflict and re-read.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct).Error; err != nil {
			return nil, err
		}
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return nil, err
		}
		return &acct, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// CreditXP increments a user's XP, appends a ledger entry and recomputes the
// level. Amount zero is legal and forces a balance read. Returns the new
// total.
func (s *LedgerService) CreditXP(userID string, amount int64, reason string, meta models.JSONMap) (int64, error) {
	if amount < 0 {
		amount = 0
	}
	var newTotal int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.EnsureAccount(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(&models.UserAccount{}).
			Where("user_id = ?", userID).
			UpdateColumn("xp", gorm.Expr("xp + ?", amount)).Error; err != nil {
			return err
		}

		var acct models.UserAccount
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return err
		}
		newTotal = acct.XP

		if newLevel := LevelOf(acct.XP); newLevel > acct.Level {
			now := time.Now()
			if err := tx.Model(&models.UserAccount{}).
				Where("user_id = ? AND level < ?", userID, newLevel).
				Updates(map[string]interface{}{"level": newLevel, "last_level_up_at": &now}).Error; err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"level":   newLevel,
			}).Info("level up")
		}

		if amount == 0 {
			return nil
		}
		return tx.Create(&models.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Kind:         models.LedgerKindXP,
			Amount:       amount,
			Reason:       reason,
			Metadata:     meta,
			BalanceAfter: newTotal,
		}).Error
	})
	if err != nil {
		return 0, err
	}

	if s.Board != nil && amount > 0 {
		if err := s.Board.RecordXP(context.Background(), userID, amount); err != nil {
			logrus.WithError(err).Warn("leaderboard mirror failed")
		}
	}
	return newTotal, nil
}

// DebitCredits removes credits from a user's balance, failing with
// ErrInsufficientFunds before any write when the balance cannot cover the
// amount. The conditional UPDATE makes concurrent debits on the same account
// safe: only enough of them to exhaust the balance can succeed.
func (s *LedgerService) DebitCredits(userID string, amount int64, reason string, meta models.JSONMap) error {
	if amount < 0 {
		return models.ErrInvalidState
	}
	if amount == 0 {
		return nil
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.EnsureAccount(tx, userID); err != nil {
			return err
		}
		res := tx.Model(&models.UserAccount{}).
			Where("user_id = ? AND credits >= ?", userID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrInsufficientFunds
		}

		var acct models.UserAccount
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return err
		}
		return tx.Create(&models.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Kind:         models.LedgerKindCredits,
			Amount:       -amount,
			Reason:       reason,
			Metadata:     meta,
			BalanceAfter: acct.Credits,
		}).Error
	})
}

// CreditCredits unconditionally adds credits and logs the mutation. Earned
// credits are announced on the bus so quest subscribers can progress
// economy objectives.
func (s *LedgerService) CreditCredits(userID string, amount int64, reason string, meta models.JSONMap) error {
	if amount <= 0 {
		return nil
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.EnsureAccount(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(&models.UserAccount{}).
			Where("user_id = ?", userID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount)).Error; err != nil {
			return err
		}
		var acct models.UserAccount
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return err
		}
		return tx.Create(&models.LedgerEntry{
			ID:           uuid.NewString(),
			UserID:       userID,
			Kind:         models.LedgerKindCredits,
			Amount:       amount,
			Reason:       reason,
			Metadata:     meta,
			BalanceAfter: acct.Credits,
		}).Error
	})
	if err != nil {
		return err
	}

	if s.Bus != nil {
		s.Bus.Publish(Event{Type: EventCreditsEarned, UserID: userID, Amount: amount})
	}
	return nil
}

// IncrementChallengeWins bumps the per-account win counter.
func (s *LedgerService) IncrementChallengeWins(userID string) error {
	return s.DB.Model(&models.UserAccount{}).
		Where("user_id = ?", userID).
		UpdateColumn("challenge_wins", gorm.Expr("challenge_wins + 1")).Error
}

// Account returns the current account snapshot, creating it on first touch.
func (s *LedgerService) Account(userID string) (*models.UserAccount, error) {
	return s.EnsureAccount(s.DB, userID)
}

// RecentEntries returns the newest ledger entries for a user.
func (s *LedgerService) RecentEntries(userID string, limit int) ([]models.LedgerEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var entries []models.LedgerEntry
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
