package workers

import (
	"context"
	"time"

	"quizarena-progression/models"
	"quizarena-progression/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const leaderboardSyncPageSize = 500

// LeaderboardSyncer periodically rebuilds the redis XP leaderboard from the
// account table. Live XP credits already increment the sorted set; the
// rebuild heals drift from missed increments or a flushed redis.
type LeaderboardSyncer struct {
	DB    *gorm.DB
	Board *services.LeaderboardService
}

func NewLeaderboardSyncer(db *gorm.DB, board *services.LeaderboardService) *LeaderboardSyncer {
	return &LeaderboardSyncer{DB: db, Board: board}
}

// SyncOnce pages through user accounts and pushes scores into redis.
func (s *LeaderboardSyncer) SyncOnce(ctx context.Context) (int, error) {
	total := 0
	lastID := ""

	for {
		var accounts []models.UserAccount
		q := s.DB.Order("user_id asc").Limit(leaderboardSyncPageSize)
		if lastID != "" {
			q = q.Where("user_id > ?", lastID)
		}
		if err := q.Find(&accounts).Error; err != nil {
			return total, err
		}
		if len(accounts) == 0 {
			return total, nil
		}

		if err := s.Board.Rebuild(ctx, accounts); err != nil {
			return total, err
		}
		total += len(accounts)
		lastID = accounts[len(accounts)-1].UserID
	}
}

// Poll runs SyncOnce on a ticker until the context is cancelled. Failures are
// logged and retried on the next tick.
func (s *LeaderboardSyncer) Poll(ctx context.Context, interval time.Duration) {
	logrus.WithField("interval", interval).Info("starting leaderboard sync poller")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("leaderboard sync poller stopped")
			return
		case <-ticker.C:
			synced, err := s.SyncOnce(ctx)
			if err != nil {
				logrus.WithError(err).Error("leaderboard sync failed")
				continue
			}
			logrus.WithField("accounts", synced).Debug("leaderboard rebuilt")
		}
	}
}
