package services

import (
	"context"
	"errors"

	"quizarena-progression/models"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:xp"

// LeaderboardService keeps the global XP standings in a Redis sorted set.
// Postgres stays the source of truth; the sorted set is a read-optimized
// mirror updated on every XP credit and reconciled by a background worker.
type LeaderboardService struct {
	client *redis.Client
}

func NewLeaderboardService(client *redis.Client) *LeaderboardService {
	return &LeaderboardService{client: client}
}

// LeaderboardEntry is one row of the standings.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Rank   int64  `json:"rank"`
	XP     int64  `json:"xp"`
}

// RecordXP mirrors an XP credit into the sorted set.
func (s *LeaderboardService) RecordXP(ctx context.Context, userID string, delta int64) error {
	return s.client.ZIncrBy(ctx, leaderboardKey, float64(delta), userID).Err()
}

// Top returns the highest-XP users, best first.
func (s *LeaderboardService) Top(ctx context.Context, n int64) ([]LeaderboardEntry, error) {
	if n < 1 || n > 100 {
		n = 10
	}
	raw, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(raw))
	for i, z := range raw {
		userID, _ := z.Member.(string)
		entries = append(entries, LeaderboardEntry{
			UserID: userID,
			Rank:   int64(i) + 1,
			XP:     int64(z.Score),
		})
	}
	return entries, nil
}

// RankOf returns the 1-based rank and score of a user, or ErrNotFound when
// the user has no standing yet.
func (s *LeaderboardService) RankOf(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	rank, err := s.client.ZRevRank(ctx, leaderboardKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	score, err := s.client.ZScore(ctx, leaderboardKey, userID).Result()
	if err != nil {
		return nil, err
	}
	return &LeaderboardEntry{UserID: userID, Rank: rank + 1, XP: int64(score)}, nil
}

// Rebuild replaces standings for the given accounts in one pipeline. Used by
// the reconciliation worker to heal drift after missed mirrors.
func (s *LeaderboardService) Rebuild(ctx context.Context, accounts []models.UserAccount) error {
	if len(accounts) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(accounts))
	for _, acct := range accounts {
		members = append(members, redis.Z{Member: acct.UserID, Score: float64(acct.XP)})
	}
	return s.client.ZAdd(ctx, leaderboardKey, members...).Err()
}
