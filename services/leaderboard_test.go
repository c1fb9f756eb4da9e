package services

import (
	"context"
	"errors"
	"testing"

	"quizarena-progression/models"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLeaderboard(t *testing.T) *LeaderboardService {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewLeaderboardService(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestLeaderboardRecordAndTop(t *testing.T) {
	board := newTestLeaderboard(t)
	ctx := context.Background()

	for _, award := range []struct {
		user string
		xp   int64
	}{
		{"alice", 100},
		{"bob", 250},
		{"alice", 50},
		{"cara", 10},
	} {
		if err := board.RecordXP(ctx, award.user, award.xp); err != nil {
			t.Fatalf("record xp: %v", err)
		}
	}

	top, err := board.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].UserID != "bob" || top[0].XP != 250 || top[0].Rank != 1 {
		t.Errorf("top[0] = %+v, want bob/250/rank 1", top[0])
	}
	if top[1].UserID != "alice" || top[1].XP != 150 {
		t.Errorf("top[1] = %+v, want alice/150", top[1])
	}
}

func TestLeaderboardRankOf(t *testing.T) {
	board := newTestLeaderboard(t)
	ctx := context.Background()

	_ = board.RecordXP(ctx, "alice", 100)
	_ = board.RecordXP(ctx, "bob", 300)

	entry, err := board.RankOf(ctx, "alice")
	if err != nil {
		t.Fatalf("rank of alice: %v", err)
	}
	if entry.Rank != 2 || entry.XP != 100 {
		t.Errorf("alice = %+v, want rank 2, xp 100", entry)
	}

	if _, err := board.RankOf(ctx, "nobody"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestLeaderboardRebuildOverwrites(t *testing.T) {
	board := newTestLeaderboard(t)
	ctx := context.Background()

	_ = board.RecordXP(ctx, "alice", 999) // drifted value

	err := board.Rebuild(ctx, []models.UserAccount{
		{UserID: "alice", XP: 120},
		{UserID: "bob", XP: 80},
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	entry, err := board.RankOf(ctx, "alice")
	if err != nil {
		t.Fatalf("rank of alice: %v", err)
	}
	if entry.XP != 120 {
		t.Errorf("alice xp = %d after rebuild, want 120", entry.XP)
	}
}
