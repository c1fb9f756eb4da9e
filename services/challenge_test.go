package services

import (
	"context"
	"testing"
	"time"

	"quizarena-progression/generator"
	"quizarena-progression/models"
)

func duel(crScore, crTime, cdScore, cdTime int) *models.Challenge {
	crAttempt, cdAttempt := "attempt-cr", "attempt-cd"
	return &models.Challenge{
		ChallengerID:        "challenger",
		ChallengedID:        "challenged",
		ChallengerAttemptID: &crAttempt,
		ChallengerScore:     &crScore,
		ChallengerTimeSec:   &crTime,
		ChallengedAttemptID: &cdAttempt,
		ChallengedScore:     &cdScore,
		ChallengedTimeSec:   &cdTime,
	}
}

func TestDetermineWinnerHigherScore(t *testing.T) {
	if got := determineWinner(duel(9, 200, 7, 60)); got != "challenger" {
		t.Fatalf("winner = %q, want challenger", got)
	}
	if got := determineWinner(duel(3, 30, 8, 300)); got != "challenged" {
		t.Fatalf("winner = %q, want challenged", got)
	}
}

// Equal score: the faster player wins.
func TestDetermineWinnerTieBreakByTime(t *testing.T) {
	if got := determineWinner(duel(8, 120, 8, 90)); got != "challenged" {
		t.Fatalf("winner = %q, want challenged (faster)", got)
	}
	if got := determineWinner(duel(8, 45, 8, 90)); got != "challenger" {
		t.Fatalf("winner = %q, want challenger (faster)", got)
	}
}

// Equal score and equal time leaves no winner and forfeits both escrows.
func TestDetermineWinnerFullTieHasNoWinner(t *testing.T) {
	if got := determineWinner(duel(5, 100, 5, 100)); got != "" {
		t.Fatalf("winner = %q, want none on a full tie", got)
	}
}

func TestDetermineWinnerRequiresBothResults(t *testing.T) {
	c := duel(5, 100, 5, 100)
	c.ChallengedAttemptID = nil
	if got := determineWinner(c); got != "" {
		t.Fatalf("winner = %q before both played, want none", got)
	}
}

type fixedGenerator struct {
	questions []generator.Question
}

func (g fixedGenerator) Generate(_ context.Context, _ generator.Request) ([]generator.Question, error) {
	return g.questions, nil
}

func newTestChallengeService(t *testing.T, gen generator.Generator) (*ChallengeService, *LedgerService) {
	t.Helper()
	db := newTestDB(t)
	bus := NewBus()
	ledger := NewLedgerService(db, bus, nil)
	return NewChallengeService(db, ledger, bus, gen), ledger
}

// Duels must be auto-scorable: subjective items from the generator are
// dropped, only objective questions make it into the shared set.
func TestCreateChallengeObjectiveQuestionsOnly(t *testing.T) {
	svc, _ := newTestChallengeService(t, fixedGenerator{questions: []generator.Question{
		{Type: generator.TypeObjective, Prompt: "q1", Options: []string{"A) x", "B) y"}, CorrectAnswer: "A"},
		{Type: generator.TypeSubjective, Prompt: "essay", SuggestedAnswer: "long form"},
		{Type: generator.TypeObjective, Prompt: "q2", Options: []string{"A) x", "B) y"}, CorrectAnswer: "B"},
	}})

	ch, err := svc.Create(context.Background(), CreateChallengeInput{
		ChallengerID: "alice",
		ChallengedID: "bob",
		CourseID:     "c1",
		Topic:        "go",
		QuizType:     models.ScopeCourse,
		BetAmount:    0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ch.QuestionIDs) != 2 {
		t.Fatalf("question ids = %d, want 2 after dropping the subjective item", len(ch.QuestionIDs))
	}

	var questions []models.Question
	if err := svc.DB.Where("id IN ?", []string(ch.QuestionIDs)).Find(&questions).Error; err != nil {
		t.Fatalf("load questions: %v", err)
	}
	for _, q := range questions {
		if q.Type != models.QuestionTypeObjective {
			t.Fatalf("stored question %s has type %s, want objective", q.ID, q.Type)
		}
	}
}

// An expired pending challenge is refunded exactly once: re-running the sweep
// against the already-terminal row must be a no-op.
func TestSweepExpiredPendingIsIdempotent(t *testing.T) {
	svc, ledger := newTestChallengeService(t, generator.Static{})
	ctx := context.Background()

	if err := ledger.CreditCredits("alice", 50, "seed", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ch, err := svc.Create(ctx, CreateChallengeInput{
		ChallengerID:  "alice",
		ChallengedID:  "bob",
		CourseID:      "c1",
		Topic:         "go",
		QuizType:      models.ScopeCourse,
		BetAmount:     50,
		QuestionCount: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Escrowed: balance is empty until the sweep refunds it.
	acct, _ := ledger.Account("alice")
	if acct.Credits != 0 {
		t.Fatalf("credits = %d after escrow, want 0", acct.Credits)
	}

	if err := svc.DB.Model(&models.Challenge{}).Where("id = ?", ch.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("age challenge: %v", err)
	}

	for run := 0; run < 2; run++ {
		if err := svc.SweepTimeouts(ctx); err != nil {
			t.Fatalf("sweep run %d: %v", run, err)
		}
	}

	got, err := svc.Get(ch.ID, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.ChallengeStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
	acct, _ = ledger.Account("alice")
	if acct.Credits != 50 {
		t.Fatalf("credits = %d after two sweeps, want a single refund of 50", acct.Credits)
	}
}

// Past the completion deadline, the lone player wins the pot by default; a
// second sweep pass must not pay again.
func TestSweepDefaultWinnerAfterDeadline(t *testing.T) {
	svc, ledger := newTestChallengeService(t, generator.Static{})
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		if err := ledger.CreditCredits(user, 50, "seed", nil); err != nil {
			t.Fatalf("seed %s: %v", user, err)
		}
	}

	ch, err := svc.Create(ctx, CreateChallengeInput{
		ChallengerID:  "alice",
		ChallengedID:  "bob",
		CourseID:      "c1",
		Topic:         "go",
		QuizType:      models.ScopeCourse,
		BetAmount:     20,
		QuestionCount: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Accept(ch.ID, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.RecordResult(ch.ID, "alice", "attempt-1", 2, 30); err != nil {
		t.Fatalf("record result: %v", err)
	}

	if err := svc.DB.Model(&models.Challenge{}).Where("id = ?", ch.ID).
		Update("completion_deadline", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("age deadline: %v", err)
	}

	for run := 0; run < 2; run++ {
		if err := svc.SweepTimeouts(ctx); err != nil {
			t.Fatalf("sweep run %d: %v", run, err)
		}
	}

	got, err := svc.Get(ch.ID, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.ChallengeStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.WinnerID == nil || *got.WinnerID != "alice" {
		t.Fatalf("winner = %v, want alice by default", got.WinnerID)
	}

	// 50 seed - 20 escrow + 40 pot, paid once.
	alice, _ := ledger.Account("alice")
	if alice.Credits != 70 {
		t.Fatalf("alice credits = %d, want 70", alice.Credits)
	}
	// 2/2 correct on a 2-question duel: (2*10 + 50) * 2.
	if alice.XP != 140 {
		t.Fatalf("alice xp = %d, want 140", alice.XP)
	}
	if alice.ChallengeWins != 1 {
		t.Fatalf("alice wins = %d, want 1", alice.ChallengeWins)
	}

	bob, _ := ledger.Account("bob")
	if bob.Credits != 30 {
		t.Fatalf("bob credits = %d, want 30 (escrow stays in the pot)", bob.Credits)
	}
}
