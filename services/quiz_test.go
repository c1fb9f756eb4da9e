package services

import (
	"context"
	"testing"

	"quizarena-progression/generator"
	"quizarena-progression/models"
)

func objective(id, correct string) models.Question {
	return models.Question{
		ID:            id,
		Type:          models.QuestionTypeObjective,
		CorrectAnswer: correct,
	}
}

func subjective(id string) models.Question {
	return models.Question{ID: id, Type: models.QuestionTypeSubjective}
}

func TestScoreAttemptObjective(t *testing.T) {
	questions := []models.Question{
		objective("q1", "A"),
		objective("q2", "B"),
		objective("q3", "C"),
	}
	answers := models.AnswerMap{"q1": "A", "q2": "D"} // q3 unanswered

	scores, total, max := scoreAttempt(questions, answers, nil)

	if total != 1 || max != 3 {
		t.Fatalf("total=%d max=%d, want 1/3", total, max)
	}
	if !scores["q1"].Correct || scores["q1"].Marks != 1 {
		t.Errorf("q1 = %+v, want correct with 1 mark", scores["q1"])
	}
	if scores["q2"].Correct || scores["q3"].Correct {
		t.Errorf("wrong/blank answers marked correct: q2=%+v q3=%+v", scores["q2"], scores["q3"])
	}
}

func TestScoreAttemptSubjectiveClamped(t *testing.T) {
	questions := []models.Question{subjective("s1"), subjective("s2"), subjective("s3")}
	marks := map[string]int{"s1": 9, "s2": -2, "s3": 3}

	scores, total, max := scoreAttempt(questions, nil, marks)

	if max != 12 {
		t.Fatalf("max = %d, want 12", max)
	}
	if scores["s1"].Marks != 4 {
		t.Errorf("s1 marks = %d, want clamped to 4", scores["s1"].Marks)
	}
	if scores["s2"].Marks != 0 || scores["s2"].Correct {
		t.Errorf("s2 = %+v, want 0 marks, not correct", scores["s2"])
	}
	if !scores["s3"].Correct {
		t.Errorf("s3 with 3/4 marks should count as correct")
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

// A zero-question attempt scores 0%, never a division by zero.
func TestScorePercentZeroQuestions(t *testing.T) {
	if got := models.ScorePercent(0, 0); got != 0 {
		t.Fatalf("ScorePercent(0,0) = %d, want 0", got)
	}
	if got := models.ScorePercent(3, 0); got != 0 {
		t.Fatalf("ScorePercent(3,0) = %d, want 0", got)
	}
}

func TestScorePercent(t *testing.T) {
	cases := []struct{ total, max, want int }{
		{8, 10, 80},
		{10, 10, 100},
		{0, 10, 0},
		{1, 3, 33},
	}
	for _, c := range cases {
		if got := models.ScorePercent(c.total, c.max); got != c.want {
			t.Errorf("ScorePercent(%d,%d) = %d, want %d", c.total, c.max, got, c.want)
		}
	}
}

func newTestQuizService(t *testing.T) (*QuizService, *LedgerService) {
	t.Helper()
	db := newTestDB(t)
	bus := NewBus()
	ledger := NewLedgerService(db, bus, nil)
	rewards := NewRewardService(db, ledger, bus)
	return NewQuizService(db, ledger, rewards, bus, generator.Static{}), ledger
}

func allCorrectAnswers(ids models.StringList) models.AnswerMap {
	answers := models.AnswerMap{}
	for _, id := range ids {
		answers[id] = "A"
	}
	return answers
}

// A retake reuses the first attempt's stored question set, so the per-question
// grants keep blocking first-correct XP and the perfect bonus stays one-shot.
// Replaying the same quiz forever must not earn a single extra XP.
func TestRetakeReusesQuestionsAndAwardsNoXP(t *testing.T) {
	svc, ledger := newTestQuizService(t)
	ctx := context.Background()
	in := StartAttemptInput{
		UserID:   "u1",
		CourseID: "c1",
		Topic:    "go",
		Scope:    models.ScopeCourse,
		Count:    3,
	}

	first, err := svc.StartAttempt(ctx, in)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	res1, err := svc.Complete(ctx, first.ID, "u1", allCorrectAnswers(first.QuestionIDs), nil)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if want := int64(3*XPPerFirstCorrect + PerfectBonusXP); res1.XPAwarded != want {
		t.Fatalf("first XPAwarded = %d, want %d", res1.XPAwarded, want)
	}
	if !res1.PerfectScore {
		t.Fatal("all-correct run not flagged perfect")
	}

	acct, err := ledger.Account("u1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	xpAfterFirst := acct.XP

	second, err := svc.StartAttempt(ctx, in)
	if err != nil {
		t.Fatalf("retake start: %v", err)
	}
	if !second.IsRetake {
		t.Fatal("second attempt not marked as a retake")
	}
	if len(second.QuestionIDs) != len(first.QuestionIDs) {
		t.Fatalf("retake has %d questions, want the original %d", len(second.QuestionIDs), len(first.QuestionIDs))
	}
	for i, id := range first.QuestionIDs {
		if second.QuestionIDs[i] != id {
			t.Fatalf("retake question[%d] = %s, want the original %s", i, second.QuestionIDs[i], id)
		}
	}

	res2, err := svc.Complete(ctx, second.ID, "u1", allCorrectAnswers(second.QuestionIDs), nil)
	if err != nil {
		t.Fatalf("retake complete: %v", err)
	}
	if res2.XPAwarded != 0 {
		t.Fatalf("retake XPAwarded = %d, want 0", res2.XPAwarded)
	}
	if len(res2.TierRewards) != 0 {
		t.Fatalf("retake claimed %d tier rewards, want none", len(res2.TierRewards))
	}

	acct, err = ledger.Account("u1")
	if err != nil {
		t.Fatalf("account after retake: %v", err)
	}
	if acct.XP != xpAfterFirst {
		t.Fatalf("XP moved from %d to %d across a retake, want unchanged", xpAfterFirst, acct.XP)
	}
}

// Questions preserves the requested id order and matches the stored set.
func TestQuestionsKeepRequestOrder(t *testing.T) {
	svc, _ := newTestQuizService(t)

	attempt, err := svc.StartAttempt(context.Background(), StartAttemptInput{
		UserID:   "u1",
		CourseID: "c1",
		Topic:    "go",
		Scope:    models.ScopeCourse,
		Count:    3,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	reversed := make([]string, len(attempt.QuestionIDs))
	for i, id := range attempt.QuestionIDs {
		reversed[len(reversed)-1-i] = id
	}
	questions, err := svc.Questions(reversed)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != len(reversed) {
		t.Fatalf("got %d questions, want %d", len(questions), len(reversed))
	}
	for i, q := range questions {
		if q.ID != reversed[i] {
			t.Fatalf("question[%d] = %s, want %s", i, q.ID, reversed[i])
		}
	}
}

func TestScopeKey(t *testing.T) {
	two, five := 2, 5
	cases := []struct {
		scope  models.QuizScope
		mod    *int
		lesson *int
		want   string
	}{
		{models.ScopeCourse, nil, nil, "course"},
		{models.ScopeModule, &two, nil, "module:2"},
		{models.ScopeLesson, &two, &five, "lesson:2:5"},
	}
	for _, c := range cases {
		if got := scopeKey(c.scope, c.mod, c.lesson); got != c.want {
			t.Errorf("scopeKey(%s) = %q, want %q", c.scope, got, c.want)
		}
	}
}
