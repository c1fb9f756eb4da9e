package services

import (
	"math/rand"
	"testing"

	"quizarena-progression/models"
)

func TestDrawQuestsShape(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		quests := drawQuests(r)
		if len(quests) != 3 {
			t.Fatalf("drew %d quests, want 3", len(quests))
		}

		seen := make(map[models.QuestType]bool)
		for _, q := range quests {
			if seen[q.Type] {
				t.Fatalf("duplicate quest type %s in %+v", q.Type, quests)
			}
			seen[q.Type] = true
			if q.ID == "" || q.Target <= 0 {
				t.Fatalf("malformed quest %+v", q)
			}
			if q.Progress != 0 || q.Completed || q.Claimed {
				t.Fatalf("fresh quest carries progress: %+v", q)
			}
		}

		if !isFromPool(quests[0].Type, coreQuestPool) {
			t.Errorf("slot 0 type %s not from core pool", quests[0].Type)
		}
		if !isFromPool(quests[1].Type, socialQuestPool) {
			t.Errorf("slot 1 type %s not from social pool", quests[1].Type)
		}
	}
}

func isFromPool(t models.QuestType, pool []questTemplate) bool {
	for _, tmpl := range pool {
		if tmpl.Type == t {
			return true
		}
	}
	return false
}

// Two lesson completions complete a target-2 quest; a third is a no-op with
// progress clamped at the target.
func TestApplyQuestEventClampsAtTarget(t *testing.T) {
	quests := models.QuestList{
		{ID: "q1", Type: models.QuestCompleteLessons, Target: 2},
	}
	ev := Event{Type: EventLessonCompleted, UserID: "u1"}

	if !applyQuestEvent(quests, ev) {
		t.Fatal("first event should progress the quest")
	}
	if !applyQuestEvent(quests, ev) {
		t.Fatal("second event should progress the quest")
	}
	if quests[0].Progress != 2 || !quests[0].Completed {
		t.Fatalf("quest = %+v, want progress 2 and completed", quests[0])
	}

	if applyQuestEvent(quests, ev) {
		t.Fatal("third event on a completed quest must be a no-op")
	}
	if quests[0].Progress != 2 {
		t.Fatalf("progress = %d after overflow event, want clamped at 2", quests[0].Progress)
	}
}

func TestApplyQuestEventPerfectQuiz(t *testing.T) {
	quests := models.QuestList{
		{ID: "q1", Type: models.QuestPerfectQuiz, Target: 1},
		{ID: "q2", Type: models.QuestCompleteQuizzes, Target: 2},
	}

	applyQuestEvent(quests, Event{Type: EventQuizCompleted, Score: 7, MaxScore: 10})
	if quests[0].Progress != 0 {
		t.Errorf("imperfect quiz progressed the perfect quest: %+v", quests[0])
	}
	if quests[1].Progress != 1 {
		t.Errorf("quiz completion did not progress the quiz quest: %+v", quests[1])
	}

	applyQuestEvent(quests, Event{Type: EventQuizCompleted, Score: 10, MaxScore: 10})
	if !quests[0].Completed {
		t.Errorf("perfect quiz did not complete the quest: %+v", quests[0])
	}

	// A 0/0 quiz is 0%, not perfect.
	quests[0] = models.Quest{ID: "q1", Type: models.QuestPerfectQuiz, Target: 1}
	applyQuestEvent(quests, Event{Type: EventQuizCompleted, Score: 0, MaxScore: 0})
	if quests[0].Progress != 0 {
		t.Errorf("zero-question quiz counted as perfect: %+v", quests[0])
	}
}

func TestApplyQuestEventChallengeWin(t *testing.T) {
	quests := models.QuestList{
		{ID: "p", Type: models.QuestPlayChallenges, Target: 2},
		{ID: "w", Type: models.QuestWinChallenges, Target: 1},
	}

	applyQuestEvent(quests, Event{Type: EventChallengeCompleted, Won: false})
	if quests[0].Progress != 1 || quests[1].Progress != 0 {
		t.Fatalf("loss: play=%d win=%d, want 1/0", quests[0].Progress, quests[1].Progress)
	}

	applyQuestEvent(quests, Event{Type: EventChallengeCompleted, Won: true})
	if quests[0].Progress != 2 || !quests[1].Completed {
		t.Fatalf("win: play=%+v win=%+v", quests[0], quests[1])
	}
}

func TestApplyQuestEventStreakReset(t *testing.T) {
	quests := models.QuestList{
		{ID: "s", Type: models.QuestAnswerStreak, Target: 5},
	}
	for i := 0; i < 3; i++ {
		applyQuestEvent(quests, Event{Type: EventAnswerStreak})
	}
	if quests[0].Progress != 3 {
		t.Fatalf("progress = %d, want 3", quests[0].Progress)
	}

	if !applyQuestEvent(quests, Event{Type: EventAnswerStreak, IsReset: true}) {
		t.Fatal("reset event should change the quest")
	}
	if quests[0].Progress != 0 {
		t.Fatalf("progress = %d after reset, want 0", quests[0].Progress)
	}
}

func TestApplyQuestEventCreditsAmount(t *testing.T) {
	quests := models.QuestList{
		{ID: "c", Type: models.QuestEarnCredits, Target: 100},
	}
	applyQuestEvent(quests, Event{Type: EventCreditsEarned, Amount: 60})
	applyQuestEvent(quests, Event{Type: EventCreditsEarned, Amount: 75})
	if quests[0].Progress != 100 || !quests[0].Completed {
		t.Fatalf("quest = %+v, want clamped at 100 and completed", quests[0])
	}
}

func TestApplyQuestEventIgnoresUnrelated(t *testing.T) {
	quests := models.QuestList{
		{ID: "l", Type: models.QuestCompleteLessons, Target: 3},
	}
	if applyQuestEvent(quests, Event{Type: EventChallengeCompleted, Won: true}) {
		t.Fatal("unrelated event type must not change the set")
	}
}
