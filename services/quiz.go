package services

import (
	"context"
	"fmt"
	"time"

	"quizarena-progression/generator"
	"quizarena-progression/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// XPPerFirstCorrect is granted the first time ever a user answers a
	// question correctly, tracked via QuestionGrant rows.
	XPPerFirstCorrect = 10
	// PerfectBonusXP is granted once for a non-retake full score.
	PerfectBonusXP = 50
)

// QuizService drives the attempt lifecycle: create, partial saves, completion
// with scoring and reward dispatch, and abandonment.
type QuizService struct {
	DB      *gorm.DB
	Ledger  *LedgerService
	Rewards *RewardService
	Bus     *Bus
	Gen     generator.Generator
}

func NewQuizService(db *gorm.DB, ledger *LedgerService, rewards *RewardService, bus *Bus, gen generator.Generator) *QuizService {
	return &QuizService{DB: db, Ledger: ledger, Rewards: rewards, Bus: bus, Gen: gen}
}

// StartAttemptInput is the creation request for a quiz attempt.
type StartAttemptInput struct {
	UserID      string
	CourseID    string
	Topic       string
	Scope       models.QuizScope
	ModuleIndex *int
	LessonIndex *int
	Count       int
	IsRetake    bool
}

// StartAttempt creates a new in-progress attempt. Only one attempt may be in
// progress per (user, course, scope, sub-index). A key that already has a
// terminal attempt is a retake and reuses that attempt's stored question set;
// generation only runs for a first attempt, before the insert, so the attempt
// always references stored question ids.
func (s *QuizService) StartAttempt(ctx context.Context, in StartAttemptInput) (*models.QuizAttempt, error) {
	if in.Count <= 0 {
		in.Count = 5
	}

	existing, err := s.findInProgress(in)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrAttemptInProgress
	}

	// Retakes must keep the prior attempt's question ids: the per-question
	// XP grants are keyed to those ids, and fresh ids every run would let
	// retakes farm first-correct XP forever.
	var questionIDs models.StringList
	prior, err := s.lastTerminalAttempt(in)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		questionIDs = prior.QuestionIDs
		if !prior.Abandoned {
			in.IsRetake = true
		}
	} else {
		questionIDs, err = s.generateQuestions(ctx, in.CourseID, in.Topic, in.Scope, in.Count)
		if err != nil {
			return nil, err
		}
	}

	attempt := &models.QuizAttempt{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		CourseID:    in.CourseID,
		Scope:       in.Scope,
		ModuleIndex: in.ModuleIndex,
		LessonIndex: in.LessonIndex,
		QuestionIDs: questionIDs,
		Answers:     models.AnswerMap{},
		IsRetake:    in.IsRetake,
	}
	if err := s.DB.Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *QuizService) findInProgress(in StartAttemptInput) (*models.QuizAttempt, error) {
	query := attemptKeyFilter(s.DB.Where(
		"user_id = ? AND course_id = ? AND scope = ? AND completed_at IS NULL AND abandoned = ?",
		in.UserID, in.CourseID, in.Scope, false,
	), in)

	var attempt models.QuizAttempt
	err := query.First(&attempt).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// lastTerminalAttempt returns the newest completed or abandoned attempt for
// the same key, or nil when this is the first attempt.
func (s *QuizService) lastTerminalAttempt(in StartAttemptInput) (*models.QuizAttempt, error) {
	query := attemptKeyFilter(s.DB.Where(
		"user_id = ? AND course_id = ? AND scope = ? AND completed_at IS NOT NULL",
		in.UserID, in.CourseID, in.Scope,
	), in)

	var attempt models.QuizAttempt
	err := query.Order("completed_at DESC").First(&attempt).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func attemptKeyFilter(query *gorm.DB, in StartAttemptInput) *gorm.DB {
	if in.ModuleIndex != nil {
		query = query.Where("module_index = ?", *in.ModuleIndex)
	} else {
		query = query.Where("module_index IS NULL")
	}
	if in.LessonIndex != nil {
		query = query.Where("lesson_index = ?", *in.LessonIndex)
	} else {
		query = query.Where("lesson_index IS NULL")
	}
	return query
}

// generateQuestions calls the collaborator outside any transaction, persists
// the result once and returns the stored ids in order.
func (s *QuizService) generateQuestions(ctx context.Context, courseID, topic string, scope models.QuizScope, count int) (models.StringList, error) {
	generated, err := s.Gen.Generate(ctx, generator.Request{Topic: topic, Scope: string(scope), Count: count})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	questions := make([]models.Question, 0, len(generated))
	ids := make(models.StringList, 0, len(generated))
	for _, q := range generated {
		qType := models.QuestionTypeObjective
		if q.Type == generator.TypeSubjective {
			qType = models.QuestionTypeSubjective
		}
		id := uuid.NewString()
		questions = append(questions, models.Question{
			ID:              id,
			CourseID:        courseID,
			Type:            qType,
			Prompt:          q.Prompt,
			Options:         q.Options,
			CorrectAnswer:   q.CorrectAnswer,
			SuggestedAnswer: q.SuggestedAnswer,
		})
		ids = append(ids, id)
	}
	if err := s.DB.Create(&questions).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Attempt loads an attempt and checks ownership.
func (s *QuizService) Attempt(attemptID, userID string) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := s.DB.First(&attempt, "id = ?", attemptID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, models.ErrUnauthorized
	}
	return &attempt, nil
}

// SaveProgress overwrites the answers map and resume cursor. Legal only while
// in progress; no scoring side effects, safe to call frequently.
func (s *QuizService) SaveProgress(attemptID, userID string, answers models.AnswerMap, cursor int) error {
	attempt, err := s.Attempt(attemptID, userID)
	if err != nil {
		return err
	}
	if !attempt.InProgress() {
		return models.ErrInvalidState
	}
	if cursor < 0 {
		cursor = 0
	}
	res := s.DB.Model(&models.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL AND abandoned = ?", attemptID, false).
		Updates(map[string]interface{}{
			"answers":                answers,
			"current_question_index": cursor,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// CompleteResult is the outcome of submitting an attempt.
type CompleteResult struct {
	Attempt      *models.QuizAttempt `json:"attempt"`
	Percent      int                 `json:"percent"`
	XPAwarded    int64               `json:"xp_awarded"`
	TierRewards  []ClaimResult       `json:"tier_rewards,omitempty"`
	PerfectScore bool                `json:"perfect_score"`
}

// Complete transitions the attempt to its terminal Completed state: scores
// the answers, grants first-correct XP, pays the perfect bonus for
// non-retakes and dispatches tier rewards, then announces the completion on
// the bus regardless of reward outcome.
func (s *QuizService) Complete(ctx context.Context, attemptID, userID string, finalAnswers models.AnswerMap, subjectiveMarks map[string]int) (*CompleteResult, error) {
	attempt, err := s.Attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	if !attempt.InProgress() {
		return nil, models.ErrInvalidState
	}

	questions, err := s.questionsByID(attempt.QuestionIDs)
	if err != nil {
		return nil, err
	}

	scores, total, max := scoreAttempt(questions, finalAnswers, subjectiveMarks)
	now := time.Now()

	// The conditional update is the terminal transition: a concurrent submit
	// or abandon loses the race and sees zero rows.
	res := s.DB.Model(&models.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL AND abandoned = ?", attemptID, false).
		Updates(map[string]interface{}{
			"answers":      finalAnswers,
			"scores":       scores,
			"total_score":  total,
			"max_score":    max,
			"completed_at": &now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrInvalidState
	}

	attempt.Answers = finalAnswers
	attempt.Scores = scores
	attempt.TotalScore = total
	attempt.MaxScore = max
	attempt.CompletedAt = &now

	var xpAwarded int64

	firstCorrect, err := s.grantFirstCorrect(userID, questions, scores)
	if err != nil {
		return nil, err
	}
	xpAwarded += int64(firstCorrect) * XPPerFirstCorrect

	perfect := max > 0 && total == max
	if perfect && !attempt.IsRetake {
		xpAwarded += PerfectBonusXP
	}
	if xpAwarded > 0 {
		if _, err := s.Ledger.CreditXP(userID, xpAwarded, "quiz_completed", models.JSONMap{
			"attempt_id": attemptID, "course_id": attempt.CourseID, "scope": string(attempt.Scope),
		}); err != nil {
			return nil, err
		}
	}

	percent := models.ScorePercent(total, max)

	tierRewards, err := s.Rewards.ClaimEligible(userID, attempt.CourseID, attempt.Scope, scopeKey(attempt.Scope, attempt.ModuleIndex, attempt.LessonIndex), percent)
	if err != nil {
		// Reward dispatch must not undo the completed attempt; surface in logs.
		logrus.WithError(err).WithField("attempt_id", attemptID).Error("tier reward dispatch failed")
	}

	s.Bus.Publish(Event{
		Type:        EventQuizCompleted,
		UserID:      userID,
		CourseID:    attempt.CourseID,
		Scope:       attempt.Scope,
		ModuleIndex: attempt.ModuleIndex,
		Score:       total,
		MaxScore:    max,
	})
	s.publishStreakEvents(userID, questions, scores)

	return &CompleteResult{
		Attempt:      attempt,
		Percent:      percent,
		XPAwarded:    xpAwarded,
		TierRewards:  tierRewards,
		PerfectScore: perfect,
	}, nil
}

// Abandon forces the attempt into its terminal state with a zero score. Used
// when a user forfeits to start a different quiz.
func (s *QuizService) Abandon(attemptID, userID string) error {
	attempt, err := s.Attempt(attemptID, userID)
	if err != nil {
		return err
	}
	if !attempt.InProgress() {
		return models.ErrInvalidState
	}
	now := time.Now()
	res := s.DB.Model(&models.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL AND abandoned = ?", attemptID, false).
		Updates(map[string]interface{}{
			"abandoned":    true,
			"total_score":  0,
			"completed_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// Questions returns stored questions in the requested order. The grading
// fields carry `json:"-"`, so the result is safe to hand to clients playing
// an attempt.
func (s *QuizService) Questions(ids []string) ([]models.Question, error) {
	return s.questionsByID(models.StringList(ids))
}

func (s *QuizService) questionsByID(ids models.StringList) ([]models.Question, error) {
	var questions []models.Question
	if err := s.DB.Where("id IN ?", []string(ids)).Find(&questions).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

// publishStreakEvents replays the attempt's answers in question order for
// streak quests: one event per correct answer, a reset when a wrong answer
// breaks the run.
func (s *QuizService) publishStreakEvents(userID string, questions []models.Question, scores models.ScoreMap) {
	for _, q := range questions {
		if scores[q.ID].Correct {
			s.Bus.Publish(Event{Type: EventAnswerStreak, UserID: userID})
		} else {
			s.Bus.Publish(Event{Type: EventAnswerStreak, UserID: userID, IsReset: true})
		}
	}
}

// grantFirstCorrect writes a QuestionGrant per newly correct question via
// create-if-absent and returns how many were first-time grants.
func (s *QuizService) grantFirstCorrect(userID string, questions []models.Question, scores models.ScoreMap) (int, error) {
	granted := 0
	for _, q := range questions {
		sc, ok := scores[q.ID]
		if !ok || !sc.Correct {
			continue
		}
		res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.QuestionGrant{UserID: userID, QuestionID: q.ID})
		if res.Error != nil {
			return granted, res.Error
		}
		if res.RowsAffected > 0 {
			granted++
		}
	}
	return granted, nil
}

// scoreAttempt computes per-question scores plus totals. Objective questions
// are worth 1 mark when the stored correct answer matches; subjective marks
// come from the external grading result, clamped to the question ceiling. A
// subjective question counts as correct with more than half its marks.
func scoreAttempt(questions []models.Question, answers models.AnswerMap, subjectiveMarks map[string]int) (models.ScoreMap, int, int) {
	scores := make(models.ScoreMap, len(questions))
	total, max := 0, 0
	for _, q := range questions {
		max += q.MaxMarks()
		switch q.Type {
		case models.QuestionTypeSubjective:
			marks := subjectiveMarks[q.ID]
			if marks < 0 {
				marks = 0
			}
			if marks > models.MaxSubjectiveMarks {
				marks = models.MaxSubjectiveMarks
			}
			scores[q.ID] = models.QuestionScore{
				Correct: marks*2 > models.MaxSubjectiveMarks,
				Marks:   marks,
			}
			total += marks
		default:
			correct := answers[q.ID] != "" && answers[q.ID] == q.CorrectAnswer
			marks := 0
			if correct {
				marks = 1
			}
			scores[q.ID] = models.QuestionScore{Correct: correct, Marks: marks}
			total += marks
		}
	}
	return scores, total, max
}

// scopeKey builds the reward scope key for an attempt's sub-index.
func scopeKey(scope models.QuizScope, moduleIndex, lessonIndex *int) string {
	switch scope {
	case models.ScopeLesson:
		m, l := 0, 0
		if moduleIndex != nil {
			m = *moduleIndex
		}
		if lessonIndex != nil {
			l = *lessonIndex
		}
		return fmt.Sprintf("lesson:%d:%d", m, l)
	case models.ScopeModule:
		m := 0
		if moduleIndex != nil {
			m = *moduleIndex
		}
		return fmt.Sprintf("module:%d", m)
	default:
		return "course"
	}
}
