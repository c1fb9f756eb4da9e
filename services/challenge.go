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
)

const (
	// DefaultCompletionWindow is how long an accepted challenge stays open
	// before the timeout sweep resolves it.
	DefaultCompletionWindow = 7 * 24 * time.Hour
	// challengeXPPerCorrect and challengePerfectBonus feed the winner XP
	// formula: (correct*10 + 50 if perfect) * 2.
	challengeXPPerCorrect  = 10
	challengePerfectBonus  = 50
	challengeWinMultiplier = 2
)

// ChallengeService runs the two-player wagered duel lifecycle, including the
// escrow of bets, winner determination and the deadline sweep.
type ChallengeService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Bus    *Bus
	Gen    generator.Generator
}

func NewChallengeService(db *gorm.DB, ledger *LedgerService, bus *Bus, gen generator.Generator) *ChallengeService {
	return &ChallengeService{DB: db, Ledger: ledger, Bus: bus, Gen: gen}
}

// CreateChallengeInput describes a new duel.
type CreateChallengeInput struct {
	ChallengerID    string
	ChallengedID    string
	CourseID        string
	Topic           string
	QuizType        models.QuizScope // module or course
	ModuleIndex     *int
	BetAmount       int64
	ExpirationHours int
	QuestionCount   int
}

// Create escrows the challenger's bet, generates the shared question set once
// and inserts the pending challenge. The debit and the insert are separate
// writes; failures after the debit are compensated with a refund rather than
// assuming cross-document atomicity.
func (s *ChallengeService) Create(ctx context.Context, in CreateChallengeInput) (*models.Challenge, error) {
	if in.ChallengerID == in.ChallengedID {
		return nil, models.ErrInvalidState
	}
	if in.BetAmount < 0 {
		return nil, models.ErrInvalidState
	}
	if in.ExpirationHours <= 0 {
		in.ExpirationHours = 24
	}
	if in.QuestionCount <= 0 {
		in.QuestionCount = 10
	}
	if in.QuizType != models.ScopeModule && in.QuizType != models.ScopeCourse {
		return nil, models.ErrInvalidState
	}

	// Escrow first: an unaffordable bet aborts before anything exists.
	if err := s.Ledger.DebitCredits(in.ChallengerID, in.BetAmount, "challenge_escrow", models.JSONMap{
		"challenged_id": in.ChallengedID, "course_id": in.CourseID,
	}); err != nil {
		return nil, err
	}

	challenge, err := s.buildChallenge(ctx, in)
	if err != nil {
		// Compensating refund for the escrowed bet.
		if refundErr := s.Ledger.CreditCredits(in.ChallengerID, in.BetAmount, "challenge_create_failed", nil); refundErr != nil {
			logrus.WithError(refundErr).WithField("user_id", in.ChallengerID).
				Error("escrow refund failed after aborted challenge creation")
		}
		return nil, err
	}
	return challenge, nil
}

func (s *ChallengeService) buildChallenge(ctx context.Context, in CreateChallengeInput) (*models.Challenge, error) {
	generated, err := s.Gen.Generate(ctx, generator.Request{
		Topic: in.Topic, Scope: string(in.QuizType), Count: in.QuestionCount,
		ObjectiveOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}

	// Both players must see identical content: the set is stored once and
	// referenced by id, never regenerated. Duels are auto-scored, so any
	// subjective item the generator produced despite the request is dropped;
	// scores then equal correct-answer counts and a full score is a perfect
	// run.
	questions := make([]models.Question, 0, len(generated))
	ids := make(models.StringList, 0, len(generated))
	for _, q := range generated {
		if q.Type == generator.TypeSubjective {
			continue
		}
		id := uuid.NewString()
		questions = append(questions, models.Question{
			ID:            id,
			CourseID:      in.CourseID,
			Type:          models.QuestionTypeObjective,
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
		ids = append(ids, id)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no objective questions generated", models.ErrGenerationFailed)
	}
	if err := s.DB.Create(&questions).Error; err != nil {
		return nil, err
	}

	challenge := &models.Challenge{
		ID:           uuid.NewString(),
		ChallengerID: in.ChallengerID,
		ChallengedID: in.ChallengedID,
		CourseID:     in.CourseID,
		QuizType:     in.QuizType,
		ModuleIndex:  in.ModuleIndex,
		QuestionIDs:  ids,
		BetAmount:    in.BetAmount,
		Status:       models.ChallengeStatusPending,
		ExpiresAt:    time.Now().Add(time.Duration(in.ExpirationHours) * time.Hour),
	}
	if err := s.DB.Create(challenge).Error; err != nil {
		return nil, err
	}
	return challenge, nil
}

// Get loads a challenge visible to the caller.
func (s *ChallengeService) Get(challengeID, userID string) (*models.Challenge, error) {
	challenge, err := s.load(challengeID)
	if err != nil {
		return nil, err
	}
	if !challenge.IsParticipant(userID) {
		return nil, models.ErrUnauthorized
	}
	return challenge, nil
}

func (s *ChallengeService) load(challengeID string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := s.DB.First(&challenge, "id = ?", challengeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// Accept escrows the challenged party's bet and opens the completion window.
func (s *ChallengeService) Accept(challengeID, callerID string) (*models.Challenge, error) {
	challenge, err := s.load(challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.ChallengedID != callerID {
		return nil, models.ErrUnauthorized
	}
	if challenge.Status != models.ChallengeStatusPending {
		return nil, models.ErrInvalidState
	}
	if time.Now().After(challenge.ExpiresAt) {
		// Past the response deadline; the sweep will expire and refund it.
		return nil, models.ErrInvalidState
	}

	if err := s.Ledger.DebitCredits(callerID, challenge.BetAmount, "challenge_escrow", models.JSONMap{
		"challenge_id": challengeID,
	}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(DefaultCompletionWindow)
	res := s.DB.Model(&models.Challenge{}).
		Where("id = ? AND status = ?", challengeID, models.ChallengeStatusPending).
		Updates(map[string]interface{}{
			"status":              models.ChallengeStatusAccepted,
			"completion_deadline": &deadline,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost a race against reject/expiry; release the just-escrowed bet.
		if refundErr := s.Ledger.CreditCredits(callerID, challenge.BetAmount, "challenge_escrow_refund", nil); refundErr != nil {
			logrus.WithError(refundErr).Error("escrow refund failed after accept race")
		}
		return nil, models.ErrInvalidState
	}
	return s.load(challengeID)
}

// Reject declines a pending challenge and releases the challenger's escrow.
func (s *ChallengeService) Reject(challengeID, callerID string) error {
	challenge, err := s.load(challengeID)
	if err != nil {
		return err
	}
	if challenge.ChallengedID != callerID {
		return models.ErrUnauthorized
	}
	return s.terminatePending(challenge, models.ChallengeStatusRejected, "challenge_rejected")
}

// Cancel lets the challenger withdraw a pending challenge, but only before
// they have played.
func (s *ChallengeService) Cancel(challengeID, callerID string) error {
	challenge, err := s.load(challengeID)
	if err != nil {
		return err
	}
	if challenge.ChallengerID != callerID {
		return models.ErrUnauthorized
	}
	if challenge.ChallengerPlayed() {
		return models.ErrInvalidState
	}
	return s.terminatePending(challenge, models.ChallengeStatusRejected, "challenge_cancelled")
}

// terminatePending flips pending to a terminal status and refunds the
// challenger's escrow. The status guard makes double refunds impossible.
func (s *ChallengeService) terminatePending(challenge *models.Challenge, status models.ChallengeStatus, reason string) error {
	if challenge.Status != models.ChallengeStatusPending {
		return models.ErrInvalidState
	}
	res := s.DB.Model(&models.Challenge{}).
		Where("id = ? AND status = ?", challenge.ID, models.ChallengeStatusPending).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrInvalidState
	}
	return s.Ledger.CreditCredits(challenge.ChallengerID, challenge.BetAmount, reason, models.JSONMap{
		"challenge_id": challenge.ID,
	})
}

// RecordResult writes the caller's score into their slot exactly once. The
// challenger may play while the duel is still pending; the challenged party
// only after accepting. When both slots are filled the duel resolves.
func (s *ChallengeService) RecordResult(challengeID, callerID, attemptID string, score, timeTakenSec int) (*models.Challenge, error) {
	challenge, err := s.load(challengeID)
	if err != nil {
		return nil, err
	}
	if !challenge.IsParticipant(callerID) {
		return nil, models.ErrUnauthorized
	}

	isChallenger := callerID == challenge.ChallengerID
	switch challenge.Status {
	case models.ChallengeStatusPending:
		if !isChallenger {
			return nil, models.ErrInvalidState
		}
	case models.ChallengeStatusAccepted:
	default:
		return nil, models.ErrInvalidState
	}

	slot := "challenged"
	if isChallenger {
		slot = "challenger"
	}
	res := s.DB.Model(&models.Challenge{}).
		Where(fmt.Sprintf("id = ? AND %s_attempt_id IS NULL AND status IN ?", slot),
			challengeID, []models.ChallengeStatus{models.ChallengeStatusPending, models.ChallengeStatusAccepted}).
		Updates(map[string]interface{}{
			slot + "_attempt_id": attemptID,
			slot + "_score":      score,
			slot + "_time_sec":   timeTakenSec,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrAlreadyPlayed
	}

	challenge, err = s.load(challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.ChallengerPlayed() && challenge.ChallengedPlayed() {
		if err := s.finalize(challenge); err != nil {
			return nil, err
		}
		challenge, err = s.load(challengeID)
		if err != nil {
			return nil, err
		}
	}
	return challenge, nil
}

// determineWinner applies the duel rule: higher score wins, equal score is
// broken by lower completion time, a full tie has no winner. Returns the
// winning user id or "".
func determineWinner(c *models.Challenge) string {
	if !c.ChallengerPlayed() || !c.ChallengedPlayed() {
		return ""
	}
	crScore, cdScore := *c.ChallengerScore, *c.ChallengedScore
	if crScore != cdScore {
		if crScore > cdScore {
			return c.ChallengerID
		}
		return c.ChallengedID
	}
	crTime, cdTime := *c.ChallengerTimeSec, *c.ChallengedTimeSec
	if crTime != cdTime {
		if crTime < cdTime {
			return c.ChallengerID
		}
		return c.ChallengedID
	}
	// Full tie: no winner, both escrows are forfeited.
	return ""
}

// finalize resolves a duel where both parties played: flips accepted (or
// pending, which cannot happen with a filled challenged slot) to completed
// under a status guard, then pays the pot and XP.
func (s *ChallengeService) finalize(challenge *models.Challenge) error {
	winnerID := determineWinner(challenge)

	updates := map[string]interface{}{"status": models.ChallengeStatusCompleted}
	if winnerID != "" {
		updates["winner_id"] = winnerID
	}
	res := s.DB.Model(&models.Challenge{}).
		Where("id = ? AND status = ?", challenge.ID, models.ChallengeStatusAccepted).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent finalize or the sweep won; nothing left to do.
		return nil
	}

	if winnerID != "" {
		winnerScore := 0
		if winnerID == challenge.ChallengerID && challenge.ChallengerScore != nil {
			winnerScore = *challenge.ChallengerScore
		} else if winnerID == challenge.ChallengedID && challenge.ChallengedScore != nil {
			winnerScore = *challenge.ChallengedScore
		}
		if err := s.payout(challenge, winnerID, winnerScore); err != nil {
			return err
		}
	} else {
		logrus.WithField("challenge_id", challenge.ID).
			Warn("challenge ended in a full tie; pot forfeited")
	}

	s.publishCompletion(challenge, winnerID)
	return nil
}

// payout awards the full pot and the doubled XP to the winner.
func (s *ChallengeService) payout(challenge *models.Challenge, winnerID string, winnerScore int) error {
	pot := challenge.BetAmount * 2
	if pot > 0 {
		if err := s.Ledger.CreditCredits(winnerID, pot, "challenge_won", models.JSONMap{
			"challenge_id": challenge.ID,
		}); err != nil {
			return err
		}
	}

	xp := int64(winnerScore * challengeXPPerCorrect)
	if winnerScore == len(challenge.QuestionIDs) && winnerScore > 0 {
		xp += challengePerfectBonus
	}
	xp *= challengeWinMultiplier
	if xp > 0 {
		if _, err := s.Ledger.CreditXP(winnerID, xp, "challenge_won", models.JSONMap{
			"challenge_id": challenge.ID,
		}); err != nil {
			return err
		}
	}
	return s.Ledger.IncrementChallengeWins(winnerID)
}

func (s *ChallengeService) publishCompletion(challenge *models.Challenge, winnerID string) {
	for _, userID := range []string{challenge.ChallengerID, challenge.ChallengedID} {
		s.Bus.Publish(Event{
			Type:     EventChallengeCompleted,
			UserID:   userID,
			CourseID: challenge.CourseID,
			Won:      userID == winnerID && winnerID != "",
		})
	}
}

// ListFor returns the user's challenges, newest first.
func (s *ChallengeService) ListFor(userID string, limit int) ([]models.Challenge, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var challenges []models.Challenge
	err := s.DB.Where("challenger_id = ? OR challenged_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&challenges).Error
	return challenges, err
}

// SweepTimeouts resolves overdue rows. It is idempotent: every transition is
// guarded by a conditional status update, so re-running after a crash (or
// concurrently with live mutations) never double-refunds or double-pays.
// Per-row failures are logged and retried on the next scheduled run.
func (s *ChallengeService) SweepTimeouts(ctx context.Context) error {
	now := time.Now()

	var pending []models.Challenge
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.ChallengeStatusPending, now).
		Find(&pending).Error; err != nil {
		return err
	}
	for i := range pending {
		if err := s.expirePending(&pending[i]); err != nil {
			logrus.WithError(err).WithField("challenge_id", pending[i].ID).Error("sweep: expire pending failed")
		}
	}

	var overdue []models.Challenge
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND completion_deadline < ?", models.ChallengeStatusAccepted, now).
		Find(&overdue).Error; err != nil {
		return err
	}
	for i := range overdue {
		if err := s.resolveOverdue(&overdue[i]); err != nil {
			logrus.WithError(err).WithField("challenge_id", overdue[i].ID).Error("sweep: resolve overdue failed")
		}
	}
	return nil
}

// expirePending marks an unanswered challenge expired and refunds the
// challenger's escrow.
func (s *ChallengeService) expirePending(challenge *models.Challenge) error {
	res := s.DB.Model(&models.Challenge{}).
		Where("id = ? AND status = ?", challenge.ID, models.ChallengeStatusPending).
		Update("status", models.ChallengeStatusExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // already handled
	}
	return s.Ledger.CreditCredits(challenge.ChallengerID, challenge.BetAmount, "challenge_expired", models.JSONMap{
		"challenge_id": challenge.ID,
	})
}

// resolveOverdue settles an accepted challenge whose completion window has
// passed: a lone player wins the pot by default, an untouched duel refunds
// both escrows.
func (s *ChallengeService) resolveOverdue(challenge *models.Challenge) error {
	challengerPlayed := challenge.ChallengerPlayed()
	challengedPlayed := challenge.ChallengedPlayed()

	switch {
	case challengerPlayed != challengedPlayed:
		winnerID := challenge.ChallengerID
		winnerScore := 0
		if challengedPlayed {
			winnerID = challenge.ChallengedID
			winnerScore = *challenge.ChallengedScore
		} else if challenge.ChallengerScore != nil {
			winnerScore = *challenge.ChallengerScore
		}

		res := s.DB.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challenge.ID, models.ChallengeStatusAccepted).
			Updates(map[string]interface{}{
				"status":    models.ChallengeStatusCompleted,
				"winner_id": winnerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := s.payout(challenge, winnerID, winnerScore); err != nil {
			return err
		}
		s.publishCompletion(challenge, winnerID)
		return nil

	case !challengerPlayed && !challengedPlayed:
		res := s.DB.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challenge.ID, models.ChallengeStatusAccepted).
			Update("status", models.ChallengeStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		for _, userID := range []string{challenge.ChallengerID, challenge.ChallengedID} {
			if err := s.Ledger.CreditCredits(userID, challenge.BetAmount, "challenge_expired", models.JSONMap{
				"challenge_id": challenge.ID,
			}); err != nil {
				return err
			}
		}
		return nil

	default:
		// Both played but the live path did not finalize (crash between the
		// slot write and finalize). Finish the job here.
		return s.finalize(challenge)
	}
}
