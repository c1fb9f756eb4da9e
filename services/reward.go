package services

import (
	"errors"

	"quizarena-progression/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardTierSpec is one score-percentage threshold with its base payout.
// Payouts scale by the course difficulty multiplier at claim time.
type RewardTierSpec struct {
	Threshold int   `json:"threshold"`
	XP        int64 `json:"xp"`
	Credits   int64 `json:"credits"`
}

// RewardTiers is the fixed ordered tier set. Tiers are evaluated
// independently and cumulatively: clearing 100% makes all lower tiers
// claimable too.
var RewardTiers = []RewardTierSpec{
	{Threshold: 50, XP: 50, Credits: 25},
	{Threshold: 70, XP: 75, Credits: 40},
	{Threshold: 90, XP: 100, Credits: 60},
	{Threshold: 100, XP: 150, Credits: 100},
}

func tierSpec(tier int) (RewardTierSpec, bool) {
	for _, spec := range RewardTiers {
		if spec.Threshold == tier {
			return spec, true
		}
	}
	return RewardTierSpec{}, false
}

// ClaimResult reports whether a tier paid out and how much.
type ClaimResult struct {
	Claimed        bool  `json:"claimed"`
	Tier           int   `json:"tier"`
	XPAwarded      int64 `json:"xp_awarded"`
	CreditsAwarded int64 `json:"credits_awarded"`
}

// RewardService issues percentage-threshold rewards at most once per
// (user, course, scope, scopeKey, tier).
type RewardService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Bus    *Bus
}

func NewRewardService(db *gorm.DB, ledger *LedgerService, bus *Bus) *RewardService {
	return &RewardService{DB: db, Ledger: ledger, Bus: bus}
}

func (s *RewardService) difficultyMultiplier(courseID string) float64 {
	var course models.Course
	if err := s.DB.First(&course, "id = ?", courseID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Warn("course lookup failed, assuming base difficulty")
		}
		return models.DifficultyEasy.Multiplier()
	}
	return course.Difficulty.Multiplier()
}

// TryClaim issues the tier's reward if the score qualifies and it was never
// issued before. Claim-then-pay ordering: the claim row is written first, so
// a crash between claim and payment loses the reward rather than risking a
// duplicate payout.
func (s *RewardService) TryClaim(userID, courseID string, scope models.QuizScope, scopeKey string, tier, scorePercent int) (ClaimResult, error) {
	spec, ok := tierSpec(tier)
	if !ok {
		return ClaimResult{}, models.ErrInvalidState
	}
	result := ClaimResult{Tier: tier}
	if scorePercent < spec.Threshold {
		// Not yet eligible; not an error.
		return result, nil
	}

	mult := s.difficultyMultiplier(courseID)
	xp := int64(float64(spec.XP) * mult)
	credits := int64(float64(spec.Credits) * mult)

	claim := models.RewardClaim{
		ID:             uuid.NewString(),
		UserID:         userID,
		CourseID:       courseID,
		Scope:          scope,
		ScopeKey:       scopeKey,
		Tier:           tier,
		XPAwarded:      xp,
		CreditsAwarded: credits,
	}
	res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
	if res.Error != nil {
		return result, res.Error
	}
	if res.RowsAffected == 0 {
		// Already issued: a no-op signal, not a failure.
		return result, nil
	}

	if _, err := s.Ledger.CreditXP(userID, xp, "reward_tier", models.JSONMap{
		"course_id": courseID, "scope": string(scope), "scope_key": scopeKey, "tier": tier,
	}); err != nil {
		// The claim row already blocks a retry; the reward is lost, never duplicated.
		logrus.WithError(err).WithField("user_id", userID).Error("reward XP credit failed after claim")
		return result, err
	}
	if err := s.Ledger.CreditCredits(userID, credits, "reward_tier", models.JSONMap{
		"course_id": courseID, "scope": string(scope), "scope_key": scopeKey, "tier": tier,
	}); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("reward credits credit failed after claim")
		return result, err
	}

	if s.Bus != nil {
		s.Bus.Publish(Event{Type: EventRewardClaimed, UserID: userID, CourseID: courseID, Scope: scope})
	}

	result.Claimed = true
	result.XPAwarded = xp
	result.CreditsAwarded = credits
	return result, nil
}

// ClaimEligible walks every tier at or below the score and claims the ones
// not yet issued. Called on quiz completion so thresholds pay out without a
// separate user action; the explicit ClaimReward endpoint covers retries.
func (s *RewardService) ClaimEligible(userID, courseID string, scope models.QuizScope, scopeKey string, scorePercent int) ([]ClaimResult, error) {
	var claimed []ClaimResult
	for _, spec := range RewardTiers {
		if scorePercent < spec.Threshold {
			break
		}
		res, err := s.TryClaim(userID, courseID, scope, scopeKey, spec.Threshold, scorePercent)
		if err != nil {
			return claimed, err
		}
		if res.Claimed {
			claimed = append(claimed, res)
		}
	}
	return claimed, nil
}

// ClaimsFor lists the already-issued claims for a user and course.
func (s *RewardService) ClaimsFor(userID, courseID string) ([]models.RewardClaim, error) {
	var claims []models.RewardClaim
	err := s.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at ASC").
		Find(&claims).Error
	return claims, err
}
