package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"quizarena-progression/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// questTemplate is the static definition a daily quest is drawn from.
type questTemplate struct {
	Type          models.QuestType
	Target        int
	XPReward      int64
	CreditsReward int64
}

// Quest pools: one quest is drawn from the core pool, one from the
// social/economy pool and one wildcard from whatever types remain.
var (
	coreQuestPool = []questTemplate{
		{models.QuestCompleteLessons, 3, 30, 15},
		{models.QuestCompleteQuizzes, 2, 40, 20},
		{models.QuestPerfectQuiz, 1, 60, 30},
	}
	socialQuestPool = []questTemplate{
		{models.QuestPlayChallenges, 1, 40, 20},
		{models.QuestWinChallenges, 1, 80, 40},
		{models.QuestEarnCredits, 100, 50, 0},
	}
	wildcardQuestPool = []questTemplate{
		{models.QuestAnswerStreak, 5, 50, 25},
		{models.QuestClaimRewards, 1, 30, 15},
	}
)

const questUpdateRetries = 5

// DailyQuestService maintains the per-user rotating set of three daily
// objectives, progressed asynchronously from bus events.
type DailyQuestService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	rng *rand.Rand
	now func() time.Time
}

func NewDailyQuestService(db *gorm.DB, ledger *LedgerService) *DailyQuestService {
	return &DailyQuestService{
		DB:     db,
		Ledger: ledger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
}

// drawQuests picks the daily trio: core, social/economy, then a wildcard from
// the remaining types.
func drawQuests(r *rand.Rand) models.QuestList {
	quests := make(models.QuestList, 0, 3)
	picked := make(map[models.QuestType]bool, 3)

	for _, pool := range [][]questTemplate{coreQuestPool, socialQuestPool} {
		tmpl := pool[r.Intn(len(pool))]
		quests = append(quests, newQuest(tmpl))
		picked[tmpl.Type] = true
	}

	var remainder []questTemplate
	for _, pool := range [][]questTemplate{wildcardQuestPool, coreQuestPool, socialQuestPool} {
		for _, tmpl := range pool {
			if !picked[tmpl.Type] {
				remainder = append(remainder, tmpl)
			}
		}
	}
	tmpl := remainder[r.Intn(len(remainder))]
	quests = append(quests, newQuest(tmpl))
	return quests
}

func newQuest(tmpl questTemplate) models.Quest {
	return models.Quest{
		ID:            uuid.NewString(),
		Type:          tmpl.Type,
		Target:        tmpl.Target,
		XPReward:      tmpl.XPReward,
		CreditsReward: tmpl.CreditsReward,
	}
}

// GetOrInit returns today's quest set, drawing a fresh one when none exists
// or the stored date is stale. Refresh tokens replenish on their own date
// cycle, decoupled from the quest redraw.
func (s *DailyQuestService) GetOrInit(userID string) (*models.DailyQuestSet, error) {
	for attempt := 0; attempt < questUpdateRetries; attempt++ {
		set, err := s.loadOrCreate(userID)
		if err != nil {
			return nil, err
		}

		today := models.UTCDate(s.now())
		changed := false
		if set.LastResetDate != today {
			set.Quests = drawQuests(s.rng)
			set.LastResetDate = today
			changed = true
		}
		if set.LastTokenResetDate != today {
			set.RefreshTokens = models.MaxRefreshTokens
			set.LastTokenResetDate = today
			changed = true
		}
		if !changed {
			return set, nil
		}

		ok, err := s.saveVersioned(set)
		if err != nil {
			return nil, err
		}
		if ok {
			return set, nil
		}
		// Version conflict: another request reset concurrently; re-read.
	}
	return nil, errors.New("daily quest set: too many concurrent updates")
}

func (s *DailyQuestService) loadOrCreate(userID string) (*models.DailyQuestSet, error) {
	var set models.DailyQuestSet
	err := s.DB.Where("user_id = ?", userID).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		today := models.UTCDate(s.now())
		set = models.DailyQuestSet{
			ID:                 uuid.NewString(),
			UserID:             userID,
			Quests:             drawQuests(s.rng),
			LastResetDate:      today,
			RefreshTokens:      models.MaxRefreshTokens,
			LastTokenResetDate: today,
		}
		if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&set).Error; err != nil {
			return nil, err
		}
		// Re-read in case a concurrent first touch won the insert.
		if err := s.DB.Where("user_id = ?", userID).First(&set).Error; err != nil {
			return nil, err
		}
		return &set, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// saveVersioned writes the set conditionally on the version it was read at.
// Returns false on conflict so the caller can re-read and retry: quest
// increments are read-modify-write, never blind adds.
func (s *DailyQuestService) saveVersioned(set *models.DailyQuestSet) (bool, error) {
	res := s.DB.Model(&models.DailyQuestSet{}).
		Where("id = ? AND version = ?", set.ID, set.Version).
		Updates(map[string]interface{}{
			"quests":                set.Quests,
			"last_reset_date":       set.LastResetDate,
			"refresh_tokens":        set.RefreshTokens,
			"last_token_reset_date": set.LastTokenResetDate,
			"version":               set.Version + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	set.Version++
	return true, nil
}

// OnEvent advances matching quests for the event's user. Progress only
// applies to a set already initialized for today; stale sets are left for
// GetOrInit to redraw.
func (s *DailyQuestService) OnEvent(ev Event) error {
	for attempt := 0; attempt < questUpdateRetries; attempt++ {
		var set models.DailyQuestSet
		err := s.DB.Where("user_id = ?", ev.UserID).First(&set).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if set.LastResetDate != models.UTCDate(s.now()) {
			return nil
		}

		if !applyQuestEvent(set.Quests, ev) {
			return nil
		}
		ok, err := s.saveVersioned(&set)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return errors.New("daily quest progress: too many concurrent updates")
}

// applyQuestEvent mutates the quest slice in place and reports whether
// anything changed. Progress clamps at the target; completed quests ignore
// further events.
func applyQuestEvent(quests models.QuestList, ev Event) bool {
	changed := false
	for i := range quests {
		q := &quests[i]
		if q.Completed && !(q.Type == models.QuestAnswerStreak && ev.IsReset) {
			continue
		}

		delta := 0
		switch q.Type {
		case models.QuestCompleteLessons:
			if ev.Type == EventLessonCompleted {
				delta = 1
			}
		case models.QuestCompleteQuizzes:
			if ev.Type == EventQuizCompleted {
				delta = 1
			}
		case models.QuestPerfectQuiz:
			if ev.Type == EventQuizCompleted && ev.MaxScore > 0 && ev.Score == ev.MaxScore {
				delta = 1
			}
		case models.QuestPlayChallenges:
			if ev.Type == EventChallengeCompleted {
				delta = 1
			}
		case models.QuestWinChallenges:
			if ev.Type == EventChallengeCompleted && ev.Won {
				delta = 1
			}
		case models.QuestEarnCredits:
			if ev.Type == EventCreditsEarned && ev.Amount > 0 {
				delta = int(ev.Amount)
			}
		case models.QuestAnswerStreak:
			if ev.Type == EventAnswerStreak {
				if ev.IsReset {
					// Streak quests reset instead of incrementing, but a
					// completed streak stays completed.
					if !q.Completed && q.Progress != 0 {
						q.Progress = 0
						changed = true
					}
					continue
				}
				delta = 1
			}
		case models.QuestClaimRewards:
			if ev.Type == EventRewardClaimed {
				delta = 1
			}
		}

		if delta == 0 {
			continue
		}
		q.Progress += delta
		if q.Progress >= q.Target {
			q.Progress = q.Target
			q.Completed = true
		}
		changed = true
	}
	return changed
}

// Claim pays out a completed quest exactly once. The claimed flag is flipped
// under the version guard before any credit moves (claim-then-pay).
func (s *DailyQuestService) Claim(userID, questID string) (*models.Quest, error) {
	for attempt := 0; attempt < questUpdateRetries; attempt++ {
		set, err := s.GetOrInit(userID)
		if err != nil {
			return nil, err
		}
		quest := set.FindQuest(questID)
		if quest == nil {
			return nil, models.ErrNotFound
		}
		if quest.Claimed {
			return nil, models.ErrAlreadyClaimed
		}
		if !quest.Completed {
			return nil, models.ErrInvalidState
		}

		quest.Claimed = true
		ok, err := s.saveVersioned(set)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if _, err := s.Ledger.CreditXP(userID, quest.XPReward, "quest_claimed", models.JSONMap{
			"quest_id": questID, "quest_type": string(quest.Type),
		}); err != nil {
			logrus.WithError(err).WithField("quest_id", questID).Error("quest XP payout failed after claim")
			return nil, err
		}
		if err := s.Ledger.CreditCredits(userID, quest.CreditsReward, "quest_claimed", models.JSONMap{
			"quest_id": questID, "quest_type": string(quest.Type),
		}); err != nil {
			logrus.WithError(err).WithField("quest_id", questID).Error("quest credits payout failed after claim")
			return nil, err
		}
		return quest, nil
	}
	return nil, errors.New("quest claim: too many concurrent updates")
}

// Refresh consumes one re-roll token and replaces the quest with a random
// type not already present in the set, progress zeroed.
func (s *DailyQuestService) Refresh(userID, questID string) (*models.DailyQuestSet, error) {
	for attempt := 0; attempt < questUpdateRetries; attempt++ {
		set, err := s.GetOrInit(userID)
		if err != nil {
			return nil, err
		}
		if set.RefreshTokens <= 0 {
			return nil, models.ErrNoRefreshTokens
		}
		quest := set.FindQuest(questID)
		if quest == nil {
			return nil, models.ErrNotFound
		}

		replacement, ok := s.drawReplacement(set)
		if !ok {
			return nil, models.ErrInvalidState
		}
		*quest = replacement
		set.RefreshTokens--

		saved, err := s.saveVersioned(set)
		if err != nil {
			return nil, err
		}
		if saved {
			return set, nil
		}
	}
	return nil, errors.New("quest refresh: too many concurrent updates")
}

func (s *DailyQuestService) drawReplacement(set *models.DailyQuestSet) (models.Quest, bool) {
	var candidates []questTemplate
	for _, pool := range [][]questTemplate{coreQuestPool, socialQuestPool, wildcardQuestPool} {
		for _, tmpl := range pool {
			if !set.HasQuestType(tmpl.Type) {
				candidates = append(candidates, tmpl)
			}
		}
	}
	if len(candidates) == 0 {
		return models.Quest{}, false
	}
	return newQuest(candidates[s.rng.Intn(len(candidates))]), true
}

// Run consumes bus events until the context ends. Failures are logged, never
// propagated: quest progress is a best-effort side effect of the primary
// transaction.
func (s *DailyQuestService) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.OnEvent(ev); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"event":   ev.Type,
					"user_id": ev.UserID,
				}).Error("quest progress update failed")
			}
		}
	}
}
