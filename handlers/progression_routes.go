package handlers

import (
	"strconv"

	"quizarena-progression/middleware"
	"quizarena-progression/models"
	"quizarena-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressionRoutes registers the account-facing progression endpoints:
// balances and level, the leaderboard, the live ledger stream, manual reward
// claims, and the admin grant surface.
func SetupProgressionRoutes(app *fiber.App, ledger *services.LedgerService, rewards *services.RewardService, board *services.LeaderboardService) {
	secured := app.Group("/s", middleware.UserContext())

	// GetProgress
	secured.Get("/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		account, err := ledger.Account(userID)
		if err != nil {
			return respondErr(c, err)
		}
		entries, err := ledger.RecentEntries(userID, 20)
		if err != nil {
			return respondErr(c, err)
		}

		resp := fiber.Map{
			"account":        account,
			"level":          services.Progress(account.XP),
			"recent_entries": entries,
		}
		if board != nil {
			if rank, err := board.RankOf(c.Context(), userID); err == nil {
				resp["leaderboard"] = rank
			}
		}
		return c.JSON(resp)
	})

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		if board == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "leaderboard not configured",
			})
		}
		limit, _ := strconv.ParseInt(c.Query("limit", "10"), 10, 64)
		if limit <= 0 || limit > 100 {
			limit = 10
		}
		top, err := board.Top(c.Context(), limit)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(top)
	})

	secured.Get("/progress/stream", ledger.StreamLedgerSSE)

	// ClaimReward: manual claim path for tiers the submit flow did not settle,
	// e.g. after a subjective regrade raised the percent.
	secured.Post("/rewards/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			CourseID     string           `json:"course_id"`
			Scope        models.QuizScope `json:"scope"`
			ScopeKey     string           `json:"scope_key"`
			Tier         int              `json:"tier"`
			ScorePercent int              `json:"score_percent"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.CourseID == "" || req.ScopeKey == "" {
			return badRequest(c, "course_id and scope_key are required")
		}

		result, err := rewards.TryClaim(userID, req.CourseID, req.Scope, req.ScopeKey, req.Tier, req.ScorePercent)
		if err != nil {
			return respondErr(c, err)
		}
		if !result.Claimed {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  models.ErrAlreadyClaimed.Error(),
				"result": result,
			})
		}
		return c.JSON(result)
	})

	secured.Get("/rewards", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		courseID := c.Query("course_id")
		if courseID == "" {
			return badRequest(c, "course_id query parameter is required")
		}
		claims, err := rewards.ClaimsFor(userID, courseID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(claims)
	})

	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			Amount int64  `json:"amount"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.UserID == "" || req.Amount <= 0 {
			return badRequest(c, "user_id and a positive amount are required")
		}
		if req.Reason == "" {
			req.Reason = "admin_grant"
		}
		newXP, err := ledger.CreditXP(req.UserID, req.Amount, req.Reason, models.JSONMap{
			"granted_by": c.Locals("user_id"),
		})
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"user_id": req.UserID, "xp": newXP})
	})

	admin.Post("/credits/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			Amount int64  `json:"amount"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.UserID == "" || req.Amount <= 0 {
			return badRequest(c, "user_id and a positive amount are required")
		}
		if req.Reason == "" {
			req.Reason = "admin_grant"
		}
		if err := ledger.CreditCredits(req.UserID, req.Amount, req.Reason, models.JSONMap{
			"granted_by": c.Locals("user_id"),
		}); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"message": "credits granted"})
	})

	// Courses are owned by the content service; this upsert only records the
	// difficulty used for reward multipliers.
	admin.Post("/courses", func(c *fiber.Ctx) error {
		var req struct {
			ID         string                  `json:"id"`
			Title      string                  `json:"title"`
			Topic      string                  `json:"topic"`
			Difficulty models.CourseDifficulty `json:"difficulty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.ID == "" {
			return badRequest(c, "id is required")
		}
		switch req.Difficulty {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		default:
			return badRequest(c, "difficulty must be easy, medium or hard")
		}

		course := models.Course{ID: req.ID, Title: req.Title, Topic: req.Topic, Difficulty: req.Difficulty}
		if err := rewards.DB.Save(&course).Error; err != nil {
			return respondErr(c, err)
		}
		return c.JSON(course)
	})
}
