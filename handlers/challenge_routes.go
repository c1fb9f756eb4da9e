package handlers

import (
	"strconv"

	"quizarena-progression/middleware"
	"quizarena-progression/models"
	"quizarena-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupChallengeRoutes registers the wagered duel endpoints.
func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	secured := app.Group("/s", middleware.UserContext())

	// CreateChallenge
	secured.Post("/challenges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			ChallengedID    string           `json:"challenged_id"`
			CourseID        string           `json:"course_id"`
			Topic           string           `json:"topic"`
			QuizType        models.QuizScope `json:"quiz_type"`
			ModuleIndex     *int             `json:"module_index"`
			BetAmount       int64            `json:"bet_amount"`
			ExpirationHours int              `json:"expiration_hours"`
			QuestionCount   int              `json:"question_count"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.ChallengedID == "" || req.CourseID == "" || req.Topic == "" {
			return badRequest(c, "challenged_id, course_id and topic are required")
		}
		if req.BetAmount < 0 {
			return badRequest(c, "bet_amount cannot be negative")
		}

		challenge, err := challengeService.Create(c.Context(), services.CreateChallengeInput{
			ChallengerID:    userID,
			ChallengedID:    req.ChallengedID,
			CourseID:        req.CourseID,
			Topic:           req.Topic,
			QuizType:        req.QuizType,
			ModuleIndex:     req.ModuleIndex,
			BetAmount:       req.BetAmount,
			ExpirationHours: req.ExpirationHours,
			QuestionCount:   req.QuestionCount,
		})
		if err != nil {
			return respondErr(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	secured.Get("/challenges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		challenges, err := challengeService.ListFor(userID, limit)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(challenges)
	})

	secured.Get("/challenges/:id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		challenge, err := challengeService.Get(c.Params("id"), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(challenge)
	})

	// AcceptChallenge
	secured.Post("/challenges/:id/accept", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		challenge, err := challengeService.Accept(c.Params("id"), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(challenge)
	})

	secured.Post("/challenges/:id/reject", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := challengeService.Reject(c.Params("id"), userID); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"message": "challenge rejected, bet refunded"})
	})

	secured.Post("/challenges/:id/cancel", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := challengeService.Cancel(c.Params("id"), userID); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"message": "challenge cancelled, bet refunded"})
	})

	// RecordChallengeResult
	secured.Post("/challenges/:id/result", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			AttemptID    string `json:"attempt_id"`
			Score        int    `json:"score"`
			TimeTakenSec int    `json:"time_taken_sec"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.AttemptID == "" {
			return badRequest(c, "attempt_id is required")
		}

		challenge, err := challengeService.RecordResult(c.Params("id"), userID, req.AttemptID, req.Score, req.TimeTakenSec)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(challenge)
	})
}
