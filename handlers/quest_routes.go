package handlers

import (
	"time"

	"quizarena-progression/middleware"
	"quizarena-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupQuestRoutes registers the daily quest endpoints plus the lesson
// completion hook that feeds quest progress.
func SetupQuestRoutes(app *fiber.App, questService *services.DailyQuestService, bus *services.Bus) {
	secured := app.Group("/s", middleware.UserContext())

	// GetDailyQuests: lazily initializes or rolls the set for today.
	secured.Get("/quests", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		set, err := questService.GetOrInit(userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(set)
	})

	// ClaimQuest
	secured.Post("/quests/:id/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		result, err := questService.Claim(userID, c.Params("id"))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(result)
	})

	// RefreshQuest
	secured.Post("/quests/:id/refresh", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		set, err := questService.Refresh(userID, c.Params("id"))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(set)
	})

	// Lesson completions originate outside the quiz flow; the content service
	// reports them here so lesson quests can progress.
	secured.Post("/lessons/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			CourseID string `json:"course_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.CourseID == "" {
			return badRequest(c, "course_id is required")
		}

		bus.Publish(services.Event{
			Type:     services.EventLessonCompleted,
			UserID:   userID,
			CourseID: req.CourseID,
			At:       time.Now().UTC(),
		})
		return c.JSON(fiber.Map{"message": "lesson completion recorded"})
	})
}
