package handlers

import (
	"strings"

	"quizarena-progression/middleware"
	"quizarena-progression/models"
	"quizarena-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupQuizRoutes registers the quiz attempt lifecycle endpoints.
func SetupQuizRoutes(app *fiber.App, quizService *services.QuizService) {
	secured := app.Group("/s", middleware.UserContext())

	// StartQuiz
	secured.Post("/quizzes", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			CourseID    string           `json:"course_id"`
			Topic       string           `json:"topic"`
			Scope       models.QuizScope `json:"scope"`
			ModuleIndex *int             `json:"module_index"`
			LessonIndex *int             `json:"lesson_index"`
			Count       int              `json:"count"`
			IsRetake    bool             `json:"is_retake"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.CourseID == "" || req.Topic == "" {
			return badRequest(c, "course_id and topic are required")
		}
		switch req.Scope {
		case models.ScopeLesson, models.ScopeModule, models.ScopeCourse:
		default:
			return badRequest(c, "scope must be lesson, module or course")
		}

		attempt, err := quizService.StartAttempt(c.Context(), services.StartAttemptInput{
			UserID:      userID,
			CourseID:    req.CourseID,
			Topic:       req.Topic,
			Scope:       req.Scope,
			ModuleIndex: req.ModuleIndex,
			LessonIndex: req.LessonIndex,
			Count:       req.Count,
			IsRetake:    req.IsRetake,
		})
		if err != nil {
			return respondErr(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(attempt)
	})

	secured.Get("/quizzes/:id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		attempt, err := quizService.Attempt(c.Params("id"), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(attempt)
	})

	// SaveAnswer: cheap partial save for resumability, no scoring.
	secured.Put("/quizzes/:id/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Answers models.AnswerMap `json:"answers"`
			Cursor  int              `json:"cursor"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if err := quizService.SaveProgress(c.Params("id"), userID, req.Answers, req.Cursor); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"message": "progress saved"})
	})

	// SubmitQuiz
	secured.Post("/quizzes/:id/submit", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Answers         models.AnswerMap `json:"answers"`
			SubjectiveMarks map[string]int   `json:"subjective_marks"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		result, err := quizService.Complete(c.Context(), c.Params("id"), userID, req.Answers, req.SubjectiveMarks)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(result)
	})

	secured.Post("/quizzes/:id/abandon", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := quizService.Abandon(c.Params("id"), userID); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"message": "attempt abandoned"})
	})

	// Question content for an attempt's id list. Grading fields never leave
	// the server.
	secured.Get("/questions", func(c *fiber.Ctx) error {
		var ids []string
		for _, id := range strings.Split(c.Query("ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return badRequest(c, "ids query parameter is required")
		}
		if len(ids) > 50 {
			return badRequest(c, "at most 50 ids per request")
		}
		questions, err := quizService.Questions(ids)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(questions)
	})
}
