package handlers

import (
	"errors"

	"quizarena-progression/models"

	"github.com/gofiber/fiber/v2"
)

// respondErr maps domain sentinel errors onto HTTP statuses. Unknown errors
// are surfaced as 500s with the cause attached.
func respondErr(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, models.ErrInsufficientFunds):
		status = fiber.StatusPaymentRequired
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrAlreadyClaimed),
		errors.Is(err, models.ErrAlreadyPlayed),
		errors.Is(err, models.ErrNoRefreshTokens),
		errors.Is(err, models.ErrAttemptInProgress):
		status = fiber.StatusConflict
	case errors.Is(err, models.ErrGenerationFailed):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
