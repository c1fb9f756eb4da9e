package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizarena-progression/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StreamLedgerSSE streams newly appended ledger entries (XP awards, credit
// movements, reward payouts) for the authenticated user as server-sent
// events, so clients can surface gains without polling the REST endpoints.
func (s *LedgerService) StreamLedgerSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	db := s.DB

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var cursor time.Time

		var latest models.LedgerEntry
		if err := db.
			Where("user_id = ?", userID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).WithField("user_id", userID).Warn("sse cursor init failed")
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var entries []models.LedgerEntry
				err := db.
					Where("user_id = ? AND created_at > ?", userID, cursor).
					Order("created_at ASC").
					Find(&entries).Error
				if err != nil {
					logrus.WithError(err).WithField("user_id", userID).Warn("sse query failed")
					continue
				}
				if len(entries) == 0 {
					continue
				}

				cursor = entries[len(entries)-1].CreatedAt
				for _, entry := range entries {
					payload, _ := json.Marshal(entry)
					fmt.Fprintf(w, "event: ledger\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
