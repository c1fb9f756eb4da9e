package cli

import (
	"context"
	"time"

	"quizarena-progression/config"
	"quizarena-progression/generator"
	"quizarena-progression/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewSweepCmd runs one challenge timeout sweep and exits. Useful when the
// service is down and expired wagers need settling by hand.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Settle expired and overdue challenges once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
			if err != nil {
				return err
			}

			bus := services.NewBus()
			ledger := services.NewLedgerService(db, bus, nil)
			challenges := services.NewChallengeService(db, ledger, bus, generator.Static{})

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := challenges.SweepTimeouts(ctx); err != nil {
				return err
			}
			logrus.Info("sweep complete")
			return nil
		},
	}
}
