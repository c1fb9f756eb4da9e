package cli

import (
	"quizarena-progression/config"
	"quizarena-progression/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewMigrateCmd applies the schema and exits.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
			if err != nil {
				return err
			}
			if err := autoMigrate(db); err != nil {
				return err
			}
			logrus.Info("migrations applied")
			return nil
		},
	}
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserAccount{},
		&models.LedgerEntry{},
		&models.Course{},
		&models.Question{},
		&models.QuestionGrant{},
		&models.QuizAttempt{},
		&models.Challenge{},
		&models.RewardClaim{},
		&models.DailyQuestSet{},
	)
}
