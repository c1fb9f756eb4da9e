package services

import (
	"testing"

	"quizarena-progression/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema, so the
// services can be exercised through gorm without external infrastructure.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// A second connection to :memory: would see an empty database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.UserAccount{},
		&models.LedgerEntry{},
		&models.Course{},
		&models.Question{},
		&models.QuestionGrant{},
		&models.QuizAttempt{},
		&models.Challenge{},
		&models.RewardClaim{},
		&models.DailyQuestSet{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
