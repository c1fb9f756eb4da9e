package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries everything the service reads from the environment.
type Config struct {
	Port         string
	DatabaseURL  string
	ServiceToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SweepInterval           time.Duration
	LeaderboardSyncInterval time.Duration

	// UseGemini switches the question generator from the static fallback to
	// the Gemini-backed collaborator.
	UseGemini bool
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "5300"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		ServiceToken:            os.Getenv("PROGRESSION_SERVICE_TOKEN"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getInt("REDIS_DB", 0),
		SweepInterval:           getDuration("SWEEP_INTERVAL", time.Minute),
		LeaderboardSyncInterval: getDuration("LEADERBOARD_SYNC_INTERVAL", 5*time.Minute),
		UseGemini:               os.Getenv("USE_GEMINI") == "true",
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		return nil, fmt.Errorf("PROGRESSION_SERVICE_TOKEN environment variable not set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	logrus.WithField("key", key).Warn("unparseable integer, using default")
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	logrus.WithField("key", key).Warn("unparseable duration, using default")
	return fallback
}
