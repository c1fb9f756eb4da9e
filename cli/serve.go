package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"quizarena-progression/config"
	"quizarena-progression/generator"
	"quizarena-progression/handlers"
	"quizarena-progression/middleware"
	"quizarena-progression/services"
	"quizarena-progression/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewServeCmd builds the subcommand that runs the HTTP service plus its
// background workers.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the progression service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return err
	}
	if err := autoMigrate(db); err != nil {
		return err
	}

	var board *services.LeaderboardService
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		board = services.NewLeaderboardService(client)
	} else {
		logrus.Warn("REDIS_ADDR not set, leaderboard disabled")
	}

	var gen generator.Generator = generator.Static{}
	if cfg.UseGemini {
		g, err := generator.NewGemini(ctx)
		if err != nil {
			return err
		}
		gen = g
	}

	bus := services.NewBus()
	ledger := services.NewLedgerService(db, bus, board)
	rewards := services.NewRewardService(db, ledger, bus)
	quizzes := services.NewQuizService(db, ledger, rewards, bus, gen)
	challenges := services.NewChallengeService(db, ledger, bus, gen)
	quests := services.NewDailyQuestService(db, ledger)

	app := fiber.New(fiber.Config{
		AppName:      "progression",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(middleware.GatewayAuth(cfg.ServiceToken))

	handlers.SetupQuizRoutes(app, quizzes)
	handlers.SetupChallengeRoutes(app, challenges)
	handlers.SetupQuestRoutes(app, quests, bus)
	handlers.SetupProgressionRoutes(app, ledger, rewards, board)

	sched, err := challenges.StartSweepScheduler(cfg.SweepInterval)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	g, ctx := errgroup.WithContext(ctx)

	questEvents, unsubscribe := bus.Subscribe()
	g.Go(func() error {
		defer unsubscribe()
		quests.Run(ctx, questEvents)
		return nil
	})

	if board != nil {
		syncer := workers.NewLeaderboardSyncer(db, board)
		g.Go(func() error {
			syncer.Poll(ctx, cfg.LeaderboardSyncInterval)
			return nil
		})
	}

	g.Go(func() error {
		logrus.WithField("port", cfg.Port).Info("starting progression service")
		return app.Listen(":" + cfg.Port)
	})

	g.Go(func() error {
		<-ctx.Done()
		logrus.Info("shutting down")
		return app.ShutdownWithTimeout(5 * time.Second)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
