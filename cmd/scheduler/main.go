package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/email"
	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/Mekazstan/paystack-forms-gateway/internal/jobs"
	"github.com/Mekazstan/paystack-forms-gateway/internal/ledger"
	"github.com/Mekazstan/paystack-forms-gateway/internal/logger"
	"github.com/Mekazstan/paystack-forms-gateway/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout bounds one sweep so a slow processor cannot stack runs.
const sweepTimeout = 50 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.ForEnvironment("paystack-forms-scheduler", cfg.IsProduction())
	defer log.Sync()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal("unable to ping database", zap.Error(err))
	}
	log.Info("connected to database")

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("unable to parse redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	mailer, err := email.NewEmailService(cfg, log.Named("email"))
	if err != nil {
		log.Fatal("unable to set up email", zap.Error(err))
	}

	db := store.New(pool)
	svc := gateway.NewService(cfg, gateway.Dependencies{
		Entries: db,
		Feeds:   db,
		Forms:   db,
	}, gateway.Options{}, log.Named("gateway"))
	applier := ledger.NewApplier(db, ledger.NewRedisDeduper(redisClient, ledger.DefaultDedupeTTL), mailer, log.Named("ledger"))
	sweep := jobs.NewStaleSweep(db, svc, applier, cfg.StaleTransactionAge, log.Named("sweep"))

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	// Stale transaction sweep, every hour at minute 15
	_, err = c.AddFunc("0 15 * * * *", func() {
		runCtx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if _, err := sweep.Run(runCtx); err != nil {
			log.Error("stale transaction sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("failed to schedule stale transaction sweep", zap.Error(err))
	}

	c.Start()
	log.Info("cron scheduler started",
		zap.String("stale_sweep", "hourly at :15"),
		zap.Duration("stale_after", cfg.StaleTransactionAge),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutting down cron scheduler")

	stopCtx := c.Stop()
	<-stopCtx.Done()

	log.Info("cron scheduler stopped")
}
