package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mekazstan/paystack-forms-gateway/internal/config"
	"github.com/Mekazstan/paystack-forms-gateway/internal/email"
	"github.com/Mekazstan/paystack-forms-gateway/internal/gateway"
	"github.com/Mekazstan/paystack-forms-gateway/internal/ledger"
	"github.com/Mekazstan/paystack-forms-gateway/internal/logger"
	"github.com/Mekazstan/paystack-forms-gateway/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type apiConfig struct {
	cfg         *config.Config
	gateway     paymentGateway
	store       recordStore
	applier     actionApplier
	redisClient *redis.Client
	validate    *validator.Validate
	logger      *zap.Logger
	health      map[string]func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.ForEnvironment("paystack-forms-api", cfg.IsProduction())
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal("unable to ping database", zap.Error(err))
	}
	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatal("unable to migrate database", zap.Error(err))
	}
	log.Info("connected to database")

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("unable to parse redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("unable to connect to redis", zap.Error(err))
	}
	log.Info("connected to redis")

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

	api := &apiConfig{
		cfg:         cfg,
		gateway:     svc,
		store:       db,
		applier:     applier,
		redisClient: redisClient,
		validate:    newValidator(),
		logger:      log,
		health: map[string]func(context.Context) error{
			"database": pool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("webhook_url", svc.WebhookURL(0)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func (cfg *apiConfig) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", cfg.healthHandler)

	// Paystack routes (no auth - verified by signature or signed reference)
	limit := cfg.cfg.RateLimit
	if !cfg.cfg.EnableRateLimits {
		limit = 0
	}
	rateLimit := RateLimitMiddleware(cfg.redisClient, limit)
	mux.Handle("GET /paystack/return", rateLimit(http.HandlerFunc(cfg.returnHandler)))
	mux.HandleFunc("POST /paystack/webhook", cfg.webhookHandler)

	// Host platform routes (require JWT)
	authMiddleware := AuthMiddleware(cfg.cfg.JWTSecret)
	mux.Handle("POST /api/v1/entries/{id}/checkout", rateLimit(authMiddleware(http.HandlerFunc(cfg.checkoutHandler))))
	mux.Handle("POST /api/v1/entries/{id}/cancel-subscription", authMiddleware(http.HandlerFunc(cfg.cancelSubscriptionHandler)))
	mux.Handle("GET /api/v1/webhook-url", authMiddleware(http.HandlerFunc(cfg.webhookURLHandler)))

	var handler http.Handler = mux
	handler = middlewareCors(handler)
	handler = SecurityHeadersMiddleware(handler)
	handler = LoggingMiddleware(cfg.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(cfg.logger)(handler)
	return handler
}
