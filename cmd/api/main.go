package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/auth"
	"github.com/fanforge/creator-platform/internal/campaign"
	"github.com/fanforge/creator-platform/internal/chat"
	"github.com/fanforge/creator-platform/internal/config"
	"github.com/fanforge/creator-platform/internal/email"
	"github.com/fanforge/creator-platform/internal/handlers"
	"github.com/fanforge/creator-platform/internal/httpserver"
	"github.com/fanforge/creator-platform/internal/idempotency"
	"github.com/fanforge/creator-platform/internal/logger"
	"github.com/fanforge/creator-platform/internal/queue"
	"github.com/fanforge/creator-platform/internal/ratelimit"
	"github.com/fanforge/creator-platform/internal/store"
	"github.com/fanforge/creator-platform/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	log, err := logger.New("api", cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}

	db, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	producer, err := queue.NewProducer(cfg.Kafka.Brokers, *log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue producer")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close queue producer")
		}
	}()

	messagePublisher, err := queue.NewMessagePublisher(producer, cfg.Topics.DMRequest)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create message publisher")
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests:    cfg.RateLimit.MaxRequests,
		Window:         cfg.RateLimit.Window,
		BurstAllowance: cfg.RateLimit.BurstAllowance,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rate limiter")
	}

	authSvc, err := auth.NewService(db, db, email.NewLogSender(*log), auth.Config{
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		BcryptCost:      cfg.Auth.BcryptCost,
	}, *log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auth service")
	}

	campaignSvc, err := campaign.NewService(db, *log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create campaign service")
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:      authSvc,
		Campaigns: campaignSvc,
		Store:     db,
		Limiter:   limiter,
		Messages:  messagePublisher,
		Webhook: handlers.WebhookDeps{
			Validator:   webhook.NewValidator(cfg.Webhook.Secret, cfg.Webhook.MaxAge),
			Idempotency: idempotency.NewService(idempotency.NewMemoryStore(), cfg.Retry.IdempotencyTTL),
			Store:       db,
			MaxAttempts: cfg.Retry.IdempotencyRetries,
			Logger:      *log,
		},
		Chat: chat.Config{
			DeployDeepSeek:   cfg.Chat.DeployDeepSeek,
			DeployLlama:      cfg.Chat.DeployLlama,
			DeployMistral:    cfg.Chat.DeployMistral,
			DeployClassifier: cfg.Chat.DeployClassifier,
		},
		Logger:     *log,
		QueueReady: producer.IsReady,
	})

	srv := httpserver.NewServer(cfg.App.Port, router, *log)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server terminated")
	}
	log.Info().Msg("api shut down cleanly")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("api init failed")
}
