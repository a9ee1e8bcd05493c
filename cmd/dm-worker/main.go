package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/config"
	"github.com/fanforge/creator-platform/internal/logger"
	"github.com/fanforge/creator-platform/internal/platform"
	"github.com/fanforge/creator-platform/internal/queue"
	"github.com/fanforge/creator-platform/internal/ratelimit"
	"github.com/fanforge/creator-platform/internal/store"
	"github.com/fanforge/creator-platform/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	log, err := logger.New("dm-worker", cfg.App.Env, cfg.App.LogLevel)
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

	statusPublisher, err := queue.NewStatusPublisher(producer, cfg.Topics.DMStatus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create status publisher")
	}
	dlqPublisher, err := queue.NewDLQPublisher(producer, cfg.Topics.DMDLQ)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create dlq publisher")
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests:    cfg.RateLimit.MaxRequests,
		Window:         cfg.RateLimit.Window,
		BurstAllowance: cfg.RateLimit.BurstAllowance,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create rate limiter")
	}

	registry, err := buildAdapterRegistry(*log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build platform adapters")
	}

	engine, err := worker.NewEngine(worker.Config{
		MsgMaxBytes:     1 << 20,
		MaxAttempts:     cfg.Retry.MaxAttempts,
		BaseBackoff:     cfg.Retry.BaseBackoff,
		MaxBackoff:      cfg.Retry.MaxBackoff,
		Concurrency:     cfg.Retry.WorkerConcurrency,
		DefaultPlatform: platform.OnlyFans,
	}, worker.Dependencies{
		Adapters: registry,
		Limiter:  limiter,
		Status:   statusPublisher,
		DLQ:      dlqPublisher,
		Store:    db,
		Logger:   *log,
		Now:      time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise fan-out engine")
	}

	consumer, err := queue.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroup,
		[]string{cfg.Topics.DMRequest},
		worker.QueueHandler(engine),
		*log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue consumer")
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close queue consumer")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := consumer.Consume(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("request_topic", cfg.Topics.DMRequest).
		Str("group", cfg.Kafka.ConsumerGroup).
		Msg("dm worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("consumer terminated with error")
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := engine.Wait(drainCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight deliveries did not drain before timeout")
	}
}

func buildAdapterRegistry(log zerolog.Logger) (*platform.Registry, error) {
	adapters := make([]platform.Adapter, 0, 4)
	for _, name := range []string{platform.OnlyFans, platform.Instagram, platform.TikTok, platform.Reddit} {
		adapter, err := platform.NewMockAdapter(name, log)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return platform.NewRegistry(adapters...)
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("dm worker init failed")
}
