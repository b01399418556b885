package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"englishmastery/internal/cache"
	"englishmastery/internal/config"
	"englishmastery/internal/database"
	"englishmastery/internal/log"
	"englishmastery/internal/queue"
	"englishmastery/internal/repository"
	"englishmastery/internal/service"
	"englishmastery/internal/storage"
	"englishmastery/internal/tasks"
)

const cachePrefix = "em:cache:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The API process owns migrations.
	cfg.Postgres.AutoMigrate = false
	dbPool, err := database.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	processor := newProcessor(cfg, logger, repository.NewChallengeRepository(dbPool), cache.NewJSONCache(client, cachePrefix), objectStore)
	consumer := queue.NewConsumer(client, cfg.Queue, logger, processor)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("worker exited cleanly")
}

func newProcessor(cfg *config.AppConfig, logger zerolog.Logger, challenges *repository.ChallengeRepository, jsonCache *cache.JSONCache, objects *storage.ObjectStore) *tasks.Processor {
	daily := service.NewDailyRefreshService(challenges, jsonCache, &http.Client{}, cfg.Daily, logger)
	uploads := service.NewChallengeService(challenges, objects, nil, jsonCache, logger)
	return tasks.NewProcessor(daily, uploads, logger)
}
