package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mediaconv/worker/cache"
	"mediaconv/worker/config"
	"mediaconv/worker/converter"
	"mediaconv/worker/janitor"
	"mediaconv/worker/kafka"
	"mediaconv/worker/media"
	"mediaconv/worker/pool"
	"mediaconv/worker/repository"
	"mediaconv/worker/service"
	"mediaconv/worker/transcribe"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Worker Service starting",
		zap.Strings("topics", cfg.Topics),
		zap.Int("workers", cfg.WorkerCount),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.Ping(pingCtx); err != nil {
		cancel()
		logger.Fatal("Postgres ping failed", zap.Error(err))
	}
	cancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, logger)
	if err != nil {
		logger.Fatal("Kafka consumer failed", zap.Error(err))
	}
	defer consumer.Close()

	repo := repository.NewPostgresRepo(db)
	statusCache := cache.NewStatusCache(redisClient)
	ffmpeg := media.New(cfg.FFmpegPath, cfg.FFprobePath, logger)
	images := converter.NewConverter(logger)

	engines := []transcribe.Engine{
		transcribe.NewWhisperCLI(cfg.WhisperBin, cfg.WhisperModel),
	}
	if cfg.FallbackSTTBin != "" {
		engines = append(engines,
			transcribe.NewCommandEngine("fallback", cfg.FallbackSTTBin, "{input}", "{language}"))
	}
	engineSet := transcribe.NewEngineSet(logger, engines...)

	sweep := janitor.New(repo, cfg.Retention, cfg.CleanupInterval, logger)
	go sweep.Run(ctx)

	processor := service.NewProcessor(repo, statusCache, ffmpeg, images, engineSet, sweep,
		service.Config{
			OutputDir:       cfg.OutputDir,
			WorkDir:         cfg.WorkDir,
			TimeLimit:       cfg.TaskTimeLimit,
			MaxAttempts:     cfg.RetryMax,
			RetryDelay:      cfg.RetryDelay,
			DefaultLanguage: cfg.WhisperLanguage,
		}, logger)

	workers := pool.NewWorkerPool(cfg.WorkerCount)

	err = consumer.Consume(ctx, cfg.Topics, func(msgCtx context.Context, msg *kafka.TaskMessage) {
		workers.Submit(msgCtx, msg, processor.Process)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", zap.Error(err))
	}

	logger.Info("Draining in-flight tasks")
	workers.Wait()
	logger.Info("Worker Service stopped")
}
