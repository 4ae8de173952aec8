package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"mediaconv/api/cache"
	"mediaconv/api/config"
	"mediaconv/api/database"
	"mediaconv/api/handlers"
	"mediaconv/api/kafka"
	"mediaconv/api/middleware"
	"mediaconv/api/repository"
	"mediaconv/api/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("API Service starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Migrations failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	redisCache, err := database.ConnectCache(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisCache.Close()

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.Fatal("Kafka producer failed", zap.Error(err))
	}
	defer producer.Close()

	repo := repository.NewPostgresRepo(db)
	statusCache := cache.NewStatusCache(redisCache)
	taskService := service.NewTaskService(repo, statusCache, producer)
	taskHandler := handlers.NewTaskHandler(taskService, cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", taskHandler.Upload)
	mux.HandleFunc("POST /tasks/url", taskHandler.CreateFromURL)
	mux.HandleFunc("POST /tasks/download", taskHandler.BatchDownload)
	mux.HandleFunc("GET /tasks/{id}", taskHandler.Status)
	mux.HandleFunc("GET /tasks/trace/{trace_id}", taskHandler.StatusByTrace)
	mux.HandleFunc("GET /tasks/{id}/result", taskHandler.Result)
	mux.HandleFunc("GET /tasks/{id}/download", taskHandler.Download)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler := middleware.Recovery(logger)(
		middleware.Logging(logger)(
			middleware.TraceID(mux),
		),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
