package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tagaralaaziis/event36-sub000/internal/config"
	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/mailer"
	"github.com/tagaralaaziis/event36-sub000/internal/metrics"
	"github.com/tagaralaaziis/event36-sub000/internal/pipeline"
	"github.com/tagaralaaziis/event36-sub000/internal/render"
	"github.com/tagaralaaziis/event36-sub000/internal/storage"
	"github.com/tagaralaaziis/event36-sub000/internal/tasks"
	"github.com/tagaralaaziis/event36-sub000/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	fonts, err := render.NewFontTable()
	if err != nil {
		log.Fatalf("load fonts: %v", err)
	}

	progress := pipeline.NewProgress(redisClient, cfg.Render.ProgressTTL)
	certificates := render.NewCertificateRenderer(fonts, logger)
	tickets := render.NewTicketRenderer(fonts, cfg.Render.QRBorderFraction, logger)

	generateHandler := worker.NewGenerateTaskHandler(
		db, storageClient, progress, certificates, tickets, cfg.API.PublicBaseURL, logger)
	sendHandler := worker.NewSendTaskHandler(db, storageClient, progress, mailer.New(cfg.Mail), logger)

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency:    cfg.Render.Concurrency,
		RetryDelayFunc: worker.RetryDelay(cfg.Render.RetryBase),
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeArtifactGenerate, generateHandler)
	mux.Handle(tasks.TypeArtifactSend, sendHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", cfg.Redis.Addr()),
		slog.Int("concurrency", cfg.Render.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
