package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tagaralaaziis/event36-sub000/internal/api"
	"github.com/tagaralaaziis/event36-sub000/internal/config"
	"github.com/tagaralaaziis/event36-sub000/internal/database"
	"github.com/tagaralaaziis/event36-sub000/internal/pipeline"
	"github.com/tagaralaaziis/event36-sub000/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready")

	if err := db.AutoMigrate(
		&database.Event{},
		&database.Participant{},
		&database.Template{},
		&database.Artifact{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Println("database migrated")

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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	progress := pipeline.NewProgress(redisClient, cfg.Render.ProgressTTL)
	coordinator := pipeline.NewCoordinator(db, asynqClient, progress, cfg.Render.MaxAttempts, logger)

	router := api.NewRouter(logger)
	api.RegisterRoutes(router, db, coordinator, progress, storageClient, cfg.Render.MinPackScale)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	log.Printf("api listening on %s", address)
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
