// Command worker processes ShelfView background jobs: page counting of
// uploaded documents and scaled preview generation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ShelfView/internal/config"
	"github.com/dharsanguruparan/ShelfView/internal/database"
	"github.com/dharsanguruparan/ShelfView/internal/repository"
	"github.com/dharsanguruparan/ShelfView/internal/s3storage"
	"github.com/dharsanguruparan/ShelfView/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logger.New(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch {
	case cfg.Database.URL == "":
		return errors.New("worker requires SHELFVIEW_DATABASE_URL")
	case cfg.S3.Endpoint == "":
		return errors.New("worker requires SHELFVIEW_S3_ENDPOINT")
	case cfg.Redis.Addr == "":
		return errors.New("worker requires SHELFVIEW_REDIS_ADDR")
	}

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	repo := repository.NewBookRepository(pool)

	store, err := s3storage.New(cfg.S3)
	if err != nil {
		return err
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		return err
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})
	mux := worker.NewProcessor(repo, store, logger).Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker started", "concurrency", cfg.Worker.Concurrency)
	if err := server.Run(mux); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
