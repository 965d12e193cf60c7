// Command server runs the ShelfView catalog and preview HTTP service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/ShelfView/internal/api"
	"github.com/dharsanguruparan/ShelfView/internal/config"
	"github.com/dharsanguruparan/ShelfView/internal/database"
	"github.com/dharsanguruparan/ShelfView/internal/processing"
	"github.com/dharsanguruparan/ShelfView/internal/queue"
	"github.com/dharsanguruparan/ShelfView/internal/repository"
	"github.com/dharsanguruparan/ShelfView/internal/s3storage"
	"github.com/dharsanguruparan/ShelfView/internal/storage"
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
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var catalog api.Catalog
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		catalog = repository.NewBookRepository(pool)
	} else {
		logger.Warn("no database configured, using in-memory catalog")
		catalog = storage.NewMemoryCatalog()
	}
	seeded, err := storage.Seed(ctx, catalog)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if seeded {
		logger.Info("seeded empty catalog with sample books")
	}

	var blobs api.Blobs
	inMemoryBlobs := cfg.S3.Endpoint == ""
	if inMemoryBlobs {
		logger.Warn("no object storage configured, using in-memory blobs")
		blobs = storage.NewMemoryBlobs()
	} else {
		store, err := s3storage.New(cfg.S3)
		if err != nil {
			return err
		}
		if err := store.EnsureBuckets(ctx); err != nil {
			return err
		}
		blobs = store
	}

	var dispatcher api.Dispatcher
	if cfg.Redis.Addr == "" || inMemoryBlobs {
		if cfg.Redis.Addr != "" {
			// A worker process cannot see this process's memory.
			logger.Warn("queue ignored because blobs are in memory", "redis_addr", cfg.Redis.Addr)
		}
		pool := processing.New(worker.NewProcessor(catalog, blobs, logger).Handler(), cfg.Worker.Concurrency, logger)
		poolCtx, cancel := context.WithCancel(ctx)
		pool.Start(poolCtx)
		defer func() {
			cancel()
			pool.Wait()
		}()
		dispatcher = pool
		logger.Info("running background jobs in process", "workers", cfg.Worker.Concurrency)
	} else {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		dispatcher = queue.NewEnqueuer(client)
	}

	srv := api.New(cfg.HTTP, catalog, blobs, dispatcher, logger)
	return srv.Run(ctx)
}
