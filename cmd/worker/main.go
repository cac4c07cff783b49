package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feichai0017/tapu-processor/config"
	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/queue"
	"github.com/feichai0017/tapu-processor/pkg/storage"
	"github.com/feichai0017/tapu-processor/pkg/worker"
)

const sweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
		logger.WithErrorPaths(cfg.Log.ErrorPaths),
		logger.WithField("service", "tapu-worker"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.Redis.Enabled() {
		log.Error("Redis is not configured, nothing to do")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("Failed to init storage", logger.Error(err))
		os.Exit(1)
	}

	cleanupWorker := worker.NewCleanupWorker(&worker.Config{
		Redis:       queue.RedisOpt(cfg.Redis),
		Concurrency: cfg.Redis.Concurrency,
	}, store, cfg.Redis.OutputRetention, log)

	// catches outputs whose expiry task was lost
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			if err := cleanupWorker.Sweep(ctx); err != nil {
				log.Warn("Sweep failed", logger.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	log.Info("Worker starting")
	if err := cleanupWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Shutting down worker...")
	cleanupWorker.Stop()
	log.Info("Worker stopped")
}
