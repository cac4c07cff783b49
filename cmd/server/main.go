package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tapu-processor/api/handlers"
	"github.com/feichai0017/tapu-processor/api/routes"
	"github.com/feichai0017/tapu-processor/config"
	"github.com/feichai0017/tapu-processor/internal/agent"
	"github.com/feichai0017/tapu-processor/internal/service/job"
	"github.com/feichai0017/tapu-processor/internal/utils/validator"
	"github.com/feichai0017/tapu-processor/pkg/converters"
	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/queue"
	"github.com/feichai0017/tapu-processor/pkg/storage"
)

const maintenanceInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
		logger.WithErrorPaths(cfg.Log.ErrorPaths),
		logger.WithField("service", "tapu-server"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to init storage", logger.Error(err))
	}

	var (
		scheduler queue.Scheduler     = queue.NopScheduler{}
		snapshots queue.SnapshotStore = queue.NopSnapshotStore{}
	)
	if cfg.Redis.Enabled() {
		client := queue.NewRedisClient(cfg.Redis)
		defer client.Close()
		snapshots = queue.NewRedisSnapshotStore(client, cfg.Redis.SnapshotTTL)
		scheduler = queue.NewAsynqScheduler(cfg.Redis)
		log.Info("Redis enabled", logger.String("addr", cfg.Redis.Addr))
	}
	defer scheduler.Close()

	factory, err := agent.NewProcessorFactory(cfg, log)
	if err != nil {
		log.Fatal("Failed to build pipeline", logger.Error(err))
	}
	defer factory.Close()

	if err := os.MkdirAll(cfg.Pipeline.WorkDir, 0o755); err != nil {
		log.Fatal("Failed to create work directory", logger.Error(err))
	}

	registry := job.NewRegistry(cfg.Pipeline.KeepAlive)
	orchestrator := job.NewOrchestrator(job.Dependencies{
		Registry:  registry,
		Cleaner:   factory.Cleaner(),
		Extractor: factory.Tables(),
		Assembler: factory.Assembler(),
		Writer:    converters.NewExporter(),
		Storage:   store,
		Scheduler: scheduler,
		Snapshots: snapshots,
	}, job.Options{
		WorkDir:           cfg.Pipeline.WorkDir,
		DownloadURLPrefix: cfg.Pipeline.DownloadURLPrefix,
	}, log)

	docValidator := validator.NewDocumentValidator(log, &validator.ValidatorConfig{
		MaxFileSize:  cfg.Server.MaxUploadBytes(),
		MaxFiles:     cfg.Pipeline.MaxFiles,
		MaxPageCount: cfg.Pipeline.MaxPages,
	})

	// init handlers
	h := handlers.NewHandlers(orchestrator, docValidator, store, snapshots, handlers.Config{
		UploadDir:         filepath.Join(cfg.Pipeline.WorkDir, "uploads"),
		DownloadURLPrefix: cfg.Pipeline.DownloadURLPrefix,
	}, log)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	routes.SetupRoutes(r, h, cfg, log)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go maintain(ctx, registry, store, cfg, log)

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}

// maintain forgets old jobs and, when no retention worker runs, expires
// outputs itself.
func maintain(ctx context.Context, registry *job.Registry, store storage.Storage, cfg *config.Config, log logger.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	retention := cfg.Redis.OutputRetention
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := registry.Prune(now.Add(-retention)); n > 0 {
				log.Info("Pruned jobs", logger.Int("jobs", n))
			}
			if cfg.Redis.Enabled() {
				continue
			}
			if err := store.CleanupBefore(ctx, now.Add(-retention)); err != nil {
				log.Warn("Output cleanup failed", logger.Error(err))
			}
		}
	}
}
