package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/queue"
	"github.com/feichai0017/tapu-processor/pkg/storage"
)

// CleanupWorker deletes job outputs whose retention period has ended.
type CleanupWorker struct {
	BaseWorker
	storage   storage.Storage
	retention time.Duration
}

func NewCleanupWorker(cfg *Config, store storage.Storage, retention time.Duration, log logger.Logger) *CleanupWorker {
	log = log.Named("cleanup")
	w := &CleanupWorker{
		BaseWorker: newBaseWorker(cfg, log),
		storage:    store,
		retention:  retention,
	}
	w.registerHandlers()
	return w
}

func (w *CleanupWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeOutputExpire, w.handleOutputExpire)
}

func (w *CleanupWorker) handleOutputExpire(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseExpirePayload(t)
	if err != nil {
		w.logger.Error("Invalid expire task",
			logger.String("payload", string(t.Payload())),
			logger.Error(err),
		)
		// a malformed payload never succeeds on retry
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := w.storage.Delete(ctx, payload.Key); err != nil {
		return fmt.Errorf("failed to delete output: %w", err)
	}

	w.logger.Info("Expired job output",
		logger.String("jobId", payload.JobID),
		logger.String("key", payload.Key),
	)
	return nil
}

// Sweep removes every stored object older than the retention period. It
// catches outputs whose expire task was never enqueued.
func (w *CleanupWorker) Sweep(ctx context.Context) error {
	threshold := time.Now().Add(-w.retention)
	if err := w.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to sweep outputs: %w", err)
	}
	return nil
}
