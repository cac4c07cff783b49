// Package worker runs background asynq task handlers.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/tapu-processor/pkg/logger"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	Redis       asynq.RedisClientOpt
	Concurrency int
	Queues      map[string]int
}

type BaseWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger logger.Logger
}

// Start runs the server until ctx is cancelled.
func (w *BaseWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (w *BaseWorker) Stop() error {
	w.server.Shutdown()
	return nil
}

func newBaseWorker(cfg *Config, log logger.Logger) BaseWorker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = map[string]int{"critical": 6, "default": 3, "low": 1}
	}
	server := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		Logger:      asynqLogger{log},
	})
	return BaseWorker{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: log,
	}
}

// asynqLogger routes asynq's own logs through our logger.
type asynqLogger struct {
	log logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(sprint(args)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(sprint(args)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(sprint(args)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(sprint(args)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(sprint(args)) }

func sprint(args []interface{}) string {
	return fmt.Sprint(args...)
}
