// Package queue schedules deferred work on asynq and mirrors job snapshots to redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/tapu-processor/config"
)

// TaskTypeOutputExpire deletes a job's stored export once its retention ends.
const TaskTypeOutputExpire = "output:expire"

const cleanupQueue = "low"

// ExpirePayload is the payload of an output:expire task.
type ExpirePayload struct {
	JobID string `json:"jobId"`
	Key   string `json:"key"`
}

// NewExpireTask builds the task that deletes key.
func NewExpireTask(jobID, key string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpirePayload{JobID: jobID, Key: key})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return asynq.NewTask(TaskTypeOutputExpire, payload), nil
}

// ParseExpirePayload decodes the payload of an output:expire task.
func ParseExpirePayload(t *asynq.Task) (ExpirePayload, error) {
	var p ExpirePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if p.Key == "" {
		return p, fmt.Errorf("invalid task data: missing key")
	}
	return p, nil
}

// Scheduler arranges for a stored output to be removed later.
type Scheduler interface {
	ScheduleExpiry(ctx context.Context, jobID, key string) error
	Close() error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqScheduler enqueues output:expire tasks that run after the retention period.
type AsynqScheduler struct {
	client    enqueuer
	retention time.Duration
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewAsynqScheduler(cfg config.RedisConfig) *AsynqScheduler {
	return &AsynqScheduler{
		client:    asynq.NewClient(RedisOpt(cfg)),
		retention: cfg.OutputRetention,
	}
}

func (s *AsynqScheduler) ScheduleExpiry(ctx context.Context, jobID, key string) error {
	task, err := NewExpireTask(jobID, key)
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(s.retention),
		asynq.MaxRetry(3),
		asynq.Queue(cleanupQueue),
		asynq.TaskID("expire:"+jobID),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (s *AsynqScheduler) Close() error {
	return s.client.Close()
}

// NopScheduler is used when redis is disabled; outputs are then only removed
// by the storage retention sweep.
type NopScheduler struct{}

func (NopScheduler) ScheduleExpiry(context.Context, string, string) error { return nil }
func (NopScheduler) Close() error                                        { return nil }
