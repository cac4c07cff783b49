package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/tapu-processor/config"
	"github.com/feichai0017/tapu-processor/internal/models"
)

var ErrSnapshotNotFound = errors.New("job snapshot not found")

// SnapshotStore keeps a copy of job state that outlives the process.
type SnapshotStore interface {
	Save(ctx context.Context, job *models.Job) error
	Load(ctx context.Context, id string) (*models.Job, error)
}

type keyValue interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSnapshotStore saves jobs as JSON with a TTL.
type RedisSnapshotStore struct {
	redis keyValue
	ttl   time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{redis: client, ttl: ttl}
}

// NewRedisClient opens the client shared by the snapshot store.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func snapshotKey(id string) string {
	return fmt.Sprintf("job_status:%s", id)
}

func (s *RedisSnapshotStore) Save(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.redis.Set(ctx, snapshotKey(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.redis.Get(ctx, snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job from redis: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

type NopSnapshotStore struct{}

func (NopSnapshotStore) Save(context.Context, *models.Job) error { return nil }

func (NopSnapshotStore) Load(context.Context, string) (*models.Job, error) {
	return nil, ErrSnapshotNotFound
}
