package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tapu-processor/internal/models"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "expire:job"}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestAsynqScheduler_ScheduleExpiry(t *testing.T) {
	fake := &fakeEnqueuer{}
	s := &AsynqScheduler{client: fake, retention: time.Hour}

	require.NoError(t, s.ScheduleExpiry(context.Background(), "job", "outputs/job.xlsx"))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TaskTypeOutputExpire, fake.tasks[0].Type())

	payload, err := ParseExpirePayload(fake.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, ExpirePayload{JobID: "job", Key: "outputs/job.xlsx"}, payload)

	var processIn time.Duration
	for _, o := range fake.opts[0] {
		if o.Type() == asynq.ProcessInOpt {
			processIn = o.Value().(time.Duration)
		}
	}
	assert.Equal(t, time.Hour, processIn)
}

func TestAsynqScheduler_EnqueueError(t *testing.T) {
	s := &AsynqScheduler{client: &fakeEnqueuer{err: errors.New("redis down")}, retention: time.Hour}
	assert.ErrorContains(t, s.ScheduleExpiry(context.Background(), "job", "k"), "redis down")
}

func TestParseExpirePayload_Invalid(t *testing.T) {
	_, err := ParseExpirePayload(asynq.NewTask(TaskTypeOutputExpire, []byte(`{"jobId":"x"}`)))
	assert.Error(t, err)

	_, err = ParseExpirePayload(asynq.NewTask(TaskTypeOutputExpire, []byte(`nope`)))
	assert.Error(t, err)
}

type fakeKV struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisSnapshotStore(t *testing.T) {
	kv := newFakeKV()
	store := &RedisSnapshotStore{redis: kv, ttl: 24 * time.Hour}
	ctx := context.Background()

	job := &models.Job{ID: "abc", Status: models.StatusCompleted, Total: 3, Processed: 2, Failures: 1}
	require.NoError(t, store.Save(ctx, job))
	assert.Equal(t, 24*time.Hour, kv.ttl["job_status:abc"])

	got, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.Failures)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestNopSnapshotStore(t *testing.T) {
	var s SnapshotStore = NopSnapshotStore{}
	require.NoError(t, s.Save(context.Background(), &models.Job{ID: "x"}))
	_, err := s.Load(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
