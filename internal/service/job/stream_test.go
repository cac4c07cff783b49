package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tapu-processor/internal/models"
)

func TestStream_KeepAliveConsumesNothing(t *testing.T) {
	s := newStream(10 * time.Millisecond)
	require.NoError(t, s.attach())

	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EventKeepAlive, ev.Kind)

	s.push(models.ProgressEvent{Kind: models.EventStart, Total: 2})
	ev, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EventStart, ev.Kind)
	assert.Equal(t, 2, ev.Total)
}

func TestStream_ClosesAfterTerminal(t *testing.T) {
	s := newStream(time.Second)
	require.NoError(t, s.attach())

	assert.True(t, s.push(models.ProgressEvent{Kind: models.EventError, Message: "boom"}))
	assert.False(t, s.push(models.ProgressEvent{Kind: models.EventProgress}))

	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EventError, ev.Kind)
	assert.True(t, s.Closed())

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)

	s.Detach()
	assert.ErrorIs(t, s.attach(), ErrStreamClosed)
}

func TestStream_SingleConsumer(t *testing.T) {
	s := newStream(time.Second)
	require.NoError(t, s.attach())
	assert.ErrorIs(t, s.attach(), ErrStreamBusy)

	s.push(models.ProgressEvent{Kind: models.EventQueued})
	s.push(models.ProgressEvent{Kind: models.EventStart})
	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EventQueued, ev.Kind)

	// A new consumer resumes where the previous one stopped.
	s.Detach()
	require.NoError(t, s.attach())
	ev, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.EventStart, ev.Kind)
}

func TestStream_ContextCancel(t *testing.T) {
	s := newStream(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream_WakesOnPush(t *testing.T) {
	s := newStream(time.Minute)
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.push(models.ProgressEvent{Kind: models.EventFinished})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EventFinished, ev.Kind)
}
