package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/feichai0017/tapu-processor/internal/models"
)

var (
	ErrStreamClosed = errors.New("progress stream closed")
	ErrStreamBusy   = errors.New("progress stream already has a consumer")
)

// Stream is the progress channel of one job: the job worker is the only
// producer and at most one consumer is attached at a time. Pushing never
// blocks. Nothing is accepted after a terminal event, and once the terminal
// event has been read the stream is closed.
type Stream struct {
	keepAlive time.Duration

	mu       sync.Mutex
	queue    []models.ProgressEvent
	terminal bool
	closed   bool
	attached bool
	notify   chan struct{}
}

func newStream(keepAlive time.Duration) *Stream {
	return &Stream{
		keepAlive: keepAlive,
		notify:    make(chan struct{}, 1),
	}
}

// push appends ev and reports whether it was accepted.
func (s *Stream) push(ev models.ProgressEvent) bool {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, ev)
	s.terminal = ev.Kind.Terminal()
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *Stream) attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if s.attached {
		return ErrStreamBusy
	}
	s.attached = true
	return nil
}

// Detach releases the stream so another consumer can resume from the next
// unread event.
func (s *Stream) Detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

// Next returns the next event. If none arrives within the keep-alive
// interval it returns a keepalive event and consumes nothing.
func (s *Stream) Next(ctx context.Context) (models.ProgressEvent, error) {
	timer := time.NewTimer(s.keepAlive)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return models.ProgressEvent{}, ErrStreamClosed
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = models.ProgressEvent{}
			s.queue = s.queue[1:]
			if ev.Kind.Terminal() {
				s.closed = true
				s.queue = nil
			}
			s.mu.Unlock()
			return ev, nil
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-timer.C:
			return models.ProgressEvent{Kind: models.EventKeepAlive}, nil
		case <-ctx.Done():
			return models.ProgressEvent{}, ctx.Err()
		}
	}
}

// Closed reports whether the terminal event has been delivered.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
