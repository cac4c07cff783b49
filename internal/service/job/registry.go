// Package job runs document batches in the background and reports their
// progress as a stream of events.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/tapu-processor/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

type entry struct {
	job    models.Job
	stream *Stream
}

// Registry holds every job of the process behind one mutex. The lock only
// guards metadata; documents are processed without it.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*entry
	keepAlive time.Duration
	now       func() time.Time
}

func NewRegistry(keepAlive time.Duration) *Registry {
	return &Registry{
		jobs:      make(map[string]*entry),
		keepAlive: keepAlive,
		now:       time.Now,
	}
}

// Create registers a queued job and returns its snapshot.
func (r *Registry) Create(files []string, format models.OutputFormat, downloadName string) models.Job {
	now := r.now()
	j := models.Job{
		ID:           uuid.New().String(),
		Status:       models.StatusQueued,
		OutputFormat: format,
		Total:        len(files),
		Files:        append([]string(nil), files...),
		DownloadName: downloadName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	r.jobs[j.ID] = &entry{job: j, stream: newStream(r.keepAlive)}
	r.mu.Unlock()
	return copyJob(j)
}

func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return copyJob(e.job), true
}

// Publish applies ev to the job and queues it on the job's stream. Events
// after a terminal event are dropped, as are errors once the job completed.
func (r *Registry) Publish(id string, ev models.ProgressEvent) (models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	if ev.Kind == models.EventError && !e.job.Status.CanTransition(models.StatusError) {
		return copyJob(e.job), nil
	}
	if !e.stream.push(ev) {
		return copyJob(e.job), nil
	}
	apply(&e.job, ev)
	e.job.UpdatedAt = r.now()
	return copyJob(e.job), nil
}

func apply(j *models.Job, ev models.ProgressEvent) {
	next := j.Status
	switch ev.Kind {
	case models.EventStart:
		next = models.StatusProcessing
		j.Total = ev.Total
	case models.EventProgress:
		next = models.StatusProcessing
		if ev.Status == models.DocumentProcessed {
			j.Processed++
		} else {
			j.Failures++
		}
	case models.EventComplete:
		next = models.StatusFinalizing
		j.Processed = ev.Processed
		j.Failures = ev.Failures
	case models.EventOutputReady:
		next = models.StatusCompleted
		j.OutputKey = ev.OutputName
	case models.EventFinished:
		next = models.StatusCompleted
	case models.EventError:
		next = models.StatusError
		j.Error = ev.Message
	}
	if j.Status.CanTransition(next) {
		j.Status = next
	}
}

// Attach claims the job's stream for a consumer. Call Detach when done.
func (r *Registry) Attach(id string) (*Stream, error) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	if err := e.stream.attach(); err != nil {
		return nil, err
	}
	return e.stream, nil
}

// Prune forgets finished jobs last updated before threshold and returns how
// many were removed.
func (r *Registry) Prune(threshold time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.jobs {
		done := e.job.Status == models.StatusCompleted || e.job.Status.Terminal()
		if done && e.job.UpdatedAt.Before(threshold) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

func copyJob(j models.Job) models.Job {
	j.Files = append([]string(nil), j.Files...)
	return j
}
