package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"motif/internal/pkg/errors"
)

// Registry persists job records. Implementations must enforce the terminal
// guard: once a job is completed or failed, no update changes it again.
type Registry interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Job, error)

	// SetProcessing claims a pending job. It returns false when the job
	// is already terminal (e.g. canceled while queued) and must be
	// skipped, not run.
	SetProcessing(ctx context.Context, id string) (bool, error)

	// SetCompleted and SetFailed are no-ops on terminal jobs.
	SetCompleted(ctx context.Context, id, videoURI string) error
	SetFailed(ctx context.Context, id, message string) error
}

// MemoryRegistry is the in-process Registry used by single-binary
// deployments and tests.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]*Job)}
}

func (r *MemoryRegistry) Create(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return errors.Conflict("job already exists").WithField("job_id", job.ID)
	}
	r.jobs[job.ID] = job.clone()
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	return job.clone(), nil
}

func (r *MemoryRegistry) ListByOwner(_ context.Context, ownerID string) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Job, 0)
	for _, job := range r.jobs {
		if job.OwnerID == ownerID {
			out = append(out, job.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRegistry) SetProcessing(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false, errors.NotFound("job", id)
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = StatusProcessing
	job.StartedAt = &now
	return true, nil
}

func (r *MemoryRegistry) SetCompleted(_ context.Context, id, videoURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if job.Status.IsTerminal() {
		return nil
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.VideoURI = videoURI
	job.FinishedAt = &now
	return nil
}

func (r *MemoryRegistry) SetFailed(_ context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.NotFound("job", id)
	}
	if job.Status.IsTerminal() {
		return nil
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.ErrorMessage = message
	job.FinishedAt = &now
	return nil
}
