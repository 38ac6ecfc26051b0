package queue

import (
	"sync"

	"github.com/videowizard/render-api/internal/model"
)

// Registry is the canonical in-memory mapping from job id to the current job
// snapshot. Writes replace the whole snapshot; last writer wins. Nothing is
// persisted: the registry lives and dies with the process.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]model.Job)}
}

// Get returns the current snapshot for id.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Set replaces the snapshot for id.
func (r *Registry) Set(id string, job model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = job
}

// Delete removes the entry for id, if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// List returns a snapshot of every tracked job, in no particular order.
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		ret = append(ret, job)
	}
	return ret
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
