package harness

import (
	"slices"
	"sync"
)

// Registry tracks every job a harness has created, keyed by job ID. Failed
// jobs leave the active view but stay listed for debugging for as long as
// the harness lives. The registry is owned by exactly one harness; workers
// reach it through that harness rather than any process-global state.
type Registry struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	inactive map[string]struct{}
}

func newRegistry() *Registry {
	return &Registry{
		jobs:     make(map[string]*Job),
		inactive: make(map[string]struct{}),
	}
}

func (r *Registry) add(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}

func (r *Registry) get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// markInactive removes a job from the active view, keeping it listed.
func (r *Registry) markInactive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; ok {
		r.inactive[id] = struct{}{}
	}
}

// ActiveCount returns the number of jobs still in the active view.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs) - len(r.inactive)
}

// Views returns snapshots of all jobs, newest first.
func (r *Registry) Views() []JobView {
	r.mu.RLock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.RUnlock()

	views := make([]JobView, len(jobs))
	for i, j := range jobs {
		views[i] = j.Snapshot()
	}
	slices.SortFunc(views, func(a, b JobView) int {
		switch {
		case a.StartedAt.After(b.StartedAt):
			return -1
		case a.StartedAt.Before(b.StartedAt):
			return 1
		default:
			return 0
		}
	})
	return views
}
