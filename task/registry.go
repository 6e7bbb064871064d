package task

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyActive = errors.New("requester already has an active conversion")
	ErrQueueFull     = errors.New("conversion queue is full")
)

// Registry bounds concurrent conversions globally and enforces at most one
// active conversion per requester. All mutations go through one mutex so two
// simultaneous requests from the same identity can never both be admitted.
type Registry struct {
	mu     sync.Mutex
	max    int
	active map[string]*Task
}

func NewRegistry(max int) *Registry {
	return &Registry{
		max:    max,
		active: make(map[string]*Task),
	}
}

// Admit reserves a slot for the requester. The reservation happens before any
// metadata fetch, so a second request from the same identity fails immediately
// with ErrAlreadyActive instead of racing the first one.
func (r *Registry) Admit(requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[requester]; ok {
		return ErrAlreadyActive
	}
	if len(r.active) >= r.max {
		return ErrQueueFull
	}
	r.active[requester] = nil
	return nil
}

// Bind attaches the created task to a previously admitted requester.
func (r *Registry) Bind(requester string, t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[requester]; ok {
		r.active[requester] = t
	}
}

// Release frees the requester's slot. Releasing an unknown requester is a
// no-op, so terminal paths can call it unconditionally.
func (r *Registry) Release(requester string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, requester)
}

// Lookup returns the requester's bound task. A slot that is reserved but not
// yet bound reports no task.
func (r *Registry) Lookup(requester string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.active[requester]
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
