package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// RunFunc is a long-running worker body. It must return promptly once its
// context is canceled.
type RunFunc func(ctx context.Context)

// Registry owns the lifecycle of background workers. Each registered worker
// can be started and stopped independently; a running worker is a goroutine
// holding its own cancelable context. The registry is injected where needed
// rather than living in a package global.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*registration
}

type registration struct {
	run    RunFunc
	handle *handle // nil when not running
}

type handle struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Status describes one registered worker.
type Status struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	RunID   string `json:"run_id,omitempty"`
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]*registration)}
}

// Register adds a worker under an id. Registering does not start it.
func (r *Registry) Register(id string, run RunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[id] = &registration{run: run}
}

// Start launches a registered worker. Returns false if the id is unknown or
// the worker is already running.
func (r *Registry) Start(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.workers[id]
	if !ok || reg.isRunning() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		runID:  uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	reg.handle = h

	go func() {
		defer close(h.done)
		reg.run(ctx)
	}()

	return true
}

// Stop cancels a running worker and waits for it to exit. Returns false if
// the id is unknown or the worker is not running.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	reg, ok := r.workers[id]
	if !ok || !reg.isRunning() {
		r.mu.Unlock()
		return false
	}
	h := reg.handle
	reg.handle = nil
	r.mu.Unlock()

	h.cancel()
	<-h.done
	return true
}

// StopAll stops every running worker. Used during shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Stop(id)
	}
}

// StatusAll reports the current state of every registered worker.
func (r *Registry) StatusAll() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Status, len(r.workers))
	for id, reg := range r.workers {
		s := Status{Name: id, Running: reg.isRunning()}
		if s.Running {
			s.RunID = reg.handle.runID
		}
		out[id] = s
	}
	return out
}

func (reg *registration) isRunning() bool {
	if reg.handle == nil {
		return false
	}
	select {
	case <-reg.handle.done:
		// goroutine exited on its own
		return false
	default:
		return true
	}
}
