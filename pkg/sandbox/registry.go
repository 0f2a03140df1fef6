package sandbox

import (
	"context"
	"sync"
	"syscall"
	"time"
)

// Registry tracks active guest executions by run ID so they can be
// cancelled from outside the execution call. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	active map[string]*activeExecution
}

type activeExecution struct {
	pid     int
	cancel  context.CancelFunc
	started time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*activeExecution)}
}

func (r *Registry) register(runID string, pid int, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[runID] = &activeExecution{
		pid:     pid,
		cancel:  cancel,
		started: time.Now(),
	}
}

func (r *Registry) unregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, runID)
}

// Cancel terminates the execution for the given run. SIGTERM goes to the
// guest's process group immediately; the runner escalates to SIGKILL
// after its grace window. Returns false when no execution is active for
// the run.
func (r *Registry) Cancel(runID string) bool {
	r.mu.Lock()
	exec, ok := r.active[runID]
	r.mu.Unlock()
	if !ok {
		return false
	}

	// The process may have exited between lookup and kill; that is fine.
	_ = syscall.Kill(-exec.pid, syscall.SIGTERM)
	exec.cancel()
	return true
}

// IsRunning reports whether the run has an active execution.
func (r *Registry) IsRunning(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[runID]
	return ok
}

// Active returns the run IDs with executions in flight.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
