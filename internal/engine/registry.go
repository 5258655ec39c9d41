package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Handler executes the work for one task. It receives the normalized
// payload and returns the result bytes to cache, or an error. Errors
// are retried per the type's policy unless wrapped with Permanent.
// Handlers must honor ctx: it carries the per-execution timeout and
// best-effort cancellation.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TaskType binds a task type name to its handler and execution
// parameters.
type TaskType struct {
	// Name identifies the type in Submit calls. Required.
	Name string

	// Handler runs the task. Required.
	Handler Handler

	// Policy bounds retries for this type. Zero value means the
	// engine default.
	Policy RetryPolicy

	// ResultTTL is how long successful results stay cached. Zero
	// means the engine default.
	ResultTTL time.Duration

	// Timeout is the maximum run duration of a single execution.
	// Exceeding it counts as a transient failure. Zero means the
	// engine default.
	Timeout time.Duration
}

// Registry holds the task types the engine knows how to execute.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TaskType
}

// NewRegistry creates an empty task type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TaskType)}
}

// Register adds a task type. Registering an empty name, a nil
// handler, or a duplicate name is an error.
func (r *Registry) Register(tt TaskType) error {
	if tt.Name == "" {
		return fmt.Errorf("task type name must not be empty")
	}
	if tt.Handler == nil {
		return fmt.Errorf("task type %q has no handler", tt.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[tt.Name]; exists {
		return fmt.Errorf("task type %q already registered", tt.Name)
	}
	r.types[tt.Name] = tt
	return nil
}

// Lookup returns the task type registered under name.
func (r *Registry) Lookup(name string) (TaskType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tt, ok := r.types[name]
	return tt, ok
}
