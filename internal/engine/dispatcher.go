package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SubmitResult is the outcome of a Submit call: either the cached
// result of an earlier identical task, or a handle to a pending one.
type SubmitResult struct {
	// Cached is true when the result was served from the cache
	// without enqueueing anything.
	Cached bool

	// Value holds the result payload on a cache hit.
	Value []byte

	// Handle refers to the pending task on a cache miss. Duplicate
	// submissions receive handles to the same task.
	Handle *Handle
}

// Dispatcher is the single entry point producers use. It checks the
// result cache first, enqueues a deduplicated task on a miss, and
// never blocks waiting for task completion.
type Dispatcher struct {
	registry *Registry
	cache    *Cache
	queue    *Queue
	store    TaskStore
	tracker  *tracker
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given components.
func NewDispatcher(
	registry *Registry,
	cache *Cache,
	queue *Queue,
	store TaskStore,
	tr *tracker,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		cache:    cache,
		queue:    queue,
		store:    store,
		tracker:  tr,
		logger:   logger,
	}
}

// Submit accepts a work item. Only malformed input fails
// synchronously: an unregistered type returns ErrUnknownTaskType and
// a payload that is not well-formed JSON returns ErrInvalidPayload.
// Task-level failures never surface here; they are observable through
// the returned handle.
func (d *Dispatcher) Submit(ctx context.Context, taskType string, payload []byte) (*SubmitResult, error) {
	tt, ok := d.registry.Lookup(taskType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}

	normalized, err := normalizePayload(payload)
	if err != nil {
		return nil, err
	}
	fingerprint := fingerprintOf(taskType, normalized)

	if value, hit := d.cache.Get(fingerprint); hit {
		d.logger.Debug("serving cached result",
			"task_type", taskType,
			"fingerprint", fingerprint)
		return &SubmitResult{Cached: true, Value: value}, nil
	}

	policy := tt.Policy
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy()
	}

	t := newTask(taskType, normalized, fingerprint, policy)
	live, inserted, err := d.queue.Enqueue(t)
	if err != nil {
		return nil, err
	}

	if inserted {
		d.tracker.add(live)
		if d.store != nil {
			if err := d.store.SaveTask(ctx, record(live)); err != nil {
				d.logger.Error("failed to persist accepted task",
					"task_id", live.ID(),
					"error", err)
			}
		}
		d.logger.Info("task accepted",
			"task_id", live.ID(),
			"task_type", taskType,
			"fingerprint", fingerprint)
	}

	return &SubmitResult{Handle: &Handle{task: live, queue: d.queue}}, nil
}

// Lookup returns a handle to a live (non-terminal) task by ID.
func (d *Dispatcher) Lookup(id uuid.UUID) (*Handle, bool) {
	t, ok := d.tracker.lookup(id)
	if !ok {
		return nil, false
	}
	return &Handle{task: t, queue: d.queue}, true
}

// Invalidate removes a fingerprint from the result cache.
func (d *Dispatcher) Invalidate(key string) bool {
	removed := d.cache.Invalidate(key)
	d.logger.Info("cache invalidation", "key", key, "removed", removed)
	return removed
}
