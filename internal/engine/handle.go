package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle is what a producer holds while its task is in flight. It
// supports polling, awaiting, and cancellation; it never exposes the
// task's internals for mutation.
type Handle struct {
	task  *Task
	queue *Queue
}

// ID returns the task's unique identifier.
func (h *Handle) ID() uuid.UUID { return h.task.ID() }

// Fingerprint returns the task's deduplication key. Two handles from
// deduplicated submissions share it (and the underlying task).
func (h *Handle) Fingerprint() string { return h.task.Fingerprint() }

// Status returns the task's current status.
func (h *Handle) Status() Status { return h.task.Status() }

// Attempts returns the number of completed execution attempts.
func (h *Handle) Attempts() int { return h.task.Attempts() }

// Result returns the task result; the second value is false until the
// task has succeeded.
func (h *Handle) Result() ([]byte, bool) { return h.task.Result() }

// Err returns the terminal error of a failed or cancelled task, nil
// otherwise.
func (h *Handle) Err() error { return h.task.Err() }

// Await blocks until the task reaches a terminal status or ctx ends.
// On success it returns the result; on terminal failure it returns
// the task's error.
func (h *Handle) Await(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.task.Done():
	}
	if result, ok := h.task.Result(); ok {
		return result, nil
	}
	return nil, h.task.Err()
}

// Cancel requests cancellation. Before a worker claims the task the
// cancellation is immediate and Cancel returns true; afterwards it is
// best effort (the running handler's context is cancelled) and Cancel
// returns false.
func (h *Handle) Cancel() bool {
	return h.queue.Cancel(h.task)
}

// tracker indexes live tasks by ID so status lookups and cancellation
// over the API can find them. Terminal tasks are dropped; the durable
// store answers for those.
type tracker struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Task
}

func newTracker() *tracker {
	return &tracker{byID: make(map[uuid.UUID]*Task)}
}

func (tr *tracker) add(t *Task) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.byID[t.ID()] = t
}

func (tr *tracker) lookup(id uuid.UUID) (*Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	t, ok := tr.byID[id]
	return t, ok
}

func (tr *tracker) remove(id uuid.UUID) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.byID, id)
}
