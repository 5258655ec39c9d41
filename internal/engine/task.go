package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can occur from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// legalTransitions defines the allowed status transitions. Retrying
// moves back to pending once its delay elapses; everything else is
// forward-only.
var legalTransitions = map[Status][]Status{
	StatusPending:  {StatusRunning, StatusCancelled},
	StatusRunning:  {StatusSucceeded, StatusFailed, StatusRetrying, StatusCancelled},
	StatusRetrying: {StatusPending, StatusFailed, StatusCancelled},
}

func canTransition(from, to Status) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task represents a single unit of work accepted by the dispatcher.
// The queue owns a task until a worker claims it; ownership transfers
// to the claiming worker for the duration of execution and returns to
// the queue on a retryable failure.
type Task struct {
	mu sync.Mutex

	id          uuid.UUID
	taskType    string
	payload     []byte
	fingerprint string
	policy      RetryPolicy

	status    Status
	attempts  int
	createdAt time.Time
	updatedAt time.Time

	result []byte
	err    error

	// execCancel cancels the running handler's context. Set by the
	// executing worker, cleared when execution ends.
	execCancel      func()
	cancelRequested bool

	// done is closed exactly once, when the task reaches a terminal
	// status. Await blocks on it.
	done chan struct{}
}

// newTask builds a pending task. Payload bytes must already be
// normalized by the caller (fingerprinting does this).
func newTask(taskType string, payload []byte, fingerprint string, policy RetryPolicy) *Task {
	now := time.Now().UTC()
	return &Task{
		id:          uuid.New(),
		taskType:    taskType,
		payload:     payload,
		fingerprint: fingerprint,
		policy:      policy,
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
		done:        make(chan struct{}),
	}
}

// ID returns the task's unique identifier
func (t *Task) ID() uuid.UUID { return t.id }

// Type returns the task type identifier
func (t *Task) Type() string { return t.taskType }

// Payload returns the normalized task payload
func (t *Task) Payload() []byte { return t.payload }

// Fingerprint returns the deduplication/cache key for this task
func (t *Task) Fingerprint() string { return t.fingerprint }

// Policy returns the retry policy attached at creation time
func (t *Task) Policy() RetryPolicy { return t.policy }

// Status returns the current task status
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Attempts returns the number of completed execution attempts
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// CreatedAt returns the task creation timestamp
func (t *Task) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the timestamp of the last status change
func (t *Task) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

// Result returns the task result once the task has succeeded.
// The second return value is false until then.
func (t *Task) Result() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusSucceeded {
		return nil, false
	}
	return t.result, true
}

// Err returns the terminal error for a failed or cancelled task, nil
// otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusFailed || t.status == StatusCancelled {
		return t.err
	}
	return nil
}

// Done returns a channel closed when the task reaches a terminal
// status.
func (t *Task) Done() <-chan struct{} { return t.done }

// transition moves the task to the given status, enforcing the legal
// transition set. Returns ErrTaskTerminal when the task is already
// terminal and ErrIllegalTransition otherwise.
func (t *Task) transition(to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(to)
}

func (t *Task) transitionLocked(to Status) error {
	if t.status.Terminal() {
		return ErrTaskTerminal
	}
	if !canTransition(t.status, to) {
		return ErrIllegalTransition
	}
	t.status = to
	t.updatedAt = time.Now().UTC()
	if to.Terminal() {
		close(t.done)
	}
	return nil
}

// markSucceeded records the result and moves the task to succeeded,
// counting the completed attempt.
func (t *Task) markSucceeded(result []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusSucceeded); err != nil {
		return err
	}
	t.attempts++
	t.result = result
	return nil
}

// markFailed records the terminal error and moves the task to failed,
// counting the completed attempt.
func (t *Task) markFailed(taskErr error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusFailed); err != nil {
		return err
	}
	t.attempts++
	t.err = taskErr
	return nil
}

// markRetrying counts the failed attempt and moves the task to
// retrying. The queue makes it visible again after its backoff delay.
func (t *Task) markRetrying() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusRetrying); err != nil {
		return err
	}
	t.attempts++
	return nil
}

// forceFail settles a parked retrying task that can no longer be
// re-enqueued (queue closed during shutdown). Unlike markFailed it
// does not count an attempt; the failed attempt was already counted
// when the task moved to retrying.
func (t *Task) forceFail(taskErr error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusFailed); err != nil {
		return err
	}
	t.err = taskErr
	return nil
}

// markCancelled moves the task to cancelled with the given reason.
func (t *Task) markCancelled(reason error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusCancelled); err != nil {
		return err
	}
	t.err = reason
	return nil
}

// beginExecution registers the cancel function for the running
// handler's context. Returns false if cancellation was already
// requested, in which case the worker must not run the handler.
func (t *Task) beginExecution(cancel func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelRequested {
		return false
	}
	t.execCancel = cancel
	return true
}

// endExecution clears the handler cancel hook.
func (t *Task) endExecution() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.execCancel = nil
}

// requestCancel flags the task for cancellation and, if a handler is
// currently running, cancels its context. Best effort: the handler
// observes the cancellation only at its own safe points.
func (t *Task) requestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelRequested = true
	if t.execCancel != nil {
		t.execCancel()
	}
}

// cancelPending reports whether cancellation was requested while the
// task was not yet (or no longer) executing.
func (t *Task) cancelPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelRequested
}
