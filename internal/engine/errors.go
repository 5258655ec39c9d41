package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine. Cache misses and an empty
// queue are control flow, not errors, and have no sentinel here.
var (
	// ErrQueueClosed is returned by Claim and Enqueue after Close.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrUnknownTaskType is returned by Submit when no handler is
	// registered for the requested type.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrInvalidPayload is returned by Submit when the payload is not
	// a well-formed JSON document.
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrTaskNotFound is returned by status lookups for unknown task
	// IDs. Store implementations return it too.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskTerminal is returned when an operation targets a task
	// that already reached a terminal status.
	ErrTaskTerminal = errors.New("task already in a terminal state")

	// ErrIllegalTransition indicates an attempted status change the
	// lifecycle does not permit.
	ErrIllegalTransition = errors.New("illegal task status transition")

	// ErrRetriesExhausted wraps the last execution error when a task
	// reaches its retry ceiling.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrTaskCancelled is recorded as the terminal error of a
	// cancelled task.
	ErrTaskCancelled = errors.New("task cancelled")
)

// PermanentError marks a handler failure as non-retryable. The retry
// supervisor moves the task straight to failed without consulting the
// retry policy.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retry supervisor treats it as terminal.
// A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked
// with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
