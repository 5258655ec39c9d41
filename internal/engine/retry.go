package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetrySupervisor decides what happens after a failed execution:
// transient failures are re-enqueued with exponential backoff and
// delayed visibility until the task's retry ceiling is reached;
// permanent failures and exhausted policies are terminal. Producers
// never see a transient failure; only terminal outcomes surface.
type RetrySupervisor struct {
	queue  *Queue
	store  TaskStore
	logger *slog.Logger
}

// NewRetrySupervisor creates a supervisor writing retry decisions to
// the given queue and store.
func NewRetrySupervisor(queue *Queue, store TaskStore, logger *slog.Logger) *RetrySupervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrySupervisor{queue: queue, store: store, logger: logger}
}

// HandleFailure routes a reported execution failure for a task the
// caller holds in running state. It returns the status the task
// ended up in: retrying, or a terminal failed.
func (s *RetrySupervisor) HandleFailure(ctx context.Context, t *Task, taskErr error) Status {
	logger := s.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"error", taskErr)

	if IsPermanent(taskErr) {
		s.fail(ctx, t, taskErr)
		logger.Warn("task failed permanently", "attempts", t.Attempts())
		return StatusFailed
	}

	policy := t.Policy()
	attemptsBefore := t.Attempts()

	if attemptsBefore+1 >= policy.maxAttempts() {
		s.fail(ctx, t, fmt.Errorf("%w: %w", ErrRetriesExhausted, taskErr))
		logger.Warn("task retry policy exhausted", "attempts", t.Attempts())
		return StatusFailed
	}

	// Delay derives from the attempts completed before this failure,
	// so the first retry waits BaseDelay exactly.
	delay := policy.Delay(attemptsBefore)

	if err := t.markRetrying(); err != nil {
		// Cancelled mid-flight; the worker settles the final status.
		return t.Status()
	}
	s.persist(ctx, t)

	if err := s.queue.ScheduleRetry(t, time.Now().Add(delay)); err != nil {
		// Queue closed during shutdown; the task can never run again.
		s.queue.Release(t)
		if ffErr := t.forceFail(fmt.Errorf("re-enqueue failed: %w", taskErr)); ffErr == nil {
			s.persist(ctx, t)
		}
		return StatusFailed
	}

	logger.Info("task scheduled for retry",
		"attempts", t.Attempts(),
		"delay", delay)
	return StatusRetrying
}

// fail settles a terminal failure for a task still in running state.
// The fingerprint is released before the terminal transition so a
// producer waking from Await can resubmit immediately.
func (s *RetrySupervisor) fail(ctx context.Context, t *Task, taskErr error) {
	s.queue.Release(t)
	if err := t.markFailed(taskErr); err != nil {
		return
	}
	s.persist(ctx, t)
}

func (s *RetrySupervisor) persist(ctx context.Context, t *Task) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateTask(ctx, record(t)); err != nil {
		s.logger.Error("failed to persist task state",
			"task_id", t.ID(),
			"status", t.Status(),
			"error", err)
	}
}
