package engine

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Queue is the pending-task queue. It keeps three structures behind a
// single mutex:
//
//   - ready: FIFO slice of claimable pending tasks
//   - delayed: min-heap of retrying tasks keyed by next-visible time,
//     merged into Claim's search once their delay elapses
//   - live: fingerprint index of every non-terminal task, backing
//     deduplication
//
// Claim blocks cooperatively on an empty queue and wakes when a task
// is enqueued, a delayed retry matures, the caller's context ends, or
// the queue closes.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	ready   []*Task
	delayed delayHeap
	live    map[string]*Task

	closed bool
	logger *slog.Logger
}

// NewQueue creates an empty task queue.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		live:   make(map[string]*Task),
		logger: logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends t to the tail of the queue. If a live task with the
// same fingerprint already exists (pending, running, or retrying),
// enqueueing is a no-op and the existing task is returned with
// inserted == false, so both callers end up holding the same task.
func (q *Queue) Enqueue(t *Task) (task *Task, inserted bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false, ErrQueueClosed
	}

	// A terminal task whose release has not landed yet must not absorb
	// a fresh submission.
	if existing, ok := q.live[t.Fingerprint()]; ok && !existing.Status().Terminal() {
		q.logger.Debug("deduplicated task submission",
			"task_id", existing.ID(),
			"task_type", existing.Type(),
			"fingerprint", existing.Fingerprint())
		return existing, false, nil
	}

	q.live[t.Fingerprint()] = t
	q.ready = append(q.ready, t)
	q.cond.Signal()

	q.logger.Debug("task enqueued",
		"task_id", t.ID(),
		"task_type", t.Type(),
		"queue_len", len(q.ready))
	return t, true, nil
}

// Claim removes and returns the head task, transitioning it to
// running. It blocks while the queue is empty, waking when a task
// becomes claimable. No two concurrent claims ever return the same
// task. Returns ctx.Err() on cancellation and ErrQueueClosed after
// Close.
func (q *Queue) Claim(ctx context.Context) (*Task, error) {
	// Wake the wait loop when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q.closed {
			return nil, ErrQueueClosed
		}

		q.promoteVisibleLocked(time.Now())

		if len(q.ready) > 0 {
			t := q.ready[0]
			q.ready = q.ready[1:]
			if err := t.transition(StatusRunning); err != nil {
				// Lost a race with cancellation; drop and keep looking.
				delete(q.live, t.Fingerprint())
				continue
			}
			return t, nil
		}

		if next := q.delayed.peek(); next != nil {
			// Sleep only until the earliest delayed retry matures.
			timer := time.AfterFunc(time.Until(next.visibleAt), func() {
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			})
			q.cond.Wait()
			timer.Stop()
		} else {
			q.cond.Wait()
		}
	}
}

// ScheduleRetry parks a retrying task until visibleAt. The task stays
// invisible to Claim until then, at which point it returns to pending
// at the head of eligibility in time order.
func (q *Queue) ScheduleRetry(t *Task, visibleAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	heap.Push(&q.delayed, &delayedTask{task: t, visibleAt: visibleAt})
	// Wake a waiter so it re-arms its timer against the new earliest
	// visibility time.
	q.cond.Broadcast()

	q.logger.Debug("scheduled task retry",
		"task_id", t.ID(),
		"task_type", t.Type(),
		"visible_at", visibleAt)
	return nil
}

// Release drops the fingerprint index entry for a task that reached a
// terminal status, making the fingerprint submittable again.
func (q *Queue) Release(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if current, ok := q.live[t.Fingerprint()]; ok && current == t {
		delete(q.live, t.Fingerprint())
	}
}

// Cancel cancels t. A task still waiting in the queue (pending or
// parked for retry) is removed and moved to cancelled; Cancel then
// returns true. For a running task cancellation is best effort: the
// executing handler's context is cancelled and the worker settles the
// final status; Cancel returns false. Cancelling a terminal task is a
// no-op returning false.
func (q *Queue) Cancel(t *Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, queued := range q.ready {
		if queued == t {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			return q.cancelWaitingLocked(t)
		}
	}

	for _, parked := range q.delayed {
		if parked.task == t {
			heap.Remove(&q.delayed, parked.index)
			return q.cancelWaitingLocked(t)
		}
	}

	// Not in any queue structure: either running or already terminal.
	t.requestCancel()
	return false
}

func (q *Queue) cancelWaitingLocked(t *Task) bool {
	if err := t.markCancelled(ErrTaskCancelled); err != nil {
		return false
	}
	delete(q.live, t.Fingerprint())
	q.logger.Info("task cancelled before claim",
		"task_id", t.ID(),
		"task_type", t.Type())
	return true
}

// Close shuts the queue down. Blocked and future Claim calls return
// ErrQueueClosed; further Enqueue and ScheduleRetry calls fail.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
	q.logger.Info("task queue closed")
}

// Len returns the number of immediately claimable tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteVisibleLocked(time.Now())
	return len(q.ready)
}

// DelayedLen returns the number of tasks parked for retry.
func (q *Queue) DelayedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delayed.Len()
}

// promoteVisibleLocked moves matured delayed tasks back into the FIFO
// in visibility order, restoring their pending status.
func (q *Queue) promoteVisibleLocked(now time.Time) {
	for {
		next := q.delayed.peek()
		if next == nil || next.visibleAt.After(now) {
			return
		}
		heap.Pop(&q.delayed)
		if err := next.task.transition(StatusPending); err != nil {
			// Cancelled while parked; forget it.
			delete(q.live, next.task.Fingerprint())
			continue
		}
		q.ready = append(q.ready, next.task)
	}
}
