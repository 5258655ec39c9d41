package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent executor goroutines
	// to start. If zero or negative, defaults to 1.
	WorkerCount int

	// DefaultTimeout bounds a single execution for task types that do
	// not configure their own.
	DefaultTimeout time.Duration

	// DefaultResultTTL is the cache TTL for task types that do not
	// configure their own.
	DefaultResultTTL time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable
// defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:      2,
		DefaultTimeout:   time.Minute,
		DefaultResultTTL: 5 * time.Minute,
	}
}

// WorkerPool runs the executor goroutines. Each executor loops:
// claim a task, run its handler under the type's timeout, write the
// result to the cache on success, or hand the failure to the retry
// supervisor. A panicking handler fails only its own task.
type WorkerPool struct {
	queue      *Queue
	registry   *Registry
	cache      *Cache
	supervisor *RetrySupervisor
	store      TaskStore
	tracker    *tracker

	config WorkerPoolConfig
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewWorkerPool creates a worker pool. Workers start on Start, not
// here.
func NewWorkerPool(
	queue *Queue,
	registry *Registry,
	cache *Cache,
	supervisor *RetrySupervisor,
	store TaskStore,
	tr *tracker,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultWorkerPoolConfig().DefaultTimeout
	}
	if config.DefaultResultTTL <= 0 {
		config.DefaultResultTTL = DefaultWorkerPoolConfig().DefaultResultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:      queue,
		registry:   registry,
		cache:      cache,
		supervisor: supervisor,
		store:      store,
		tracker:    tr,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Start launches the executor goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.config.WorkerCount)
}

// Stop signals all workers to finish their current task and exit,
// then waits for them.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is one executor loop.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		t, err := p.queue.Claim(p.ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) {
				p.logger.Debug("stopping worker", "worker_id", id)
				return
			}
			p.logger.Error("claim failed", "worker_id", id, "error", err)
			continue
		}
		p.processTask(t, id)
	}
}

// processTask executes a single claimed task end to end.
func (p *WorkerPool) processTask(t *Task, workerID int) {
	logger := p.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID)

	p.persist(t)

	tt, ok := p.registry.Lookup(t.Type())
	if !ok {
		// Recovered task whose type is no longer registered.
		p.settleFailed(t, fmt.Errorf("%w: %s", ErrUnknownTaskType, t.Type()))
		logger.Error("no handler registered for claimed task")
		return
	}

	timeout := tt.Timeout
	if timeout <= 0 {
		timeout = p.config.DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	if !t.beginExecution(cancel) {
		// Cancellation arrived between claim and execution.
		p.settleCancelled(t)
		logger.Info("task cancelled before execution")
		return
	}

	logger.Info("processing task", "attempt", t.Attempts()+1)
	result, err := p.runHandler(execCtx, tt, t)
	t.endExecution()

	switch {
	case err == nil:
		p.settleSucceeded(t, tt, result)
		logger.Info("task completed", "attempts", t.Attempts())

	case t.cancelPending():
		p.settleCancelled(t)
		logger.Info("task cancelled during execution")

	case errors.Is(err, context.DeadlineExceeded):
		// A timed-out execution counts as a transient failure.
		status := p.supervisor.HandleFailure(p.ctx, t, fmt.Errorf("execution timed out after %s: %w", timeout, err))
		logger.Warn("task execution timed out", "timeout", timeout, "status", status)

	default:
		status := p.supervisor.HandleFailure(p.ctx, t, err)
		logger.Warn("task execution failed", "error", err, "status", status)
	}

	if t.Status().Terminal() {
		p.tracker.remove(t.ID())
	}
}

// runHandler invokes the task handler, converting a panic into an
// error so one faulting task cannot take down its executor.
func (p *WorkerPool) runHandler(ctx context.Context, tt TaskType, t *Task) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return tt.Handler(ctx, t.Payload())
}

func (p *WorkerPool) settleSucceeded(t *Task, tt TaskType, result []byte) {
	ttl := tt.ResultTTL
	if ttl <= 0 {
		ttl = p.config.DefaultResultTTL
	}
	// Cache and release before the terminal transition: a producer
	// waking from Await must find the result cached and the
	// fingerprint free for resubmission.
	p.cache.Set(t.Fingerprint(), result, ttl)
	p.queue.Release(t)
	if err := t.markSucceeded(result); err != nil {
		return
	}
	p.persist(t)
}

func (p *WorkerPool) settleFailed(t *Task, taskErr error) {
	p.queue.Release(t)
	if err := t.markFailed(taskErr); err != nil {
		return
	}
	p.persist(t)
}

func (p *WorkerPool) settleCancelled(t *Task) {
	p.queue.Release(t)
	if err := t.markCancelled(ErrTaskCancelled); err != nil {
		return
	}
	p.persist(t)
}

func (p *WorkerPool) persist(t *Task) {
	if p.store == nil {
		return
	}
	// Persistence must survive worker shutdown, so it does not use
	// the pool context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.UpdateTask(ctx, record(t)); err != nil {
		p.logger.Error("failed to persist task state",
			"task_id", t.ID(),
			"status", t.Status(),
			"error", err)
	}
}
