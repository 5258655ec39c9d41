package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Config holds the knobs for one engine instance.
type Config struct {
	// WorkerCount is the number of concurrent executors.
	WorkerCount int

	// CacheCapacity bounds the result cache; zero or below means
	// unbounded.
	CacheCapacity int

	// DefaultResultTTL applies to task types without their own TTL.
	DefaultResultTTL time.Duration

	// DefaultTimeout bounds executions of task types without their
	// own timeout.
	DefaultTimeout time.Duration

	// DefaultPolicy applies to task types without their own retry
	// policy. Zero value means DefaultRetryPolicy.
	DefaultPolicy RetryPolicy
}

// DefaultConfig returns an engine Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:      2,
		CacheCapacity:    1024,
		DefaultResultTTL: 5 * time.Minute,
		DefaultTimeout:   time.Minute,
		DefaultPolicy:    DefaultRetryPolicy(),
	}
}

// Engine wires the queue, cache, worker pool, retry supervisor, and
// dispatcher into one task-processing core. All shared state is owned
// here and injected into the components; nothing is ambient.
type Engine struct {
	config     Config
	registry   *Registry
	cache      *Cache
	queue      *Queue
	tracker    *tracker
	dispatcher *Dispatcher
	supervisor *RetrySupervisor
	pool       *WorkerPool
	store      TaskStore
	logger     *slog.Logger
}

// New creates an engine over the given task store. A nil store
// disables persistence (and with it, recovery across restarts).
func New(store TaskStore, config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.DefaultResultTTL <= 0 {
		config.DefaultResultTTL = DefaultConfig().DefaultResultTTL
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if config.DefaultPolicy == (RetryPolicy{}) {
		config.DefaultPolicy = DefaultRetryPolicy()
	}

	registry := NewRegistry()
	cache := NewCache(config.CacheCapacity, logger.With("component", "result_cache"))
	queue := NewQueue(logger.With("component", "task_queue"))
	tr := newTracker()
	supervisor := NewRetrySupervisor(queue, store, logger.With("component", "retry_supervisor"))
	pool := NewWorkerPool(queue, registry, cache, supervisor, store, tr, WorkerPoolConfig{
		WorkerCount:      config.WorkerCount,
		DefaultTimeout:   config.DefaultTimeout,
		DefaultResultTTL: config.DefaultResultTTL,
	}, logger.With("component", "worker_pool"))
	dispatcher := NewDispatcher(registry, cache, queue, store, tr, logger.With("component", "dispatcher"))

	return &Engine{
		config:     config,
		registry:   registry,
		cache:      cache,
		queue:      queue,
		tracker:    tr,
		dispatcher: dispatcher,
		supervisor: supervisor,
		pool:       pool,
		store:      store,
		logger:     logger,
	}
}

// RegisterType adds a task type. Types without a retry policy inherit
// the engine default.
func (e *Engine) RegisterType(tt TaskType) error {
	if tt.Policy == (RetryPolicy{}) {
		tt.Policy = e.config.DefaultPolicy
	}
	return e.registry.Register(tt)
}

// Start recovers unfinished persisted tasks and launches the worker
// pool.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}
	e.pool.Start()
	return nil
}

// Stop shuts the engine down: the queue stops handing out work, then
// the workers finish their in-flight tasks and exit.
func (e *Engine) Stop() {
	e.queue.Close()
	e.pool.Stop()
	e.logger.Info("engine stopped")
}

// Submit accepts a work item. See Dispatcher.Submit.
func (e *Engine) Submit(ctx context.Context, taskType string, payload []byte) (*SubmitResult, error) {
	return e.dispatcher.Submit(ctx, taskType, payload)
}

// GetStatus reports the current status of a task by ID. Live tasks
// answer from memory; terminal tasks fall back to the durable store.
// Returns ErrTaskNotFound for unknown IDs.
func (e *Engine) GetStatus(ctx context.Context, id uuid.UUID) (*TaskRecord, error) {
	if t, ok := e.tracker.lookup(id); ok {
		return record(t), nil
	}
	if e.store == nil {
		return nil, ErrTaskNotFound
	}
	return e.store.GetTask(ctx, id)
}

// Cancel cancels a task by ID: immediate before claim, best effort
// after. Returns ErrTaskNotFound for unknown IDs and ErrTaskTerminal
// when the task already settled.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (*TaskRecord, error) {
	t, ok := e.tracker.lookup(id)
	if !ok {
		rec, err := e.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		return rec, ErrTaskTerminal
	}
	if t.Status().Terminal() {
		return record(t), ErrTaskTerminal
	}

	if e.queue.Cancel(t) {
		e.tracker.remove(t.ID())
		if e.store != nil {
			if err := e.store.UpdateTask(ctx, record(t)); err != nil {
				e.logger.Error("failed to persist cancellation",
					"task_id", t.ID(),
					"error", err)
			}
		}
	}
	return record(t), nil
}

// Invalidate removes a fingerprint from the result cache.
func (e *Engine) Invalidate(key string) bool {
	return e.dispatcher.Invalidate(key)
}

// Cache exposes the result cache for observation.
func (e *Engine) Cache() *Cache { return e.cache }

// recover re-enqueues unfinished persisted tasks: pending and
// retrying tasks go straight back into the queue, and tasks stuck in
// running state from a crashed run are reset to pending first.
func (e *Engine) recover(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	unfinished, err := e.store.GetUnfinishedTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load unfinished tasks: %w", err)
	}
	if len(unfinished) == 0 {
		return nil
	}

	e.logger.Info("recovering unfinished tasks", "count", len(unfinished))

	for _, rec := range unfinished {
		tt, ok := e.registry.Lookup(rec.Type)
		if !ok {
			e.logger.Warn("skipping recovered task with unregistered type",
				"task_id", rec.ID,
				"task_type", rec.Type)
			continue
		}

		policy := tt.Policy
		if policy == (RetryPolicy{}) {
			policy = e.config.DefaultPolicy
		}

		t := newTask(rec.Type, rec.Payload, rec.Fingerprint, policy)
		t.id = rec.ID
		t.attempts = rec.Attempts
		t.createdAt = rec.CreatedAt

		live, inserted, err := e.queue.Enqueue(t)
		if err != nil {
			return err
		}
		if !inserted {
			e.logger.Warn("recovered task collided with live fingerprint",
				"task_id", rec.ID,
				"live_task_id", live.ID())
			continue
		}
		e.tracker.add(t)

		if rec.Status != StatusPending {
			if err := e.store.UpdateTask(ctx, record(t)); err != nil {
				e.logger.Error("failed to reset recovered task status",
					"task_id", t.ID(),
					"error", err)
			}
		}
	}
	return nil
}
