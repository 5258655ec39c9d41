package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskRecord is the persisted shape of a task's lifecycle, used for
// status queries across restarts and for startup recovery.
type TaskRecord struct {
	ID           uuid.UUID
	Type         string
	Fingerprint  string
	Payload      []byte
	Status       Status
	Attempts     int
	ErrorMessage string
	Result       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskStore persists task lifecycle state. The engine works against
// this interface; a concrete backing store (Postgres in this repo) is
// an external collaborator satisfying it.
type TaskStore interface {
	// SaveTask persists a newly accepted task.
	SaveTask(ctx context.Context, record *TaskRecord) error

	// UpdateTask records a status change, attempt count, terminal
	// error message, and result for an existing task.
	UpdateTask(ctx context.Context, record *TaskRecord) error

	// GetTask returns the persisted record for a task ID, or
	// ErrTaskNotFound.
	GetTask(ctx context.Context, id uuid.UUID) (*TaskRecord, error)

	// GetUnfinishedTasks returns every task whose status is not
	// terminal, oldest first. Used at startup to re-enqueue work
	// interrupted by a crash.
	GetUnfinishedTasks(ctx context.Context) ([]*TaskRecord, error)
}

// record snapshots a task into its persisted shape.
func record(t *Task) *TaskRecord {
	rec := &TaskRecord{
		ID:          t.ID(),
		Type:        t.Type(),
		Fingerprint: t.Fingerprint(),
		Payload:     t.Payload(),
		Status:      t.Status(),
		Attempts:    t.Attempts(),
		CreatedAt:   t.CreatedAt(),
		UpdatedAt:   t.UpdatedAt(),
	}
	if result, ok := t.Result(); ok {
		rec.Result = result
	}
	if err := t.Err(); err != nil {
		rec.ErrorMessage = err.Error()
	}
	return rec
}
