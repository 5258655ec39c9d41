// Package postgres implements the engine's durable task store on
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arpitbabbar/task-manager-arch/internal/engine"
	"github.com/arpitbabbar/task-manager-arch/internal/store"
)

// terminalStatuses matches the engine's terminal set; tasks outside
// it are recovered at startup.
var terminalStatuses = []string{
	string(engine.StatusSucceeded),
	string(engine.StatusFailed),
	string(engine.StatusCancelled),
}

// TaskStore implements engine.TaskStore using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a task store over the given connection or
// transaction.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// WithTx returns a TaskStore bound to the provided transaction, so
// multiple operations can run atomically under caller control.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx}
}

// SaveTask persists a newly accepted task.
func (s *TaskStore) SaveTask(ctx context.Context, rec *engine.TaskRecord) error {
	query := `
		INSERT INTO tasks (id, type, fingerprint, payload, status, attempts, error_message, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Type,
		rec.Fingerprint,
		rec.Payload,
		string(rec.Status),
		rec.Attempts,
		rec.ErrorMessage,
		rec.Result,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task to database: %w", err)
	}
	return nil
}

// UpdateTask records a lifecycle change for an existing task.
func (s *TaskStore) UpdateTask(ctx context.Context, rec *engine.TaskRecord) error {
	query := `
		UPDATE tasks
		SET status = $1, attempts = $2, error_message = $3, result = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		string(rec.Status),
		rec.Attempts,
		rec.ErrorMessage,
		rec.Result,
		time.Now().UTC(),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return engine.ErrTaskNotFound
	}
	return nil
}

// GetTask returns the persisted record for a task ID.
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*engine.TaskRecord, error) {
	query := `
		SELECT id, type, fingerprint, payload, status, attempts, error_message, result, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	rec, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return rec, nil
}

// GetUnfinishedTasks returns every non-terminal task, oldest first.
func (s *TaskStore) GetUnfinishedTasks(ctx context.Context) ([]*engine.TaskRecord, error) {
	query := `
		SELECT id, type, fingerprint, payload, status, attempts, error_message, result, created_at, updated_at
		FROM tasks
		WHERE status != ALL($1)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, terminalStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*engine.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*engine.TaskRecord, error) {
	var rec engine.TaskRecord
	var status string
	var errorMessage sql.NullString
	var result []byte

	if err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Fingerprint,
		&rec.Payload,
		&status,
		&rec.Attempts,
		&errorMessage,
		&result,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = engine.Status(status)
	rec.ErrorMessage = errorMessage.String
	rec.Result = result
	return &rec, nil
}
