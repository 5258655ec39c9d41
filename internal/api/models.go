package api

import (
	"encoding/json"
	"time"

	"github.com/arpitbabbar/task-manager-arch/internal/engine"
)

// SubmitTaskRequest is the payload for POST /api/tasks.
type SubmitTaskRequest struct {
	Type    string          `json:"type"    validate:"required,max=128"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// SubmitTaskResponse is returned for a submission that enqueued (or
// deduplicated onto) a task.
type SubmitTaskResponse struct {
	TaskID      string `json:"task_id"`
	Fingerprint string `json:"fingerprint"`
	Status      string `json:"status"`
}

// CachedResultResponse is returned when a submission was served from
// the result cache.
type CachedResultResponse struct {
	Cached bool            `json:"cached"`
	Result json.RawMessage `json:"result"`
}

// TaskStatusResponse reports a task's lifecycle state.
type TaskStatusResponse struct {
	TaskID    string          `json:"task_id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// newTaskStatusResponse maps an engine record to its API shape.
func newTaskStatusResponse(rec *engine.TaskRecord) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:    rec.ID.String(),
		Type:      rec.Type,
		Status:    string(rec.Status),
		Attempts:  rec.Attempts,
		Result:    rec.Result,
		Error:     rec.ErrorMessage,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
