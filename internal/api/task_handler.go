// Package api implements the producer-facing HTTP handlers over the
// task engine: submit, status polling, cancellation, and cache
// invalidation.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arpitbabbar/task-manager-arch/internal/api/shared"
	"github.com/arpitbabbar/task-manager-arch/internal/engine"
)

// TaskHandler exposes the engine's producer contract over HTTP.
type TaskHandler struct {
	engine   *engine.Engine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewTaskHandler creates a TaskHandler over the given engine.
func NewTaskHandler(eng *engine.Engine, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		engine:   eng,
		validate: validator.New(),
		logger:   logger,
	}
}

// Submit handles POST /api/tasks. A cache hit returns the stored
// result immediately; a miss enqueues a deduplicated task and returns
// 202 with its handle. Task-level failures never surface here.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing or invalid fields")
		return
	}

	result, err := h.engine.Submit(r.Context(), req.Type, req.Payload)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if result.Cached {
		shared.RespondWithJSON(w, r, http.StatusOK, CachedResultResponse{
			Cached: true,
			Result: result.Value,
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{
		TaskID:      result.Handle.ID().String(),
		Fingerprint: result.Handle.Fingerprint(),
		Status:      string(result.Handle.Status()),
	})
}

// GetStatus handles GET /api/tasks/{id}.
func (h *TaskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	rec, err := h.engine.GetStatus(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskStatusResponse(rec))
}

// Cancel handles POST /api/tasks/{id}/cancel. Cancellation is
// immediate before a worker claims the task and best effort after.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	rec, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskStatusResponse(rec))
}

// InvalidateCache handles DELETE /api/cache/{key}.
func (h *TaskHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Cache key required")
		return
	}

	h.engine.Invalidate(key)
	w.WriteHeader(http.StatusNoContent)
}
