package api

import (
	"errors"
	"net/http"

	"github.com/arpitbabbar/task-manager-arch/internal/engine"
)

// MapErrorToStatusCode maps engine errors to HTTP status codes
// without leaking internal error details to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownTaskType),
		errors.Is(err, engine.ErrInvalidPayload):
		return http.StatusBadRequest

	case errors.Is(err, engine.ErrTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, engine.ErrTaskTerminal):
		return http.StatusConflict

	case errors.Is(err, engine.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for an
// engine error.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, engine.ErrUnknownTaskType):
		return "Unknown task type"
	case errors.Is(err, engine.ErrInvalidPayload):
		return "Payload must be a well-formed JSON document"
	case errors.Is(err, engine.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, engine.ErrTaskTerminal):
		return "Task already completed"
	case errors.Is(err, engine.ErrQueueClosed):
		return "Service is shutting down"
	default:
		return "An unexpected error occurred"
	}
}
