package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arpitbabbar/task-manager-arch/internal/api"
	apiMiddleware "github.com/arpitbabbar/task-manager-arch/internal/api/middleware"
	"github.com/arpitbabbar/task-manager-arch/internal/service/auth"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	taskHandler := api.NewTaskHandler(app.engine, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.verifier)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Producer endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireRole(auth.RoleProducer))
			r.Post("/tasks", taskHandler.Submit)
			r.Get("/tasks/{id}", taskHandler.GetStatus)
			r.Post("/tasks/{id}/cancel", taskHandler.Cancel)
		})

		// Administrative endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			r.Delete("/cache/{key}", taskHandler.InvalidateCache)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
