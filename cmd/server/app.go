package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/arpitbabbar/task-manager-arch/internal/config"
	"github.com/arpitbabbar/task-manager-arch/internal/engine"
	"github.com/arpitbabbar/task-manager-arch/internal/platform/postgres"
	"github.com/arpitbabbar/task-manager-arch/internal/service/auth"
)

// application holds the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	verifier auth.TokenVerifier
	engine   *engine.Engine
}

// newApplication wires all dependencies: token verifier, durable
// store (when a database is configured), and the task engine with its
// registered task types. The engine is started before returning.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.verifier, err = auth.NewJWTVerifier(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	var taskStore engine.TaskStore
	if cfg.Database.URL != "" {
		app.db, err = setupDatabase(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up database: %w", err)
		}
		if err := runMigrations(app.db, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		taskStore = postgres.NewTaskStore(app.db)
	} else {
		logger.Warn("no database configured, task state will not survive restarts")
		taskStore = engine.NewMemoryTaskStore()
	}

	app.engine = engine.New(taskStore, engine.Config{
		WorkerCount:      cfg.Engine.WorkerCount,
		CacheCapacity:    cfg.Engine.CacheCapacity,
		DefaultResultTTL: time.Duration(cfg.Engine.DefaultTTLSeconds) * time.Second,
		DefaultTimeout:   time.Duration(cfg.Engine.TaskTimeoutSeconds) * time.Second,
		DefaultPolicy: engine.RetryPolicy{
			MaxAttempts: cfg.Engine.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Engine.RetryBaseDelayMs) * time.Millisecond,
			Multiplier:  cfg.Engine.RetryMultiplier,
			MaxDelay:    time.Duration(cfg.Engine.RetryMaxDelayMs) * time.Millisecond,
		},
	}, logger.With("component", "engine"))

	if err := registerTaskTypes(app.engine); err != nil {
		return nil, fmt.Errorf("failed to register task types: %w", err)
	}

	if err := app.engine.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown completes.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources: the
// engine drains its in-flight tasks first, then the database closes.
func (app *application) cleanup() {
	if app.engine != nil {
		app.engine.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
