package engine

import (
	"io"
	"log/slog"
)

// setupTestLogger returns a logger that discards output, keeping test
// output clean.
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
