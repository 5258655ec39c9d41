package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arpitbabbar/task-manager-arch/internal/engine"
)

// registerTaskTypes installs the task handlers this deployment
// executes. Producers reference these names in submit calls.
func registerTaskTypes(eng *engine.Engine) error {
	return eng.RegisterType(engine.TaskType{
		Name:      "http_fetch",
		Handler:   fetchURL,
		ResultTTL: 10 * time.Minute,
		Timeout:   30 * time.Second,
	})
}

// fetchURLPayload is the payload shape for http_fetch tasks.
type fetchURLPayload struct {
	URL string `json:"url"`
}

// fetchURLResult is the cached result of an http_fetch task.
type fetchURLResult struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

// maxFetchBody caps how much of a fetched response is kept.
const maxFetchBody = 1 << 20

// fetchURL retrieves a URL and returns its status and body. Network
// errors and 5xx responses are transient and retried; a 4xx response
// is a permanent failure since retrying cannot change it.
func fetchURL(ctx context.Context, payload []byte) ([]byte, error) {
	var p fetchURLPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, engine.Permanent(fmt.Errorf("decoding payload: %w", err))
	}
	if p.URL == "" {
		return nil, engine.Permanent(fmt.Errorf("url is required"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, engine.Permanent(fmt.Errorf("building request: %w", err))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, engine.Permanent(fmt.Errorf("fetch returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("fetch returned %d", resp.StatusCode)
	}

	return json.Marshal(fetchURLResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	})
}
