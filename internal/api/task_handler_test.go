package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitbabbar/task-manager-arch/internal/engine"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires the task handler routes the way the server does,
// minus authentication.
func newTestRouter(eng *engine.Engine) http.Handler {
	h := NewTaskHandler(eng, setupTestLogger())
	r := chi.NewRouter()
	r.Post("/tasks", h.Submit)
	r.Get("/tasks/{id}", h.GetStatus)
	r.Post("/tasks/{id}/cancel", h.Cancel)
	r.Delete("/cache/{key}", h.InvalidateCache)
	return r
}

// newTestEngine registers an echo task type. Workers start only when
// started is true, so submissions stay pending otherwise.
func newTestEngine(t *testing.T, started bool) *engine.Engine {
	t.Helper()
	eng := engine.New(engine.NewMemoryTaskStore(), engine.Config{WorkerCount: 1}, setupTestLogger())
	require.NoError(t, eng.RegisterType(engine.TaskType{
		Name: "echo",
		Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
			return payload, nil
		},
		ResultTTL: time.Minute,
	}))
	if started {
		require.NoError(t, eng.Start(context.Background()))
	}
	t.Cleanup(eng.Stop)
	return eng
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSubmit_AcceptsTask(t *testing.T) {
	router := newTestRouter(newTestEngine(t, false))

	rr := doRequest(t, router, http.MethodPost, "/tasks", []byte(`{"type":"echo","payload":{"n":1}}`))

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp SubmitTaskResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(engine.StatusPending), resp.Status)
	assert.NotEmpty(t, resp.Fingerprint)
	_, err := uuid.Parse(resp.TaskID)
	assert.NoError(t, err)
}

func TestSubmit_DeduplicatesEquivalentPayloads(t *testing.T) {
	router := newTestRouter(newTestEngine(t, false))

	first := doRequest(t, router, http.MethodPost, "/tasks", []byte(`{"type":"echo","payload":{"a":1,"b":2}}`))
	second := doRequest(t, router, http.MethodPost, "/tasks", []byte(`{"type":"echo","payload":{"b":2, "a":1}}`))

	require.Equal(t, http.StatusAccepted, first.Code)
	require.Equal(t, http.StatusAccepted, second.Code)

	var firstResp, secondResp SubmitTaskResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.Equal(t, firstResp.TaskID, secondResp.TaskID)
	assert.Equal(t, firstResp.Fingerprint, secondResp.Fingerprint)
}

func TestSubmit_ServesCachedResult(t *testing.T) {
	eng := newTestEngine(t, true)
	router := newTestRouter(eng)

	// Complete one execution so its result lands in the cache.
	res, err := eng.Submit(context.Background(), "echo", []byte(`{"n":1}`))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Handle.Await(ctx)
	require.NoError(t, err)

	rr := doRequest(t, router, http.MethodPost, "/tasks", []byte(`{"type":"echo","payload":{"n":1}}`))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp CachedResultResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.JSONEq(t, `{"n":1}`, string(resp.Result))
}

func TestSubmit_BadRequests(t *testing.T) {
	router := newTestRouter(newTestEngine(t, false))

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed body", body: `{"type":`},
		{name: "missing type", body: `{"payload":{"n":1}}`},
		{name: "missing payload", body: `{"type":"echo"}`},
		{name: "unknown type", body: `{"type":"nope","payload":{"n":1}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, "/tasks", []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGetStatus(t *testing.T) {
	eng := newTestEngine(t, false)
	router := newTestRouter(eng)

	res, err := eng.Submit(context.Background(), "echo", []byte(`{"n":1}`))
	require.NoError(t, err)

	rr := doRequest(t, router, http.MethodGet, "/tasks/"+res.Handle.ID().String(), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, res.Handle.ID().String(), resp.TaskID)
	assert.Equal(t, "echo", resp.Type)
	assert.Equal(t, string(engine.StatusPending), resp.Status)
	assert.Equal(t, 0, resp.Attempts)
}

func TestGetStatus_Errors(t *testing.T) {
	router := newTestRouter(newTestEngine(t, false))

	rr := doRequest(t, router, http.MethodGet, "/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/tasks/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancel_PendingTask(t *testing.T) {
	eng := newTestEngine(t, false)
	router := newTestRouter(eng)

	res, err := eng.Submit(context.Background(), "echo", []byte(`{"n":1}`))
	require.NoError(t, err)

	rr := doRequest(t, router, http.MethodPost, "/tasks/"+res.Handle.ID().String()+"/cancel", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(engine.StatusCancelled), resp.Status)
}

func TestCancel_Errors(t *testing.T) {
	eng := newTestEngine(t, true)
	router := newTestRouter(eng)

	rr := doRequest(t, router, http.MethodPost, "/tasks/not-a-uuid/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/tasks/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Cancelling an already settled task conflicts.
	res, err := eng.Submit(context.Background(), "echo", []byte(`{"n":2}`))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Handle.Await(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rr = doRequest(t, router, http.MethodPost, "/tasks/"+res.Handle.ID().String()+"/cancel", nil)
		return rr.Code == http.StatusConflict
	}, time.Second, 5*time.Millisecond)
}

func TestInvalidateCache(t *testing.T) {
	eng := newTestEngine(t, true)
	router := newTestRouter(eng)

	res, err := eng.Submit(context.Background(), "echo", []byte(`{"n":1}`))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = res.Handle.Await(ctx)
	require.NoError(t, err)

	rr := doRequest(t, router, http.MethodDelete, "/cache/"+res.Handle.Fingerprint(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// The next identical submission re-enqueues instead of hitting the
	// cache.
	submit := doRequest(t, router, http.MethodPost, "/tasks", []byte(`{"type":"echo","payload":{"n":1}}`))
	assert.Equal(t, http.StatusAccepted, submit.Code)
}
