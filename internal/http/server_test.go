package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernlabs/taskd/internal/conversation"
	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/logging"
	"github.com/fernlabs/taskd/internal/task"
)

func newTestServer(t *testing.T, authToken string) (*Server, *task.MemoryStore) {
	t.Helper()
	store := task.NewMemoryStore()
	sessions := conversation.NewMemorySessionStore(0)
	t.Cleanup(sessions.Close)
	normalizer := dates.New()
	engine := conversation.NewEngine(store, sessions, normalizer, logging.NewNop(), 30*time.Minute)

	s := NewServer(Config{
		Addr:      ":0",
		AuthToken: authToken,
	}, store, engine, normalizer, logging.NewNop(), prometheus.NewRegistry())
	return s, store
}

func doJSON(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echoContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

var asUser = map[string]string{userIDHeader: "u1"}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBearerAuth(t *testing.T) {
	s, _ := newTestServer(t, "hunter2")

	rec := doJSON(t, s, http.MethodGet, "/api/v1/tasks", "", asUser)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks", "", map[string]string{
		userIDHeader: "u1", "Authorization": "Bearer wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks", "", map[string]string{
		userIDHeader: "u1", "Authorization": "Bearer hunter2",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health and metrics stay open.
	rec = doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTask(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tasks",
		`{"title":"buy milk","priority":"high","due_date":"2030-06-01T17:00:00Z"}`, asUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "buy milk", got.Title)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, 17, got.DueDate.UTC().Hour())
	assert.Equal(t, "u1", got.UserID)
}

func TestCreateTask_NaturalLanguageDue(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tasks",
		`{"title":"buy milk","due_date":"tomorrow at 5pm"}`, asUser)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.DueDate)
	assert.Equal(t, 17, got.DueDate.Hour())
}

func TestCreateTask_Rejections(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/tasks", `{"title":""}`, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/tasks", `{"title":"x","priority":"severe"}`, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/tasks", `{"title":"x","due_date":"yesterday"}`, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "past")

	// Missing user header.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/tasks", `{"title":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks(t *testing.T) {
	s, store := newTestServer(t, "")
	mustCreate(t, store, "u1", "one")
	done := mustCreate(t, store, "u1", "two")
	mustCreate(t, store, "u2", "other")
	_, err := store.SetCompleted(testCtx(), "u1", done.ID, true)
	require.NoError(t, err)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/tasks", "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks?status=completed", "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	require.Len(t, completed, 1)
	assert.Equal(t, "two", completed[0].Title)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks?status=bogus", "", asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// user_id query parameter works when the header is absent.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks?user_id=u1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var viaQuery []task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &viaQuery))
	assert.Len(t, viaQuery, 2)

	// Empty result is a JSON array, not null.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks", "", map[string]string{userIDHeader: "u3"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetUpdateDelete(t *testing.T) {
	s, store := newTestServer(t, "")
	created := mustCreate(t, store, "u1", "draft")

	path := fmt.Sprintf("/api/v1/tasks/%d", created.ID)

	rec := doJSON(t, s, http.MethodGet, path, "", asUser)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user cannot see it.
	rec = doJSON(t, s, http.MethodGet, path, "", map[string]string{userIDHeader: "u2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, path, `{"priority":"low","title":"final"}`, asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "final", got.Title)
	assert.Equal(t, task.PriorityLow, got.Priority)

	rec = doJSON(t, s, http.MethodPatch, path, `{}`, asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, path, "", asUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, path, "", asUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/tasks/abc", "", asUser)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteEndpoints(t *testing.T) {
	s, store := newTestServer(t, "")
	created := mustCreate(t, store, "u1", "finish me")

	rec := doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/complete", created.ID), "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Completed)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/uncomplete", created.ID), "", asUser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Completed)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/tasks/999/complete", "", asUser)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChat(t *testing.T) {
	s, store := newTestServer(t, "")
	mustCreate(t, store, "u1", "buy milk")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/chat",
		`{"user_id":"u1","session_id":"s1","message":"show my tasks"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(conversation.ActionListed), resp.Action)
	assert.Contains(t, resp.Message, "buy milk")

	// Multi-turn flow shares state through the session id.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/chat",
		`{"user_id":"u1","session_id":"s1","message":"delete task 1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "cannot be undone")

	rec = doJSON(t, s, http.MethodPost, "/api/v1/chat",
		`{"user_id":"u1","session_id":"s1","message":"yes"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(conversation.ActionDeleted), resp.Action)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"user_id":"u1","message":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/chat", `{"session_id":"s1","message":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	s, _ := newTestServer(t, "")

	doJSON(t, s, http.MethodGet, "/health", "", nil)
	rec := doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taskd_http_requests_total")
}

func testCtx() context.Context { return context.Background() }

func mustCreate(t *testing.T, store *task.MemoryStore, userID, title string) task.Task {
	t.Helper()
	created, err := store.Create(testCtx(), task.Fields{UserID: userID, Title: title})
	require.NoError(t, err)
	return created
}
