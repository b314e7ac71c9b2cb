package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/logging"
	"github.com/fernlabs/taskd/internal/task"
)

// userIDHeader identifies the acting user on task routes. Chat requests
// carry the user in the body instead.
const userIDHeader = "X-User-ID"

func (s *Server) userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get(userIDHeader)
	if id == "" {
		id = c.QueryParam("user_id")
	}
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, userIDHeader+" header is required")
	}
	return id, nil
}

func taskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	return id, nil
}

// parseDue accepts RFC3339 or natural language ("tomorrow at 5pm").
func (s *Server) parseDue(raw string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	res, err := s.dates.Normalize(raw, time.Now())
	if err != nil {
		return nil, err
	}
	return &res.Time, nil
}

func dueError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, dates.ErrPastDate):
		return echo.NewHTTPError(http.StatusBadRequest, "due_date is in the past")
	case errors.Is(err, dates.ErrTooFarFuture):
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("due_date is more than %d years out", dates.MaxFutureYears))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "due_date could not be parsed")
	}
}

// CreateTaskRequest is the body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	// DueDate accepts RFC3339 or natural language.
	DueDate string `json:"due_date,omitempty"`
}

// UpdateTaskRequest is the body for PATCH /api/v1/tasks/:id. Absent fields
// are left unchanged.
type UpdateTaskRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Priority     *string `json:"priority,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	ClearDueDate bool    `json:"clear_due_date,omitempty"`
	Completed    *bool   `json:"completed,omitempty"`
}

// ChatRequest is the body for POST /api/v1/chat.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Message string     `json:"message"`
	Action  string     `json:"action,omitempty"`
	Task    *task.Task `json:"task,omitempty"`
}

func (s *Server) handleListTasks(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return err
	}
	status, err := task.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tasks, err := s.tasks.List(c.Request().Context(), userID, status)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleGetTask(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	t, err := s.tasks.Get(c.Request().Context(), userID, id)
	if errors.Is(err, task.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleCreateTask(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return err
	}

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	fields := task.Fields{UserID: userID, Title: req.Title, Description: req.Description}
	if req.Priority != "" {
		p, err := task.ParsePriority(req.Priority)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		fields.Priority = p
	}
	if req.DueDate != "" {
		due, err := s.parseDue(req.DueDate)
		if err != nil {
			return dueError(err)
		}
		fields.DueDate = due
	}

	t, err := s.tasks.Create(c.Request().Context(), fields)
	if err != nil {
		if fields.Validate() != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return fmt.Errorf("create task: %w", err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	diff := task.Diff{
		Title:       req.Title,
		Description: req.Description,
		ClearDue:    req.ClearDueDate,
		Completed:   req.Completed,
	}
	if req.Priority != nil {
		p, err := task.ParsePriority(*req.Priority)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		diff.Priority = &p
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := s.parseDue(*req.DueDate)
		if err != nil {
			return dueError(err)
		}
		diff.DueDate = due
	}
	if diff.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "no fields to update")
	}

	t, err := s.tasks.Update(c.Request().Context(), userID, id, diff)
	if errors.Is(err, task.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	userID, err := s.userID(c)
	if err != nil {
		return err
	}
	id, err := taskID(c)
	if err != nil {
		return err
	}

	err = s.tasks.Delete(c.Request().Context(), userID, id)
	if errors.Is(err, task.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetCompleted(done bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := s.userID(c)
		if err != nil {
			return err
		}
		id, err := taskID(c)
		if err != nil {
			return err
		}

		t, err := s.tasks.SetCompleted(c.Request().Context(), userID, id, done)
		if errors.Is(err, task.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		if err != nil {
			return fmt.Errorf("set completed: %w", err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		req.UserID = c.Request().Header.Get(userIDHeader)
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	ctx := logging.WithRequestID(c.Request().Context(),
		c.Response().Header().Get(echo.HeaderXRequestID))

	reply, err := s.engine.HandleTurn(ctx, req.UserID, req.SessionID, req.Message)
	if err != nil {
		s.log.Error(ctx, "chat turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not process the message")
	}

	s.metrics.observeChatTurn(string(reply.Action))
	return c.JSON(http.StatusOK, ChatResponse{
		Message: reply.Message,
		Action:  string(reply.Action),
		Task:    reply.Task,
	})
}
