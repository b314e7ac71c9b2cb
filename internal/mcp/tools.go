package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fernlabs/taskd/internal/format"
	"github.com/fernlabs/taskd/internal/resolve"
	"github.com/fernlabs/taskd/internal/task"
)

// taskView is the wire form of a task shared by tool outputs.
type taskView struct {
	ID          int64  `json:"id" jsonschema:"Task ID"`
	Title       string `json:"title" jsonschema:"Task title"`
	Description string `json:"description,omitempty" jsonschema:"Task description"`
	Priority    string `json:"priority" jsonschema:"Priority: low, medium, or high"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"Due date in RFC3339, empty when unset"`
	Completed   bool   `json:"completed" jsonschema:"Done flag"`
}

func viewOf(t task.Task) taskView {
	v := taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Completed:   t.Completed,
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.Format(time.RFC3339)
	}
	return v
}

// parseDue accepts RFC3339 or natural language ("friday at noon").
func (s *Server) parseDue(ctx context.Context, raw string) (time.Time, float64, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, 1, nil
	}
	res, err := s.dates.NormalizeWithFallback(ctx, raw, time.Now())
	if err != nil {
		return time.Time{}, 0, err
	}
	return res.Time, res.Confidence, nil
}

func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func (s *Server) registerTools() {
	s.registerTaskAdd()
	s.registerTaskList()
	s.registerTaskFind()
	s.registerTaskUpdate()
	s.registerTaskDelete()
	s.registerTaskComplete()
	s.registerTaskSetDeadline()
}

// ===== task_add =====

type taskAddInput struct {
	UserID      string `json:"user_id" jsonschema:"required,Owner of the task"`
	Title       string `json:"title" jsonschema:"required,Task title"`
	Description string `json:"description,omitempty" jsonschema:"Task description"`
	Priority    string `json:"priority,omitempty" jsonschema:"Priority: low, medium, or high (default medium)"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"Due date, RFC3339 or natural language like 'tomorrow at 5pm'"`
}

type taskAddOutput struct {
	Task taskView `json:"task" jsonschema:"The created task"`
}

func (s *Server) registerTaskAdd() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_add",
		Description: "Create a task. The due date may be natural language; it is normalized to a timestamp.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskAddInput) (*mcp.CallToolResult, taskAddOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_add", start, toolErr) }()

		fields := task.Fields{
			UserID:      args.UserID,
			Title:       args.Title,
			Description: args.Description,
		}
		if args.Priority != "" {
			p, err := task.ParsePriority(args.Priority)
			if err != nil {
				toolErr = err
				return nil, taskAddOutput{}, err
			}
			fields.Priority = p
		}
		if args.DueDate != "" {
			due, _, err := s.parseDue(ctx, args.DueDate)
			if err != nil {
				toolErr = fmt.Errorf("due date: %w", err)
				return nil, taskAddOutput{}, toolErr
			}
			fields.DueDate = &due
		}

		created, err := s.tasks.Create(ctx, fields)
		if err != nil {
			toolErr = fmt.Errorf("create task: %w", err)
			return nil, taskAddOutput{}, toolErr
		}

		s.log.Info(ctx, "task created via mcp",
			zap.Int64("task.id", created.ID), zap.String("user.id", created.UserID))
		return textResult("Created " + format.Line(created)), taskAddOutput{Task: viewOf(created)}, nil
	})
}

// ===== task_list =====

type taskListInput struct {
	UserID string `json:"user_id" jsonschema:"required,Owner whose tasks to list"`
	Status string `json:"status,omitempty" jsonschema:"Filter: pending, completed, or all (default all)"`
}

type taskListOutput struct {
	Tasks []taskView `json:"tasks" jsonschema:"Matching tasks"`
	Count int        `json:"count" jsonschema:"Number of tasks returned"`
}

func (s *Server) registerTaskList() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_list",
		Description: "List a user's tasks, optionally filtered by status",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskListInput) (*mcp.CallToolResult, taskListOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_list", start, toolErr) }()

		status, err := task.ParseStatus(args.Status)
		if err != nil {
			toolErr = err
			return nil, taskListOutput{}, err
		}

		tasks, err := s.tasks.List(ctx, args.UserID, status)
		if err != nil {
			toolErr = fmt.Errorf("list tasks: %w", err)
			return nil, taskListOutput{}, toolErr
		}

		out := taskListOutput{Tasks: make([]taskView, 0, len(tasks)), Count: len(tasks)}
		for _, t := range tasks {
			out.Tasks = append(out.Tasks, viewOf(t))
		}
		return textResult(fmt.Sprintf("Found %d tasks", out.Count)), out, nil
	})
}

// ===== task_find =====

type taskFindInput struct {
	UserID string `json:"user_id" jsonschema:"required,Owner whose tasks to search"`
	Query  string `json:"query" jsonschema:"required,Free-text reference to a task title"`
}

type taskFindMatch struct {
	Task  taskView `json:"task" jsonschema:"The matched task"`
	Score float64  `json:"score" jsonschema:"Similarity score in [0,1]"`
}

type taskFindOutput struct {
	// Outcome is auto when a single match was confidently selected,
	// disambiguate when several are plausible, not_found otherwise.
	Outcome string          `json:"outcome" jsonschema:"auto, disambiguate, or not_found"`
	Matches []taskFindMatch `json:"matches" jsonschema:"Scored matches, best first"`
}

func (s *Server) registerTaskFind() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_find",
		Description: "Fuzzy-match a free-text reference against the user's task titles",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskFindInput) (*mcp.CallToolResult, taskFindOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_find", start, toolErr) }()

		tasks, err := s.tasks.List(ctx, args.UserID, task.StatusAll)
		if err != nil {
			toolErr = fmt.Errorf("list tasks: %w", err)
			return nil, taskFindOutput{}, toolErr
		}

		res := resolve.Resolve(tasks, args.Query)
		out := taskFindOutput{Matches: []taskFindMatch{}}
		switch res.Kind {
		case resolve.Auto:
			out.Outcome = "auto"
			out.Matches = append(out.Matches, taskFindMatch{
				Task:  viewOf(res.Match),
				Score: res.Score,
			})
		case resolve.Disambiguate:
			out.Outcome = "disambiguate"
			for _, c := range res.Candidates {
				out.Matches = append(out.Matches, taskFindMatch{Task: viewOf(c.Task), Score: c.Score})
			}
		default:
			out.Outcome = "not_found"
		}
		return textResult(fmt.Sprintf("%s: %d matches", out.Outcome, len(out.Matches))), out, nil
	})
}

// ===== task_update =====

type taskUpdateInput struct {
	UserID       string `json:"user_id" jsonschema:"required,Owner of the task"`
	ID           int64  `json:"id" jsonschema:"required,Task ID"`
	Title        string `json:"title,omitempty" jsonschema:"New title (unchanged when empty)"`
	Description  string `json:"description,omitempty" jsonschema:"New description (unchanged when empty)"`
	Priority     string `json:"priority,omitempty" jsonschema:"New priority: low, medium, or high"`
	DueDate      string `json:"due_date,omitempty" jsonschema:"New due date, RFC3339 or natural language"`
	ClearDueDate bool   `json:"clear_due_date,omitempty" jsonschema:"Remove the due date"`
}

type taskUpdateOutput struct {
	Task taskView `json:"task" jsonschema:"The updated task"`
}

func (s *Server) registerTaskUpdate() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_update",
		Description: "Update a task's fields. Empty fields are left unchanged.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskUpdateInput) (*mcp.CallToolResult, taskUpdateOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_update", start, toolErr) }()

		var diff task.Diff
		if args.Title != "" {
			diff.Title = &args.Title
		}
		if args.Description != "" {
			diff.Description = &args.Description
		}
		if args.Priority != "" {
			p, err := task.ParsePriority(args.Priority)
			if err != nil {
				toolErr = err
				return nil, taskUpdateOutput{}, err
			}
			diff.Priority = &p
		}
		if args.DueDate != "" {
			due, _, err := s.parseDue(ctx, args.DueDate)
			if err != nil {
				toolErr = fmt.Errorf("due date: %w", err)
				return nil, taskUpdateOutput{}, toolErr
			}
			diff.DueDate = &due
		}
		diff.ClearDue = args.ClearDueDate
		if diff.Empty() {
			toolErr = errors.New("no fields to update")
			return nil, taskUpdateOutput{}, toolErr
		}

		updated, err := s.tasks.Update(ctx, args.UserID, args.ID, diff)
		if err != nil {
			toolErr = storeErr("update task", err, args.ID)
			return nil, taskUpdateOutput{}, toolErr
		}
		return textResult("Updated " + format.Line(updated)), taskUpdateOutput{Task: viewOf(updated)}, nil
	})
}

// ===== task_delete =====

type taskDeleteInput struct {
	UserID string `json:"user_id" jsonschema:"required,Owner of the task"`
	ID     int64  `json:"id" jsonschema:"required,Task ID"`
}

type taskDeleteOutput struct {
	ID      int64 `json:"id" jsonschema:"Deleted task ID"`
	Deleted bool  `json:"deleted" jsonschema:"True when the task was removed"`
}

func (s *Server) registerTaskDelete() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_delete",
		Description: "Permanently delete a task",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskDeleteInput) (*mcp.CallToolResult, taskDeleteOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_delete", start, toolErr) }()

		if err := s.tasks.Delete(ctx, args.UserID, args.ID); err != nil {
			toolErr = storeErr("delete task", err, args.ID)
			return nil, taskDeleteOutput{}, toolErr
		}

		s.log.Info(ctx, "task deleted via mcp",
			zap.Int64("task.id", args.ID), zap.String("user.id", args.UserID))
		return textResult(fmt.Sprintf("Deleted task #%d", args.ID)),
			taskDeleteOutput{ID: args.ID, Deleted: true}, nil
	})
}

// ===== task_complete =====

type taskCompleteInput struct {
	UserID string `json:"user_id" jsonschema:"required,Owner of the task"`
	ID     int64  `json:"id" jsonschema:"required,Task ID"`
	Undo   bool   `json:"undo,omitempty" jsonschema:"Reopen the task instead of completing it"`
}

type taskCompleteOutput struct {
	Task taskView `json:"task" jsonschema:"The task after the change"`
}

func (s *Server) registerTaskComplete() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_complete",
		Description: "Mark a task done, or reopen it with undo=true",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskCompleteInput) (*mcp.CallToolResult, taskCompleteOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_complete", start, toolErr) }()

		updated, err := s.tasks.SetCompleted(ctx, args.UserID, args.ID, !args.Undo)
		if err != nil {
			toolErr = storeErr("set completed", err, args.ID)
			return nil, taskCompleteOutput{}, toolErr
		}

		verb := "Completed"
		if args.Undo {
			verb = "Reopened"
		}
		return textResult(verb + " " + format.Line(updated)), taskCompleteOutput{Task: viewOf(updated)}, nil
	})
}

// ===== task_set_deadline =====

type taskSetDeadlineInput struct {
	UserID string `json:"user_id" jsonschema:"required,Owner of the task"`
	ID     int64  `json:"id" jsonschema:"required,Task ID"`
	When   string `json:"when" jsonschema:"required,Deadline in natural language or RFC3339"`
}

type taskSetDeadlineOutput struct {
	Task       taskView `json:"task" jsonschema:"The task with its new deadline"`
	DueDate    string   `json:"due_date" jsonschema:"Normalized deadline in RFC3339"`
	Confidence float64  `json:"confidence" jsonschema:"Parser confidence in [0,1]"`
}

func (s *Server) registerTaskSetDeadline() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "task_set_deadline",
		Description: "Set a task's deadline from natural language ('friday at noon') and return the normalized timestamp",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args taskSetDeadlineInput) (*mcp.CallToolResult, taskSetDeadlineOutput, error) {
		start := time.Now()
		var toolErr error
		defer func() { s.metrics.record("task_set_deadline", start, toolErr) }()

		due, confidence, err := s.parseDue(ctx, args.When)
		if err != nil {
			toolErr = fmt.Errorf("deadline: %w", err)
			return nil, taskSetDeadlineOutput{}, toolErr
		}

		updated, err := s.tasks.Update(ctx, args.UserID, args.ID, task.Diff{DueDate: &due})
		if err != nil {
			toolErr = storeErr("set deadline", err, args.ID)
			return nil, taskSetDeadlineOutput{}, toolErr
		}

		return textResult("Deadline set: " + format.Line(updated)), taskSetDeadlineOutput{
			Task:       viewOf(updated),
			DueDate:    due.Format(time.RFC3339),
			Confidence: confidence,
		}, nil
	})
}

func storeErr(op string, err error, id int64) error {
	if errors.Is(err, task.ErrNotFound) {
		return fmt.Errorf("task #%d not found", id)
	}
	return fmt.Errorf("%s: %w", op, err)
}
