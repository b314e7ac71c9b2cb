package task

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a task id does not exist for the user.
var ErrNotFound = errors.New("task not found")

// Store is the persistence contract consumed by the conversational engine,
// the HTTP API, and the MCP tools. Implementations must scope every
// operation to the given user id.
type Store interface {
	// List returns the user's tasks ordered by creation time, filtered by
	// status.
	List(ctx context.Context, userID string, status Status) ([]Task, error)

	// Get returns a single task by id.
	Get(ctx context.Context, userID string, id int64) (Task, error)

	// Create persists a new task and returns it with its assigned id.
	Create(ctx context.Context, fields Fields) (Task, error)

	// Update applies a partial diff and returns the updated task.
	Update(ctx context.Context, userID string, id int64, diff Diff) (Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, userID string, id int64) error

	// SetCompleted marks a task complete or incomplete.
	SetCompleted(ctx context.Context, userID string, id int64, done bool) (Task, error)
}
