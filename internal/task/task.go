// Package task defines the task model and the persistence contract the
// conversational engine and the HTTP API share.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

// Priority is the task priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("invalid priority %q: must be low, medium, or high", s)
	}
}

// Task is a single todo item owned by a user.
type Task struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Fields carries values for creating a task. Zero-value optional fields
// are left to store defaults.
type Fields struct {
	UserID      string
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
}

// Diff carries a partial update. Nil pointers mean "leave unchanged".
type Diff struct {
	Title       *string
	Description *string
	Priority    *Priority
	DueDate     *time.Time
	ClearDue    bool
	Completed   *bool
}

// Empty reports whether the diff changes nothing.
func (d Diff) Empty() bool {
	return d.Title == nil && d.Description == nil && d.Priority == nil &&
		d.DueDate == nil && !d.ClearDue && d.Completed == nil
}

// Validate checks field constraints before a create.
func (f *Fields) Validate() error {
	if f.UserID == "" {
		return errors.New("user id is required")
	}
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return errors.New("title is required")
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("title too long: %d chars (max %d)", len(title), maxTitleLen)
	}
	if len(f.Description) > maxDescriptionLen {
		return fmt.Errorf("description too long: %d chars (max %d)", len(f.Description), maxDescriptionLen)
	}
	if f.Priority != "" {
		if _, err := ParsePriority(string(f.Priority)); err != nil {
			return err
		}
	}
	return nil
}

// Status filters task listings.
type Status string

const (
	StatusAll       Status = "all"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus validates a listing status filter, defaulting to all.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusPending:
		return StatusPending, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("invalid status %q: must be pending, completed, or all", s)
	}
}
