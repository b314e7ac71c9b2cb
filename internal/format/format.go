// Package format renders tasks and workflow prompts as plain-text chat
// replies. All user-visible message text lives here so surfaces (HTTP chat,
// MCP, CLI) stay consistent.
package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/resolve"
	"github.com/fernlabs/taskd/internal/task"
)

// DueDate renders a due date for chat output.
func DueDate(t time.Time) string {
	if t.Hour() == 23 && t.Minute() == 59 {
		return t.Format("Mon, Jan 2 2006")
	}
	return t.Format("Mon, Jan 2 2006 at 3:04 PM")
}

// Line renders a one-line task summary for listings.
func Line(t task.Task) string {
	var b strings.Builder
	if t.Completed {
		b.WriteString("[x] ")
	} else {
		b.WriteString("[ ] ")
	}
	fmt.Fprintf(&b, "#%d %s (%s)", t.ID, t.Title, t.Priority)
	if t.DueDate != nil {
		fmt.Fprintf(&b, " due %s", DueDate(*t.DueDate))
	}
	return b.String()
}

// Card renders full task details, used before destructive confirmations and
// after mutations.
func Card(t task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task #%d: %s\n", t.ID, t.Title)
	fmt.Fprintf(&b, "  Priority: %s\n", t.Priority)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  Due: %s\n", DueDate(*t.DueDate))
	} else {
		b.WriteString("  Due: none\n")
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "  Notes: %s\n", t.Description)
	}
	if t.Completed {
		b.WriteString("  Status: completed")
	} else {
		b.WriteString("  Status: pending")
	}
	return b.String()
}

// List renders a task listing under a status heading.
func List(tasks []task.Task, status task.Status) string {
	if len(tasks) == 0 {
		switch status {
		case task.StatusCompleted:
			return "You have no completed tasks."
		case task.StatusPending:
			return "You have no pending tasks. Add one whenever you're ready."
		default:
			return "You have no tasks yet. Add one whenever you're ready."
		}
	}

	var b strings.Builder
	switch status {
	case task.StatusCompleted:
		fmt.Fprintf(&b, "Your completed tasks (%d):\n", len(tasks))
	case task.StatusPending:
		fmt.Fprintf(&b, "Your pending tasks (%d):\n", len(tasks))
	default:
		fmt.Fprintf(&b, "Your tasks (%d):\n", len(tasks))
	}
	for _, t := range tasks {
		b.WriteString(Line(t))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Disambiguation renders a numbered candidate listing and asks the user to
// pick one.
func Disambiguation(query string, cands []resolve.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d tasks matching %q:\n", len(cands), query)
	for i, c := range cands {
		fmt.Fprintf(&b, "%d. %s\n", i+1, Line(c.Task))
	}
	b.WriteString("Which one did you mean? Reply with the number or the task id.")
	return b.String()
}

// changeList renders "field: old -> new" lines for an update confirmation.
func changeList(before task.Task, diff task.Diff) []string {
	var changes []string
	if diff.Title != nil && *diff.Title != before.Title {
		changes = append(changes, fmt.Sprintf("title: %q -> %q", before.Title, *diff.Title))
	}
	if diff.Description != nil && *diff.Description != before.Description {
		changes = append(changes, fmt.Sprintf("notes: %q -> %q", before.Description, *diff.Description))
	}
	if diff.Priority != nil && *diff.Priority != before.Priority {
		changes = append(changes, fmt.Sprintf("priority: %s -> %s", before.Priority, *diff.Priority))
	}
	if diff.DueDate != nil {
		old := "none"
		if before.DueDate != nil {
			old = DueDate(*before.DueDate)
		}
		changes = append(changes, fmt.Sprintf("due: %s -> %s", old, DueDate(*diff.DueDate)))
	} else if diff.ClearDue && before.DueDate != nil {
		changes = append(changes, fmt.Sprintf("due: %s -> none", DueDate(*before.DueDate)))
	}
	if diff.Completed != nil && *diff.Completed != before.Completed {
		if *diff.Completed {
			changes = append(changes, "status: pending -> completed")
		} else {
			changes = append(changes, "status: completed -> pending")
		}
	}
	return changes
}

// UpdateConfirmation asks the user to confirm a pending update, listing
// each changed field.
func UpdateConfirmation(before task.Task, diff task.Diff) string {
	changes := changeList(before, diff)
	if len(changes) == 0 {
		return fmt.Sprintf("Nothing would change on task #%d. What would you like to edit?", before.ID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Update task #%d %q?\n", before.ID, before.Title)
	for _, c := range changes {
		fmt.Fprintf(&b, "  %s\n", c)
	}
	b.WriteString("Confirm? (yes/no)")
	return b.String()
}

// DeleteConfirmation asks the user to confirm a pending delete.
func DeleteConfirmation(t task.Task) string {
	return fmt.Sprintf("Delete this task? This cannot be undone.\n%s\nConfirm? (yes/no)", Card(t))
}

// CompleteConfirmation asks the user to confirm marking a task done or
// pending again.
func CompleteConfirmation(t task.Task, done bool) string {
	if done {
		return fmt.Sprintf("Mark task #%d %q as completed? (yes/no)", t.ID, t.Title)
	}
	return fmt.Sprintf("Reopen task #%d %q as pending? (yes/no)", t.ID, t.Title)
}

// CreateConfirmation summarizes the collected fields before creating.
func CreateConfirmation(fields task.Fields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create this task?\n  Title: %s\n  Priority: %s\n", fields.Title, fields.Priority)
	if fields.DueDate != nil {
		fmt.Fprintf(&b, "  Due: %s\n", DueDate(*fields.DueDate))
	} else {
		b.WriteString("  Due: none\n")
	}
	if fields.Description != "" {
		fmt.Fprintf(&b, "  Notes: %s\n", fields.Description)
	}
	b.WriteString("Confirm? (yes/no)")
	return b.String()
}

// DateError renders a date parsing failure as a re-prompt the user can act
// on.
func DateError(err error) string {
	msg := "I couldn't understand that date."
	switch {
	case errors.Is(err, dates.ErrPastDate):
		msg = "That date is in the past."
	case errors.Is(err, dates.ErrTooFarFuture):
		msg = "That date is too far in the future."
	}
	return msg + " Try something like \"tomorrow at 5pm\", \"next friday\", or \"2025-06-01\". Say \"no deadline\" to skip."
}
