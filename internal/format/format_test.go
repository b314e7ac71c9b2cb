package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/resolve"
	"github.com/fernlabs/taskd/internal/task"
)

func TestDueDate(t *testing.T) {
	// End-of-day sentinel hides the clock.
	eod := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "Sun, Jun 1 2025", DueDate(eod))

	at := time.Date(2025, 6, 1, 17, 30, 0, 0, time.UTC)
	assert.Equal(t, "Sun, Jun 1 2025 at 5:30 PM", DueDate(at))
}

func TestLine(t *testing.T) {
	due := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	line := Line(task.Task{ID: 3, Title: "buy milk", Priority: task.PriorityHigh, DueDate: &due})
	assert.Equal(t, "[ ] #3 buy milk (high) due Sun, Jun 1 2025", line)

	line = Line(task.Task{ID: 4, Title: "done thing", Priority: task.PriorityLow, Completed: true})
	assert.Equal(t, "[x] #4 done thing (low)", line)
}

func TestList(t *testing.T) {
	assert.Contains(t, List(nil, task.StatusAll), "no tasks yet")
	assert.Contains(t, List(nil, task.StatusPending), "no pending tasks")

	out := List([]task.Task{
		{ID: 1, Title: "a", Priority: task.PriorityMedium},
		{ID: 2, Title: "b", Priority: task.PriorityMedium},
	}, task.StatusAll)
	assert.Contains(t, out, "Your tasks (2):")
	assert.Contains(t, out, "#1 a")
	assert.Contains(t, out, "#2 b")
}

func TestDisambiguation(t *testing.T) {
	out := Disambiguation("milk", []resolve.Candidate{
		{Task: task.Task{ID: 1, Title: "buy milk", Priority: task.PriorityMedium}, Score: 1},
		{Task: task.Task{ID: 2, Title: "buy milk and eggs", Priority: task.PriorityMedium}, Score: 1},
	})
	assert.Contains(t, out, `2 tasks matching "milk"`)
	assert.Contains(t, out, "1. [ ] #1 buy milk")
	assert.Contains(t, out, "Which one did you mean?")
}

func TestUpdateConfirmation(t *testing.T) {
	before := task.Task{ID: 5, Title: "report", Priority: task.PriorityMedium}
	p := task.PriorityHigh
	out := UpdateConfirmation(before, task.Diff{Priority: &p})
	assert.Contains(t, out, "priority: medium -> high")
	assert.Contains(t, out, "Confirm? (yes/no)")

	// A diff that changes nothing asks instead of confirming.
	same := task.PriorityMedium
	out = UpdateConfirmation(before, task.Diff{Priority: &same})
	assert.Contains(t, out, "Nothing would change")
}

func TestCard(t *testing.T) {
	out := Card(task.Task{ID: 9, Title: "buy milk", Priority: task.PriorityLow, Description: "oat"})
	assert.Contains(t, out, "Task #9: buy milk")
	assert.Contains(t, out, "Priority: low")
	assert.Contains(t, out, "Due: none")
	assert.Contains(t, out, "Notes: oat")
	assert.Contains(t, out, "Status: pending")
}

func TestDateError(t *testing.T) {
	assert.Contains(t, DateError(dates.ErrPastDate), "in the past")
	assert.Contains(t, DateError(dates.ErrTooFarFuture), "too far in the future")
	assert.Contains(t, DateError(dates.ErrUnparseable), "couldn't understand")
}
