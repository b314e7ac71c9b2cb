// Package conversation drives multi-turn task workflows: a state machine
// per (user, session) that collects fields, resolves fuzzy task references,
// and gates every mutation behind an explicit confirmation.
package conversation

import (
	"context"
	"time"

	"github.com/fernlabs/taskd/internal/intent"
	"github.com/fernlabs/taskd/internal/task"
)

// State is the session's position in the turn state machine.
type State string

const (
	// StateIdle means no workflow is active.
	StateIdle State = "idle"
	// StateCollecting means the workflow is waiting for a field answer.
	StateCollecting State = "collecting_fields"
	// StateConfirming means a mutation is staged and awaits yes/no.
	StateConfirming State = "awaiting_confirmation"
	// StateDisambiguating means a fuzzy reference matched several tasks
	// and the user must pick one.
	StateDisambiguating State = "awaiting_disambiguation"
	// StateSwitching means a new command arrived mid-workflow and the user
	// must confirm abandoning the paused one.
	StateSwitching State = "confirming_switch"
)

// Workflow names the operation in progress.
type Workflow string

const (
	WorkflowNone       Workflow = ""
	WorkflowCreate     Workflow = "create"
	WorkflowUpdate     Workflow = "update"
	WorkflowDelete     Workflow = "delete"
	WorkflowComplete   Workflow = "complete"
	WorkflowUncomplete Workflow = "uncomplete"
)

// Step is the field currently being collected.
type Step string

const (
	StepNone        Step = ""
	StepTitle       Step = "title"
	StepPriority    Step = "priority"
	StepDeadline    Step = "deadline"
	StepDescription Step = "description"
	StepChanges     Step = "changes"
	StepTarget      Step = "target"
)

// Draft accumulates fields for a task being created. The *Set flags record
// that the user was asked and answered (possibly declining).
type Draft struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Priority    task.Priority `json:"priority,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	DueSet      bool          `json:"due_set,omitempty"`
	DescSet     bool          `json:"desc_set,omitempty"`
}

// Session is the persisted conversation state for one (user, session) pair.
type Session struct {
	UserID    string   `json:"user_id"`
	SessionID string   `json:"session_id"`
	State     State    `json:"state"`
	Workflow  Workflow `json:"workflow,omitempty"`
	Step      Step     `json:"step,omitempty"`

	Draft    Draft     `json:"draft,omitempty"`
	TargetID int64     `json:"target_id,omitempty"`
	Diff     task.Diff `json:"diff,omitempty"`

	// Candidates holds task ids offered for disambiguation, in the order
	// they were listed. Query is the reference that produced them.
	Candidates []int64 `json:"candidates,omitempty"`
	Query      string  `json:"query,omitempty"`

	// PendingMessage holds the command that interrupted the paused workflow
	// while the user decides whether to abandon it. PendingState is the
	// state to restore if they decline.
	PendingMessage string `json:"pending_message,omitempty"`
	PendingState   State  `json:"pending_state,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Reset returns the session to idle, dropping all workflow state.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Workflow = WorkflowNone
	s.Step = StepNone
	s.Draft = Draft{}
	s.TargetID = 0
	s.Diff = task.Diff{}
	s.Candidates = nil
	s.Query = ""
	s.PendingMessage = ""
	s.PendingState = ""
}

// ActivityTag maps the active workflow onto the classifier's activity hint.
func (s *Session) ActivityTag() intent.Activity {
	if s.State == StateIdle {
		return intent.ActivityNone
	}
	switch s.Workflow {
	case WorkflowCreate:
		return intent.ActivityCreating
	case WorkflowUpdate:
		return intent.ActivityUpdating
	case WorkflowDelete:
		return intent.ActivityDeleting
	case WorkflowComplete, WorkflowUncomplete:
		return intent.ActivityCompleting
	default:
		return intent.ActivityNone
	}
}

// SessionStore persists conversation sessions.
type SessionStore interface {
	// Get returns the session and whether it exists.
	Get(ctx context.Context, userID, sessionID string) (Session, bool, error)
	// Put creates or replaces the session.
	Put(ctx context.Context, s Session) error
	// Delete removes the session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, userID, sessionID string) error
}
