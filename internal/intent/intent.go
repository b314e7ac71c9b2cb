// Package intent classifies natural-language utterances into task-management
// commands and extracts the entities they carry.
//
// Classification is deterministic: ordered regular-expression tables, no
// model calls. A caller holding an active workflow passes its Activity so
// confirmations and mid-workflow answers are preferred over reclassification.
package intent

import "github.com/fernlabs/taskd/internal/task"

// Intent is the closed set of commands the assistant understands.
type Intent string

const (
	Create     Intent = "create"
	Update     Intent = "update"
	Delete     Intent = "delete"
	Complete   Intent = "complete"
	Uncomplete Intent = "uncomplete"
	List       Intent = "list"
	Cancel     Intent = "cancel"
	ConfirmYes Intent = "confirm_yes"
	ConfirmNo  Intent = "confirm_no"
	// ProvideInfo means the utterance answers a question the active
	// workflow asked (a field value, not a new command).
	ProvideInfo Intent = "provide_info"
	// Ambiguous means no command keyword or confirmation pattern matched.
	// The caller must re-prompt without mutating state.
	Ambiguous Intent = "ambiguous"
)

// Command reports whether the intent is a top-level command that starts or
// replaces a workflow.
func (i Intent) Command() bool {
	switch i {
	case Create, Update, Delete, Complete, Uncomplete, List:
		return true
	}
	return false
}

// Activity is the caller's active workflow tag, used for context-aware
// classification.
type Activity string

const (
	ActivityNone       Activity = ""
	ActivityCreating   Activity = "creating"
	ActivityUpdating   Activity = "updating"
	ActivityDeleting   Activity = "deleting"
	ActivityCompleting Activity = "completing"
)

// Entities are field values extracted from an utterance. A field not
// recognizable in the utterance is reported absent, never defaulted.
type Entities struct {
	Title       string
	HasTitle    bool
	Priority    task.Priority
	HasPriority bool
	TaskID      int64
	HasTaskID   bool
	TaskName    string
	HasTaskName bool
	Status      task.Status
	HasStatus   bool
	// Confirmation holds an explicit yes/no detected mid-workflow.
	Confirmation *bool
}

// Result is the outcome of classifying one utterance.
type Result struct {
	Intent     Intent
	Confidence float64
	Entities   Entities
}
