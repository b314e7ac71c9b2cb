package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/format"
	"github.com/fernlabs/taskd/internal/intent"
	"github.com/fernlabs/taskd/internal/logging"
	"github.com/fernlabs/taskd/internal/resolve"
	"github.com/fernlabs/taskd/internal/task"
)

// Action tags a reply with the mutation it performed, for surfaces that
// react to more than the message text.
type Action string

const (
	ActionNone      Action = ""
	ActionCreated   Action = "task_created"
	ActionUpdated   Action = "task_updated"
	ActionDeleted   Action = "task_deleted"
	ActionCompleted Action = "task_completed"
	ActionReopened  Action = "task_reopened"
	ActionListed    Action = "tasks_listed"
)

// Reply is the assistant's answer to one turn.
type Reply struct {
	Message string
	Action  Action
	// Task is set when Action touched a single task.
	Task *task.Task
}

const helpText = `I can manage your tasks. Try:
  "add a task to buy milk"
  "show my tasks"
  "complete task 3"
  "change the milk task to high priority"
  "delete task 3"`

// Engine executes conversation turns. Turns for the same (user, session)
// pair are serialized; different sessions proceed concurrently.
type Engine struct {
	tasks      task.Store
	sessions   SessionStore
	classifier *intent.Classifier
	dates      *dates.Normalizer
	log        *logging.Logger

	// idleTimeout resets a workflow abandoned mid-flight. Zero disables.
	idleTimeout time.Duration

	metrics *engineMetrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine wires an engine. normalizer and log must not be nil.
func NewEngine(tasks task.Store, sessions SessionStore, normalizer *dates.Normalizer, log *logging.Logger, idleTimeout time.Duration) *Engine {
	return &Engine{
		tasks:       tasks,
		sessions:    sessions,
		classifier:  intent.NewClassifier(),
		dates:       normalizer,
		log:         log.Named("conversation"),
		idleTimeout: idleTimeout,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Instrument registers engine counters with reg. Call before serving turns.
func (e *Engine) Instrument(reg prometheus.Registerer) {
	e.metrics = newEngineMetrics(reg)
}

func (e *Engine) lockSession(userID, sessionID string) func() {
	key := sessionKey(userID, sessionID)
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// HandleTurn processes one user message and advances the session. Returned
// errors are internal failures (store, session persistence); everything the
// user can fix is expressed in Reply.Message instead.
func (e *Engine) HandleTurn(ctx context.Context, userID, sessionID, message string) (Reply, error) {
	if userID == "" {
		return Reply{}, errors.New("user id is required")
	}
	if sessionID == "" {
		return Reply{}, errors.New("session id is required")
	}
	ctx = logging.WithUserID(logging.WithSessionID(ctx, sessionID), userID)

	unlock := e.lockSession(userID, sessionID)
	defer unlock()

	sess, ok, err := e.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		sess = Session{UserID: userID, SessionID: sessionID, State: StateIdle}
	}
	if sess.State != StateIdle && e.idleTimeout > 0 && time.Since(sess.UpdatedAt) > e.idleTimeout {
		e.log.Debug(ctx, "resetting stale workflow", zap.String("workflow", string(sess.Workflow)))
		sess.Reset()
	}

	res := e.classifier.Classify(message, sess.ActivityTag())
	e.metrics.recordTurn(string(res.Intent))
	e.log.Debug(ctx, "turn classified",
		zap.String("intent", string(res.Intent)),
		zap.Float64("confidence", res.Confidence),
		zap.String("state", string(sess.State)))

	reply, err := e.dispatch(ctx, &sess, message, res)
	if err != nil {
		return Reply{}, err
	}

	sess.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Put(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("save session: %w", err)
	}
	return reply, nil
}

func (e *Engine) dispatch(ctx context.Context, sess *Session, message string, res intent.Result) (Reply, error) {
	// Cancellation wins everywhere.
	if res.Intent == intent.Cancel {
		hadWorkflow := sess.State != StateIdle
		sess.Reset()
		if hadWorkflow {
			return Reply{Message: "Okay, cancelled. What else can I do for you?"}, nil
		}
		return Reply{Message: "Nothing to cancel. " + helpText}, nil
	}

	// A new top-level command mid-workflow needs an explicit okay before the
	// paused workflow is abandoned. Restating the same operation restarts it.
	if res.Intent.Command() {
		switch {
		case sess.State == StateIdle:
			sess.Reset()
			return e.startCommand(ctx, sess, message, res)
		case sess.State != StateSwitching && commandWorkflow(res.Intent) == sess.Workflow:
			sess.Reset()
			return e.startCommand(ctx, sess, message, res)
		default:
			if sess.State != StateSwitching {
				sess.PendingState = sess.State
			}
			sess.PendingMessage = message
			sess.State = StateSwitching
			return Reply{Message: fmt.Sprintf("You're in the middle of %s. Abandon it and do that instead? (yes/no)", describeWorkflow(sess.Workflow))}, nil
		}
	}

	switch sess.State {
	case StateConfirming:
		return e.handleConfirmation(ctx, sess, res)
	case StateDisambiguating:
		return e.handleDisambiguation(ctx, sess, message, res)
	case StateCollecting:
		return e.handleFieldAnswer(ctx, sess, message, res)
	case StateSwitching:
		return e.handleSwitch(ctx, sess, res)
	}

	return Reply{Message: "I'm not sure what you mean. " + helpText}, nil
}

// commandWorkflow maps a command intent onto the workflow it starts. List
// maps to none: it never owns a workflow.
func commandWorkflow(i intent.Intent) Workflow {
	switch i {
	case intent.Create:
		return WorkflowCreate
	case intent.Update:
		return WorkflowUpdate
	case intent.Delete:
		return WorkflowDelete
	case intent.Complete:
		return WorkflowComplete
	case intent.Uncomplete:
		return WorkflowUncomplete
	default:
		return WorkflowNone
	}
}

func describeWorkflow(wf Workflow) string {
	switch wf {
	case WorkflowCreate:
		return "creating a task"
	case WorkflowUpdate:
		return "updating a task"
	case WorkflowDelete:
		return "deleting a task"
	case WorkflowComplete:
		return "completing a task"
	case WorkflowUncomplete:
		return "reopening a task"
	default:
		return "another task"
	}
}

// handleSwitch resolves the abandon-or-resume question a mid-workflow
// command raised.
func (e *Engine) handleSwitch(ctx context.Context, sess *Session, res intent.Result) (Reply, error) {
	switch res.Intent {
	case intent.ConfirmYes:
		pending := sess.PendingMessage
		sess.Reset()
		cmd := e.classifier.Classify(pending, intent.ActivityNone)
		if !cmd.Intent.Command() {
			return Reply{Message: "I'm not sure what you meant. " + helpText}, nil
		}
		return e.startCommand(ctx, sess, pending, cmd)

	case intent.ConfirmNo:
		sess.State = sess.PendingState
		sess.PendingMessage = ""
		sess.PendingState = ""
		return e.resumePrompt(ctx, sess)

	default:
		return Reply{Message: "Please answer \"yes\" to switch or \"no\" to keep going (or \"cancel\" to stop everything)."}, nil
	}
}

// resumePrompt re-asks the question the paused workflow was waiting on.
func (e *Engine) resumePrompt(ctx context.Context, sess *Session) (Reply, error) {
	const resuming = "Okay, picking up where we left off. "

	switch sess.State {
	case StateCollecting:
		if sess.Workflow == WorkflowCreate {
			r := e.askNextCreateField(sess)
			r.Message = resuming + r.Message
			return r, nil
		}
		switch sess.Step {
		case StepTarget:
			return Reply{Message: resuming + fmt.Sprintf("Which task would you like to %s? Give me its number or part of its title.", sess.Workflow)}, nil
		case StepChanges:
			return Reply{Message: resuming + fmt.Sprintf("What would you like to change on task #%d?", sess.TargetID)}, nil
		}

	case StateConfirming:
		return e.reconfirm(ctx, sess, resuming)

	case StateDisambiguating:
		return Reply{Message: resuming + fmt.Sprintf("Please pick one of the %d tasks by number, or say \"cancel\".", len(sess.Candidates))}, nil
	}

	sess.Reset()
	return Reply{Message: resuming + helpText}, nil
}

// reconfirm re-renders a staged confirmation after a resume.
func (e *Engine) reconfirm(ctx context.Context, sess *Session, prefix string) (Reply, error) {
	if sess.Workflow == WorkflowCreate {
		return Reply{Message: prefix + format.CreateConfirmation(e.draftFields(sess))}, nil
	}

	t, err := e.tasks.Get(ctx, sess.UserID, sess.TargetID)
	if errors.Is(err, task.ErrNotFound) {
		sess.Reset()
		return Reply{Message: "That task no longer exists."}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("get task: %w", err)
	}

	switch sess.Workflow {
	case WorkflowDelete:
		return Reply{Message: prefix + format.DeleteConfirmation(t)}, nil
	case WorkflowComplete:
		return Reply{Message: prefix + format.CompleteConfirmation(t, true)}, nil
	case WorkflowUncomplete:
		return Reply{Message: prefix + format.CompleteConfirmation(t, false)}, nil
	default:
		return Reply{Message: prefix + format.UpdateConfirmation(t, sess.Diff)}, nil
	}
}

// startCommand begins a workflow from an idle session.
func (e *Engine) startCommand(ctx context.Context, sess *Session, message string, res intent.Result) (Reply, error) {
	switch res.Intent {
	case intent.List:
		status := task.StatusAll
		if res.Entities.HasStatus {
			status = res.Entities.Status
		}
		tasks, err := e.tasks.List(ctx, sess.UserID, status)
		if err != nil {
			return Reply{}, fmt.Errorf("list tasks: %w", err)
		}
		return Reply{Message: format.List(tasks, status), Action: ActionListed}, nil

	case intent.Create:
		sess.Workflow = WorkflowCreate
		sess.State = StateCollecting
		if res.Entities.HasTitle {
			sess.Draft.Title = res.Entities.Title
		}
		if res.Entities.HasPriority {
			sess.Draft.Priority = res.Entities.Priority
		}
		return e.askNextCreateField(sess), nil

	case intent.Update:
		return e.beginTargeted(ctx, sess, WorkflowUpdate, message, res.Entities)
	case intent.Delete:
		return e.beginTargeted(ctx, sess, WorkflowDelete, message, res.Entities)
	case intent.Complete:
		return e.beginTargeted(ctx, sess, WorkflowComplete, message, res.Entities)
	case intent.Uncomplete:
		return e.beginTargeted(ctx, sess, WorkflowUncomplete, message, res.Entities)
	}

	return Reply{Message: "I'm not sure what you mean. " + helpText}, nil
}

// askNextCreateField advances the create workflow to the next unanswered
// field, or stages the confirmation when everything is collected.
func (e *Engine) askNextCreateField(sess *Session) Reply {
	switch {
	case strings.TrimSpace(sess.Draft.Title) == "":
		sess.Step = StepTitle
		return Reply{Message: "Sure. What should the task be called?"}
	case sess.Draft.Priority == "":
		sess.Step = StepPriority
		return Reply{Message: fmt.Sprintf("Got it: %q. What priority: high, medium, or low? (say \"skip\" for medium)", sess.Draft.Title)}
	case !sess.Draft.DueSet:
		sess.Step = StepDeadline
		return Reply{Message: "When is it due? For example \"tomorrow at 5pm\" or \"next friday\". Say \"no deadline\" to skip."}
	case !sess.Draft.DescSet:
		sess.Step = StepDescription
		return Reply{Message: "Any notes to add? Say \"no\" to skip."}
	default:
		sess.State = StateConfirming
		sess.Step = StepNone
		return Reply{Message: format.CreateConfirmation(e.draftFields(sess))}
	}
}

func (e *Engine) draftFields(sess *Session) task.Fields {
	priority := sess.Draft.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}
	return task.Fields{
		UserID:      sess.UserID,
		Title:       sess.Draft.Title,
		Description: sess.Draft.Description,
		Priority:    priority,
		DueDate:     sess.Draft.DueDate,
	}
}

// beginTargeted starts an update/delete/complete workflow by resolving the
// task reference carried in the command, or asking for one.
func (e *Engine) beginTargeted(ctx context.Context, sess *Session, wf Workflow, message string, ents intent.Entities) (Reply, error) {
	sess.Workflow = wf

	if ents.HasTaskID {
		t, err := e.tasks.Get(ctx, sess.UserID, ents.TaskID)
		if errors.Is(err, task.ErrNotFound) {
			sess.Reset()
			return Reply{Message: fmt.Sprintf("I couldn't find task #%d.", ents.TaskID)}, nil
		}
		if err != nil {
			return Reply{}, fmt.Errorf("get task: %w", err)
		}
		return e.confirmTarget(ctx, sess, t, message)
	}

	if ents.HasTaskName {
		return e.resolveByName(ctx, sess, ents.TaskName, message)
	}

	sess.State = StateCollecting
	sess.Step = StepTarget
	return Reply{Message: fmt.Sprintf("Which task would you like to %s? Give me its number or part of its title.", wf)}, nil
}

// listingStatus narrows the candidate pool to tasks the workflow can act on.
func listingStatus(wf Workflow) task.Status {
	switch wf {
	case WorkflowComplete:
		return task.StatusPending
	case WorkflowUncomplete:
		return task.StatusCompleted
	default:
		return task.StatusAll
	}
}

func (e *Engine) resolveByName(ctx context.Context, sess *Session, query, message string) (Reply, error) {
	tasks, err := e.tasks.List(ctx, sess.UserID, listingStatus(sess.Workflow))
	if err != nil {
		return Reply{}, fmt.Errorf("list tasks: %w", err)
	}

	resolution := resolve.Resolve(tasks, query)
	e.log.Trace(ctx, "reference resolved",
		zap.String("query", query),
		zap.Int("kind", int(resolution.Kind)),
		zap.Int("candidates", len(resolution.Candidates)))

	switch resolution.Kind {
	case resolve.Auto:
		return e.confirmTarget(ctx, sess, resolution.Match, message)
	case resolve.Disambiguate:
		sess.State = StateDisambiguating
		sess.Step = StepNone
		sess.Query = query
		sess.Candidates = sess.Candidates[:0]
		for _, c := range resolution.Candidates {
			sess.Candidates = append(sess.Candidates, c.Task.ID)
		}
		return Reply{Message: format.Disambiguation(query, resolution.Candidates)}, nil
	default:
		sess.Reset()
		return Reply{Message: fmt.Sprintf("I couldn't find a task matching %q. Say \"show my tasks\" to see what you have.", query)}, nil
	}
}

// confirmTarget stages the workflow's confirmation for a resolved task.
// For updates, field changes already present in the triggering message skip
// straight to the confirmation.
func (e *Engine) confirmTarget(ctx context.Context, sess *Session, t task.Task, message string) (Reply, error) {
	sess.TargetID = t.ID

	switch sess.Workflow {
	case WorkflowDelete:
		sess.State = StateConfirming
		sess.Step = StepNone
		return Reply{Message: format.DeleteConfirmation(t)}, nil

	case WorkflowComplete:
		if t.Completed {
			sess.Reset()
			return Reply{Message: fmt.Sprintf("Task #%d %q is already completed.", t.ID, t.Title)}, nil
		}
		sess.State = StateConfirming
		sess.Step = StepNone
		return Reply{Message: format.CompleteConfirmation(t, true)}, nil

	case WorkflowUncomplete:
		if !t.Completed {
			sess.Reset()
			return Reply{Message: fmt.Sprintf("Task #%d %q isn't completed.", t.ID, t.Title)}, nil
		}
		sess.State = StateConfirming
		sess.Step = StepNone
		return Reply{Message: format.CompleteConfirmation(t, false)}, nil

	case WorkflowUpdate:
		changes := intent.ExtractFieldChanges(message)
		if changes.Empty() {
			sess.State = StateCollecting
			sess.Step = StepChanges
			return Reply{Message: fmt.Sprintf("What would you like to change on task #%d %q? You can change the title, priority, due date, or notes.", t.ID, t.Title)}, nil
		}
		return e.stageUpdate(ctx, sess, t, changes)
	}

	return Reply{}, fmt.Errorf("unexpected workflow %q", sess.Workflow)
}

// stageUpdate converts extracted changes into a diff and asks for
// confirmation. Date parse failures re-prompt without losing the target.
func (e *Engine) stageUpdate(ctx context.Context, sess *Session, t task.Task, changes intent.FieldChanges) (Reply, error) {
	diff, dateErr := e.buildDiff(ctx, changes)
	if dateErr != nil {
		sess.State = StateCollecting
		sess.Step = StepChanges
		return Reply{Message: format.DateError(dateErr)}, nil
	}
	if diff.Empty() {
		sess.State = StateCollecting
		sess.Step = StepChanges
		return Reply{Message: fmt.Sprintf("I didn't catch a change for task #%d. You can change the title, priority, due date, or notes.", t.ID)}, nil
	}

	sess.Diff = diff
	sess.State = StateConfirming
	sess.Step = StepNone
	return Reply{Message: format.UpdateConfirmation(t, diff)}, nil
}

func (e *Engine) buildDiff(ctx context.Context, changes intent.FieldChanges) (task.Diff, error) {
	var diff task.Diff
	if changes.HasTitle {
		title := changes.Title
		diff.Title = &title
	}
	if changes.HasDesc {
		desc := changes.Description
		diff.Description = &desc
	}
	if changes.HasPriority {
		p := changes.Priority
		diff.Priority = &p
	}
	if changes.HasDue {
		if intent.NoDeadline(changes.RawDue) {
			diff.ClearDue = true
		} else {
			res, err := e.dates.NormalizeWithFallback(ctx, changes.RawDue, time.Now())
			if err != nil {
				return task.Diff{}, err
			}
			diff.DueDate = &res.Time
		}
	}
	if changes.Completed != nil {
		diff.Completed = changes.Completed
	}
	return diff, nil
}

// handleConfirmation resolves a staged mutation. The session leaves the
// confirming state before the store is called, so a repeated "yes" can
// never execute twice.
func (e *Engine) handleConfirmation(ctx context.Context, sess *Session, res intent.Result) (Reply, error) {
	switch res.Intent {
	case intent.ConfirmYes:
		e.metrics.recordConfirmation("confirmed")
		return e.executeConfirmed(ctx, sess)
	case intent.ConfirmNo:
		e.metrics.recordConfirmation("declined")
		wf := sess.Workflow
		sess.Reset()
		switch wf {
		case WorkflowDelete:
			return Reply{Message: "Okay, I won't delete it."}, nil
		case WorkflowCreate:
			return Reply{Message: "Okay, I won't create it."}, nil
		default:
			return Reply{Message: "Okay, no changes made."}, nil
		}
	default:
		return Reply{Message: "Please answer \"yes\" or \"no\" (or \"cancel\" to stop)."}, nil
	}
}

func (e *Engine) executeConfirmed(ctx context.Context, sess *Session) (Reply, error) {
	wf := sess.Workflow
	targetID := sess.TargetID
	diff := sess.Diff
	fields := e.draftFields(sess)

	// Leave the confirming state and persist before mutating, so a store
	// failure cannot be replayed by answering "yes" again.
	sess.Reset()
	sess.UpdatedAt = time.Now().UTC()
	if err := e.sessions.Put(ctx, *sess); err != nil {
		return Reply{}, fmt.Errorf("save session: %w", err)
	}

	switch wf {
	case WorkflowCreate:
		t, err := e.tasks.Create(ctx, fields)
		if err != nil {
			e.metrics.recordStoreFailure()
			return Reply{}, fmt.Errorf("create task: %w", err)
		}
		e.log.Info(ctx, "task created", zap.Int64("task.id", t.ID))
		return Reply{Message: "Done! " + format.Card(t), Action: ActionCreated, Task: &t}, nil

	case WorkflowUpdate:
		t, err := e.tasks.Update(ctx, sess.UserID, targetID, diff)
		if errors.Is(err, task.ErrNotFound) {
			return Reply{Message: fmt.Sprintf("Task #%d no longer exists.", targetID)}, nil
		}
		if err != nil {
			e.metrics.recordStoreFailure()
			return Reply{}, fmt.Errorf("update task: %w", err)
		}
		e.log.Info(ctx, "task updated", zap.Int64("task.id", t.ID))
		return Reply{Message: "Updated. " + format.Card(t), Action: ActionUpdated, Task: &t}, nil

	case WorkflowDelete:
		err := e.tasks.Delete(ctx, sess.UserID, targetID)
		if errors.Is(err, task.ErrNotFound) {
			return Reply{Message: fmt.Sprintf("Task #%d no longer exists.", targetID)}, nil
		}
		if err != nil {
			e.metrics.recordStoreFailure()
			return Reply{}, fmt.Errorf("delete task: %w", err)
		}
		e.log.Info(ctx, "task deleted", zap.Int64("task.id", targetID))
		return Reply{Message: fmt.Sprintf("Deleted task #%d.", targetID), Action: ActionDeleted}, nil

	case WorkflowComplete, WorkflowUncomplete:
		done := wf == WorkflowComplete
		t, err := e.tasks.SetCompleted(ctx, sess.UserID, targetID, done)
		if errors.Is(err, task.ErrNotFound) {
			return Reply{Message: fmt.Sprintf("Task #%d no longer exists.", targetID)}, nil
		}
		if err != nil {
			e.metrics.recordStoreFailure()
			return Reply{}, fmt.Errorf("set completed: %w", err)
		}
		if done {
			e.log.Info(ctx, "task completed", zap.Int64("task.id", t.ID))
			return Reply{Message: fmt.Sprintf("Nice, task #%d %q is done.", t.ID, t.Title), Action: ActionCompleted, Task: &t}, nil
		}
		e.log.Info(ctx, "task reopened", zap.Int64("task.id", t.ID))
		return Reply{Message: fmt.Sprintf("Task #%d %q is pending again.", t.ID, t.Title), Action: ActionReopened, Task: &t}, nil
	}

	return Reply{}, fmt.Errorf("unexpected workflow %q", wf)
}

// handleDisambiguation interprets the user's pick from a candidate listing.
// Small numbers are list positions; larger numbers are task ids.
func (e *Engine) handleDisambiguation(ctx context.Context, sess *Session, message string, res intent.Result) (Reply, error) {
	if res.Intent == intent.ConfirmNo {
		sess.Reset()
		return Reply{Message: "Okay, never mind."}, nil
	}

	var targetID int64
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(message), "."))
	if n, err := strconv.Atoi(strings.TrimPrefix(trimmed, "#")); err == nil {
		if n >= 1 && n <= len(sess.Candidates) {
			targetID = sess.Candidates[n-1]
		} else {
			targetID = int64(n)
		}
	} else if id, name, ok := intent.ExtractTaskRef(message); ok {
		if id != 0 {
			targetID = id
		} else {
			// A fresh name fragment restarts resolution.
			return e.resolveByName(ctx, sess, name, message)
		}
	}

	if targetID == 0 {
		return Reply{Message: fmt.Sprintf("Please pick one of the %d tasks by number, or say \"cancel\".", len(sess.Candidates))}, nil
	}

	t, err := e.tasks.Get(ctx, sess.UserID, targetID)
	if errors.Is(err, task.ErrNotFound) {
		return Reply{Message: fmt.Sprintf("I couldn't find task #%d. Pick one of the listed numbers or say \"cancel\".", targetID)}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("get task: %w", err)
	}

	sess.Candidates = nil
	sess.Query = ""
	if sess.Workflow == WorkflowUpdate && !sess.Diff.Empty() {
		sess.TargetID = t.ID
		sess.State = StateConfirming
		sess.Step = StepNone
		return Reply{Message: format.UpdateConfirmation(t, sess.Diff)}, nil
	}
	return e.confirmTarget(ctx, sess, t, "")
}

// handleFieldAnswer consumes an answer to the question the active workflow
// asked.
func (e *Engine) handleFieldAnswer(ctx context.Context, sess *Session, message string, res intent.Result) (Reply, error) {
	if sess.Workflow == WorkflowCreate {
		return e.handleCreateAnswer(ctx, sess, message, res)
	}

	switch sess.Step {
	case StepTarget:
		if res.Entities.HasTaskID {
			t, err := e.tasks.Get(ctx, sess.UserID, res.Entities.TaskID)
			if errors.Is(err, task.ErrNotFound) {
				return Reply{Message: fmt.Sprintf("I couldn't find task #%d. Try again or say \"cancel\".", res.Entities.TaskID)}, nil
			}
			if err != nil {
				return Reply{}, fmt.Errorf("get task: %w", err)
			}
			return e.confirmTarget(ctx, sess, t, message)
		}
		query := message
		if res.Entities.HasTaskName {
			query = res.Entities.TaskName
		}
		return e.resolveByName(ctx, sess, query, message)

	case StepChanges:
		changes := intent.ExtractFieldChanges(message)
		if changes.Empty() {
			return Reply{Message: "Tell me what to change, for example \"set priority to high\" or \"due next friday\"."}, nil
		}
		t, err := e.tasks.Get(ctx, sess.UserID, sess.TargetID)
		if errors.Is(err, task.ErrNotFound) {
			sess.Reset()
			return Reply{Message: "That task no longer exists."}, nil
		}
		if err != nil {
			return Reply{}, fmt.Errorf("get task: %w", err)
		}
		return e.stageUpdate(ctx, sess, t, changes)
	}

	return Reply{Message: "I'm not sure what you mean. " + helpText}, nil
}

func (e *Engine) handleCreateAnswer(ctx context.Context, sess *Session, message string, res intent.Result) (Reply, error) {
	answer := strings.TrimSpace(message)

	switch sess.Step {
	case StepTitle:
		if answer == "" {
			return Reply{Message: "What should the task be called?"}, nil
		}
		sess.Draft.Title = answer
		if res.Entities.HasPriority && sess.Draft.Priority == "" {
			sess.Draft.Priority = res.Entities.Priority
		}
		return e.askNextCreateField(sess), nil

	case StepPriority:
		if p, ok := intent.ExtractPriority(answer); ok {
			sess.Draft.Priority = p
			return e.askNextCreateField(sess), nil
		}
		switch strings.ToLower(answer) {
		case "skip", "default", "whatever", "any", "no":
			sess.Draft.Priority = task.PriorityMedium
			return e.askNextCreateField(sess), nil
		}
		return Reply{Message: "Please pick a priority: high, medium, or low. Or say \"skip\"."}, nil

	case StepDeadline:
		if intent.NoDeadline(answer) {
			sess.Draft.DueSet = true
			return e.askNextCreateField(sess), nil
		}
		parsed, err := e.dates.NormalizeWithFallback(ctx, answer, time.Now())
		if err != nil {
			return Reply{Message: format.DateError(err)}, nil
		}
		due := parsed.Time
		sess.Draft.DueDate = &due
		sess.Draft.DueSet = true
		return e.askNextCreateField(sess), nil

	case StepDescription:
		if !intent.NoDescription(answer) && answer != "" {
			sess.Draft.Description = answer
		}
		sess.Draft.DescSet = true
		return e.askNextCreateField(sess), nil
	}

	return Reply{Message: "I'm not sure what you mean. " + helpText}, nil
}
