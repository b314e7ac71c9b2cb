package intent

import (
	"regexp"
	"strings"
)

// Pattern groups per intent. Order of evaluation matters and is fixed in
// Classify: cancel first, then list before complete ("show completed tasks"
// is a listing), create before complete ("have to" phrasing).
var (
	createPatterns = compileAll(
		`\b(add|create|new|make)\s+(a\s+)?(task|urgent\s+task)\b`,
		`\b(add|create)\s+(urgent|high\s+priority|important)\s+task\b`,
		`\b(add|create|new)\s+(high|medium|low|normal)\s+(priority\s+)?task\b`,
		`\b(add|create)\s+[\w\s]+task\b`,
		`\b(want|need|have)\s+to\b`,
		`\b(remind|remember)\s+me\s+to\b`,
	)

	deletePatterns = compileAll(
		`\b(delete|remove|erase)\s+(the\s+)?task\s+#?(\d+)\b`,
		`\b(delete|remove|erase)\s+(the\s+)?task\b`,
		`\bcancel\s+task\s+#?(\d+)\b`,
		`\b(delete|remove)\s+the\s+\w+\s+task\b`,
	)

	updatePatterns = compileAll(
		`\b(update|change|modify|edit)\s+(the\s+)?task\b`,
		`\b(update|change)\s+task\s+#?(\d+)\b`,
		`\b(change|update)\s+the\s+\w+\s+task\b`,
		`\b(make|set)\s+it\s+(to\s+)?(high|medium|low)\s+priority\b`,
	)

	uncompletePatterns = compileAll(
		`\b(mark|set)\s+(task\s+)?#?(\d+)?\s*as\s+(incomplete|not\s+done|pending)\b`,
		`\b(uncomplete|reopen)\s+task\s+#?(\d+)\b`,
		`\btask\s+#?(\d+)\s+is\s+(incomplete|not\s+done)\b`,
	)

	completePatterns = compileAll(
		`\b(mark|set)\s+(task\s+)?#?(\d+)?\s*as\s+(complete|done|finished)\b`,
		`\b(complete|finish)\s+task\s+#?(\d+)\b`,
		`\b(done\s+with)\s+task\s+#?(\d+)\b`,
		`\b(complete|finish)\s+the\s+\w+\s+task\b`,
		`\b(i\s+)?(finished|completed|done)\s+\w+`,
		`\btask\s+#?(\d+)\s+is\s+(done|complete|finished)\b`,
	)

	listPatterns = compileAll(
		`\b(show|list|display|view|get)\s+(my|all|the)?\s*(pending|completed|active)?\s*tasks?\b`,
		`\b(show|list|display)\s+(all\s+)?my\s+tasks?\b`,
		`\bwhat\s+(are\s+)?my\s+tasks\b`,
		`\b(show|list|view)\s+(pending|completed|all)\s+tasks\b`,
	)

	cancelPatterns = compileAll(
		`\b(never\s+mind|nevermind)\b`,
		`\b(cancel|stop|abort)\b`,
		`\b(forget\s+it|don'?t\s+bother)\b`,
	)

	// cancelTaskRe distinguishes "cancel task 3" (a delete) from a bare
	// cancellation. Go regexp has no lookahead, so the exclusion is explicit.
	cancelTaskRe = regexp.MustCompile(`\bcancel\s+task\s+#?\d+\b`)

	// finishedTasksRe excludes "show finished tasks"-style phrasing from the
	// complete patterns (the original used a lookahead for this).
	finishedTasksRe = regexp.MustCompile(`\b(finished|completed|done)\s+tasks\b`)

	confirmYesRe = regexp.MustCompile(`^(yes|yeah|yep|yup|sure|ok|okay|confirm)[.!]?$`)
	confirmNoRe  = regexp.MustCompile(`^(no|nope|nah|don'?t)[.!]?$`)

	makeSetItRe = regexp.MustCompile(`\b(make|set)\s+it\b`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(message string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// Classifier maps utterances to intents with a fixed rule table.
type Classifier struct{}

// NewClassifier returns a Classifier.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify determines the intent of message. active carries the caller's
// in-progress workflow so confirmations and field answers are preferred
// over reclassifying as a new command.
func (c *Classifier) Classify(message string, active Activity) Result {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return Result{Intent: Ambiguous, Confidence: 0}
	}

	if active != ActivityNone {
		if r, ok := c.classifyAsAnswer(message, lower, active); ok {
			return r
		}
	}

	// Cancellation has the highest priority, except "cancel task N" which
	// is a delete request.
	if matchesAny(lower, cancelPatterns) && !cancelTaskRe.MatchString(lower) {
		return Result{Intent: Cancel, Confidence: 0.95}
	}

	if matchesAny(lower, listPatterns) {
		return Result{Intent: List, Confidence: 0.9, Entities: extractListEntities(lower)}
	}

	if matchesAny(lower, createPatterns) {
		return Result{Intent: Create, Confidence: 0.9, Entities: extractCreateEntities(message, lower)}
	}

	if matchesAny(lower, deletePatterns) {
		return Result{Intent: Delete, Confidence: 0.9, Entities: extractTargetEntities(lower, "delete|remove")}
	}

	if matchesAny(lower, updatePatterns) {
		e := extractTargetEntities(lower, "update|change")
		if p, ok := extractPriority(lower); ok {
			e.Priority, e.HasPriority = p, true
		}
		return Result{Intent: Update, Confidence: 0.9, Entities: e}
	}

	if matchesAny(lower, uncompletePatterns) {
		return Result{Intent: Uncomplete, Confidence: 0.9, Entities: extractCompleteEntities(lower)}
	}

	if matchesAny(lower, completePatterns) && !finishedTasksRe.MatchString(lower) {
		return Result{Intent: Complete, Confidence: 0.9, Entities: extractCompleteEntities(lower)}
	}

	return Result{Intent: Ambiguous, Confidence: 0.3}
}

// classifyAsAnswer interprets the message as input the active workflow is
// waiting for. Returns false when the message looks like a new top-level
// command instead.
func (c *Classifier) classifyAsAnswer(original, lower string, active Activity) (Result, bool) {
	if confirmYesRe.MatchString(lower) {
		yes := true
		return Result{Intent: ConfirmYes, Confidence: 0.95, Entities: Entities{Confirmation: &yes}}, true
	}
	if confirmNoRe.MatchString(lower) {
		no := false
		return Result{Intent: ConfirmNo, Confidence: 0.95, Entities: Entities{Confirmation: &no}}, true
	}

	var e Entities
	if p, ok := extractPriority(lower); ok {
		e.Priority, e.HasPriority = p, true
	}

	if active == ActivityCreating {
		// Short phrases that are not commands are treated as field answers
		// (a title, a date, a description).
		if len(strings.Fields(lower)) <= 5 && !c.isCommand(lower) {
			e.Title, e.HasTitle = strings.TrimSpace(original), true
		}
		if makeSetItRe.MatchString(lower) && e.HasPriority {
			return Result{Intent: ProvideInfo, Confidence: 0.9, Entities: e}, true
		}
		if e.HasPriority || e.HasTitle {
			return Result{Intent: ProvideInfo, Confidence: 0.85, Entities: e}, true
		}
	} else {
		if e.HasPriority {
			return Result{Intent: ProvideInfo, Confidence: 0.85, Entities: e}, true
		}
		if id, name, ok := ExtractTaskRef(lower); ok && !c.isCommand(lower) {
			if id != 0 {
				e.TaskID, e.HasTaskID = id, true
			} else {
				e.TaskName, e.HasTaskName = name, true
			}
			return Result{Intent: ProvideInfo, Confidence: 0.85, Entities: e}, true
		}
	}

	return Result{}, false
}

// isCommand reports whether the message matches any top-level command
// pattern, including create.
func (c *Classifier) isCommand(lower string) bool {
	return matchesAny(lower, createPatterns) ||
		matchesAny(lower, deletePatterns) ||
		matchesAny(lower, updatePatterns) ||
		matchesAny(lower, completePatterns) ||
		matchesAny(lower, listPatterns) ||
		(matchesAny(lower, cancelPatterns) && !cancelTaskRe.MatchString(lower))
}
