package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fernlabs/taskd/internal/task"
)

// Priority keyword tables. "not urgent" is negation-checked before the high
// table so it resolves low rather than matching "urgent".
var (
	highPriorityWords   = []string{"urgent", "critical", "important", "asap", "high"}
	lowPriorityWords    = []string{"minor", "trivial", "someday", "low"}
	mediumPriorityWords = []string{"medium", "normal", "regular"}
)

var (
	taskIDRe       = regexp.MustCompile(`\btask\s*#?(\d+)\b`)
	bareNumberRe   = regexp.MustCompile(`^#?(\d+)$`)
	theNameTaskRe  = regexp.MustCompile(`\bthe\s+(\w+)\s+task\b`)
	nameTaskRe     = regexp.MustCompile(`\b(\w+)\s+task\b`)
	finishedNameRe = regexp.MustCompile(`\b(finished|completed|done)\s+(.+)$`)

	titlePrefixRes = compileAll(
		`\b(add|create|new|make)\s+(an?\s+)?(urgent\s+|important\s+)?task\b\s*(to\s+|called\s+|named\s+)?`,
		`\b(want|need|have)\s+to\s+`,
		`\b(remind|remember)\s+me\s+to\s+`,
		`\b(urgent|high|medium|low|normal)\s+(priority\s+)?`,
	)

	changeTitleRe = regexp.MustCompile(`(?:title|name)\s+(?:to|as|=)\s*["']?(.+?)["']?(?:\s*,|$)`)
	changeDescRe  = regexp.MustCompile(`description\s+(?:to|as|=)\s*["']?(.+?)["']?(?:\s*,|$)`)
	changeDueRes  = compileAll(
		`(?:due|deadline|by)\s+(.+?)(?:\s*,|$)`,
		`due_date\s+(?:to|as|=)\s*(.+?)(?:\s*,|$)`,
	)
	markDoneRe    = regexp.MustCompile(`\b(complete|done|finished)\b`)
	markPendingRe = regexp.MustCompile(`\b(incomplete|not\s+done|pending)\b`)
)

// extractPriority finds an explicit priority keyword in lowered text.
func extractPriority(lower string) (task.Priority, bool) {
	if strings.Contains(lower, "not urgent") {
		return task.PriorityLow, true
	}
	for _, w := range highPriorityWords {
		if containsWord(lower, w) {
			return task.PriorityHigh, true
		}
	}
	for _, w := range lowPriorityWords {
		if containsWord(lower, w) {
			return task.PriorityLow, true
		}
	}
	for _, w := range mediumPriorityWords {
		if containsWord(lower, w) {
			return task.PriorityMedium, true
		}
	}
	return "", false
}

// ExtractPriority is the exported form used by the conversation engine when
// collecting a priority answer.
func ExtractPriority(text string) (task.Priority, bool) {
	return extractPriority(strings.ToLower(text))
}

func containsWord(lower, word string) bool {
	if strings.Contains(word, " ") {
		return strings.Contains(lower, word)
	}
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		startOK := start == 0 || !isWordChar(lower[start-1])
		endOK := end == len(lower) || !isWordChar(lower[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// ExtractTaskRef pulls a task identifier out of the text: a numeric id
// ("task 5", "#5", a bare "5") or a name fragment ("the milk task").
// Returns (id, "", true), (0, name, true), or (0, "", false).
func ExtractTaskRef(text string) (int64, string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))

	if m := taskIDRe.FindStringSubmatch(lower); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return id, "", true
		}
	}
	if m := bareNumberRe.FindStringSubmatch(lower); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return id, "", true
		}
	}
	if m := theNameTaskRe.FindStringSubmatch(lower); m != nil {
		return 0, m[1], true
	}
	if m := nameTaskRe.FindStringSubmatch(lower); m != nil {
		switch m[1] {
		case "my", "the", "a", "this", "that":
		default:
			return 0, m[1], true
		}
	}
	return 0, "", false
}

// extractCreateEntities pulls priority and a cleaned title from a create
// command. The title is the original message with command phrasing and
// priority words stripped.
func extractCreateEntities(original, lower string) Entities {
	var e Entities
	if p, ok := extractPriority(lower); ok {
		e.Priority, e.HasPriority = p, true
	}

	title := original
	for _, re := range titlePrefixRes {
		title = replaceAllCaseInsensitive(title, re)
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	// Pronoun and filler leftovers are not titles.
	switch strings.ToLower(title) {
	case "", "i", "a", "an", "please", "i'd like":
		return e
	}
	e.Title, e.HasTitle = title, true
	return e
}

// replaceAllCaseInsensitive strips matches of re (compiled against lowered
// text) from s while preserving the casing of what remains.
func replaceAllCaseInsensitive(s string, re *regexp.Regexp) string {
	lower := strings.ToLower(s)
	locs := re.FindAllStringIndex(lower, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(s[prev:loc[0]])
		prev = loc[1]
	}
	b.WriteString(s[prev:])
	return b.String()
}

// extractTargetEntities pulls a task id or name fragment for delete/update
// commands. verbs is the alternation used for the "<verb> the <name> task"
// form.
func extractTargetEntities(lower, verbs string) Entities {
	var e Entities
	if m := taskIDRe.FindStringSubmatch(lower); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			e.TaskID, e.HasTaskID = id, true
			return e
		}
	}
	nameRe := regexp.MustCompile(`\b(` + verbs + `)\s+the\s+(\w+)\s+task\b`)
	if m := nameRe.FindStringSubmatch(lower); m != nil {
		e.TaskName, e.HasTaskName = m[2], true
	}
	return e
}

// extractCompleteEntities pulls the target of a complete/uncomplete command:
// a task id, or the name from "I finished <name>".
func extractCompleteEntities(lower string) Entities {
	var e Entities
	if m := taskIDRe.FindStringSubmatch(lower); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			e.TaskID, e.HasTaskID = id, true
			return e
		}
	}
	if m := theNameTaskRe.FindStringSubmatch(lower); m != nil {
		e.TaskName, e.HasTaskName = m[1], true
		return e
	}
	if m := finishedNameRe.FindStringSubmatch(lower); m != nil {
		name := strings.TrimSpace(m[2])
		name = strings.TrimSuffix(name, " task")
		name = strings.TrimPrefix(name, "the ")
		name = strings.TrimPrefix(name, "my ")
		name = strings.TrimSpace(name)
		if name != "" {
			e.TaskName, e.HasTaskName = name, true
		}
	}
	return e
}

// extractListEntities pulls the status filter from a list command.
func extractListEntities(lower string) Entities {
	var e Entities
	switch {
	case containsWord(lower, "pending"), containsWord(lower, "active"):
		e.Status, e.HasStatus = task.StatusPending, true
	case containsWord(lower, "completed"):
		e.Status, e.HasStatus = task.StatusCompleted, true
	case containsWord(lower, "all"):
		e.Status, e.HasStatus = task.StatusAll, true
	}
	return e
}

// FieldChanges are edits extracted from an update utterance. RawDue is left
// unparsed for the date normalizer.
type FieldChanges struct {
	Title       string
	HasTitle    bool
	Description string
	HasDesc     bool
	Priority    task.Priority
	HasPriority bool
	RawDue      string
	HasDue      bool
	Completed   *bool
}

// Empty reports whether no change was recognized.
func (f FieldChanges) Empty() bool {
	return !f.HasTitle && !f.HasDesc && !f.HasPriority && !f.HasDue && f.Completed == nil
}

// ExtractFieldChanges pulls field edits from an update answer: "make it high
// priority", "title to X", "due tomorrow", "mark it done".
func ExtractFieldChanges(text string) FieldChanges {
	lower := strings.ToLower(text)
	var f FieldChanges

	if p, ok := extractPriority(lower); ok {
		f.Priority, f.HasPriority = p, true
	}
	if m := changeTitleRe.FindStringSubmatch(lower); m != nil {
		f.Title, f.HasTitle = strings.TrimSpace(m[1]), true
	}
	if m := changeDescRe.FindStringSubmatch(lower); m != nil {
		f.Description, f.HasDesc = strings.TrimSpace(m[1]), true
	}
	for _, re := range changeDueRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			f.RawDue, f.HasDue = strings.TrimSpace(m[1]), true
			break
		}
	}
	if markPendingRe.MatchString(lower) {
		pending := false
		f.Completed = &pending
	} else if markDoneRe.MatchString(lower) {
		done := true
		f.Completed = &done
	}
	return f
}

// NoDeadline reports whether the answer explicitly declines a due date.
func NoDeadline(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	phrases := []string{
		"no deadline", "no due date", "skip", "none", "nope",
		"don't need one", "no thanks", "skip deadline",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return lower == "no"
}

// NoDescription reports whether the answer declines a description.
func NoDescription(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch lower {
	case "no", "nope", "none", "skip", "no description", "no thanks":
		return true
	}
	return false
}
