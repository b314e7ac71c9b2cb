// Package dates converts natural-language deadlines into absolute
// timestamps against an injected reference time.
//
// The deterministic parser covers relative days ("tomorrow", "next
// monday"), offsets ("in 2 hours"), month-name and ISO dates, and
// time-of-day words. When only a date is given the time defaults to end of
// day (23:59). Parse failures and rejected dates are distinguished with
// sentinel errors so callers can give a targeted re-prompt.
package dates

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors forming the date error taxonomy.
var (
	ErrEmpty        = errors.New("date text is empty")
	ErrUnparseable  = errors.New("could not parse date")
	ErrPastDate     = errors.New("date is in the past")
	ErrTooFarFuture = errors.New("date is too far in the future")
)

// MaxFutureYears bounds how far ahead a due date may be set.
const MaxFutureYears = 10

// FallbackThreshold is the confidence below which the LLM fallback is
// consulted, when configured.
const FallbackThreshold = 0.6

// Result is a normalized timestamp with a confidence score describing how
// specific the input was.
type Result struct {
	Time       time.Time
	Confidence float64
}

// Fallback resolves date text the deterministic parser could not. It is
// consulted only by NormalizeWithFallback.
type Fallback interface {
	ParseDate(ctx context.Context, text string, now time.Time) (time.Time, float64, error)
}

// Normalizer parses natural-language dates. The zero value is usable; set
// LLM to enable fallback parsing.
type Normalizer struct {
	LLM Fallback
}

// New returns a Normalizer without LLM fallback.
func New() *Normalizer { return &Normalizer{} }

// timeOfDay maps day-part words to clock times. Ordered so longer words are
// matched before their substrings ("afternoon" before "noon", "midnight"
// before "night").
var timeOfDay = []struct {
	word string
	at   clock
}{
	{"afternoon", clock{14, 0}},
	{"morning", clock{9, 0}},
	{"midnight", clock{23, 59}},
	{"evening", clock{18, 0}},
	{"night", clock{20, 0}},
	{"noon", clock{12, 0}},
}

type clock struct{ hour, minute int }

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	atTimeRe  = regexp.MustCompile(`\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	bareHmRe  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
	inOffRe   = regexp.MustCompile(`^in\s+(\d+)\s+(minute|min|hour|hr|day|week|month)s?$`)
	weekdayRe = regexp.MustCompile(`^(next\s+|this\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	monthDmRe = regexp.MustCompile(`^(\w+)\s+(\d{1,2})(?:st|nd|rd|th)?(?:\s*,?\s*(\d{4}))?$`)
	dmMonthRe = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(\w+)(?:\s*,?\s*(\d{4}))?$`)
	isoDtRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[ T](\d{2}):(\d{2}))?$`)
)

// Normalize parses text relative to now and validates the outcome. Errors
// are one of the package sentinels (possibly wrapped).
func (n *Normalizer) Normalize(text string, now time.Time) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{}, ErrEmpty
	}

	lower := preprocess(strings.ToLower(trimmed))

	parsed, withTime, ok := parse(lower, now)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnparseable, trimmed)
	}
	if !withTime {
		// End-of-day default when only a date was given.
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 0, 0, now.Location())
	}

	if err := validate(parsed, now); err != nil {
		return Result{}, err
	}

	return Result{Time: parsed, Confidence: confidence(lower, withTime)}, nil
}

// NormalizeWithFallback runs the deterministic parser and consults the LLM
// fallback when it fails or parses with low confidence.
func (n *Normalizer) NormalizeWithFallback(ctx context.Context, text string, now time.Time) (Result, error) {
	res, err := n.Normalize(text, now)
	if err == nil && res.Confidence >= FallbackThreshold {
		return res, nil
	}
	// Past and far-future rejections are authoritative; the fallback is
	// only for text the parser could not interpret.
	if errors.Is(err, ErrPastDate) || errors.Is(err, ErrTooFarFuture) || errors.Is(err, ErrEmpty) {
		return Result{}, err
	}
	if n.LLM == nil {
		return res, err
	}

	t, conf, ferr := n.LLM.ParseDate(ctx, text, now)
	if ferr != nil {
		if err != nil {
			return Result{}, err
		}
		return res, nil
	}
	if verr := validate(t, now); verr != nil {
		return Result{}, verr
	}
	return Result{Time: t, Confidence: conf}, nil
}

func validate(t, now time.Time) error {
	if t.Before(now) {
		return ErrPastDate
	}
	if t.After(now.AddDate(MaxFutureYears, 0, 0)) {
		return ErrTooFarFuture
	}
	return nil
}

// preprocess rewrites day-part words into explicit "at H:MM" clauses and
// applies the meridiem heuristic to trailing bare hours (1-7 assumed pm,
// 8-11 assumed am).
func preprocess(lower string) string {
	text := strings.TrimSpace(lower)

	if strings.HasPrefix(text, "tonight") {
		text = "today" + strings.TrimPrefix(text, "tonight")
		if strings.TrimSpace(text) == "today" {
			text = "today at 8pm"
		} else if strings.Contains(text, "at") && !strings.Contains(text, "am") && !strings.Contains(text, "pm") {
			text += "pm"
		}
	}

	for _, entry := range timeOfDay {
		word, c := entry.word, entry.at
		if !strings.Contains(text, word) {
			continue
		}
		meridiem := "am"
		hour := c.hour
		if hour >= 12 {
			meridiem = "pm"
			if hour > 12 {
				hour -= 12
			}
		}
		repl := fmt.Sprintf("at %d", hour)
		if c.minute != 0 {
			repl = fmt.Sprintf("at %d:%02d", hour, c.minute)
		}
		text = strings.ReplaceAll(text, word, repl+meridiem)
		break
	}

	// "at 5" with no am/pm: assume pm for 1-7, am for 8-11.
	if m := regexp.MustCompile(`at\s+(\d{1,2})(:\d{2})?\s*$`).FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minutes := strings.TrimPrefix(m[2], ":")
		if minutes == "" {
			minutes = "00"
		}
		switch {
		case hour >= 1 && hour <= 7:
			text = regexp.MustCompile(`at\s+\d{1,2}(:\d{2})?\s*$`).ReplaceAllString(text, fmt.Sprintf("at %d:%spm", hour, minutes))
		case hour >= 8 && hour <= 11:
			text = regexp.MustCompile(`at\s+\d{1,2}(:\d{2})?\s*$`).ReplaceAllString(text, fmt.Sprintf("at %d:%sam", hour, minutes))
		}
	}

	return strings.Join(strings.Fields(text), " ")
}

// parse attempts each supported form. Returns the parsed time, whether an
// explicit clock time was present, and whether parsing succeeded.
func parse(lower string, now time.Time) (time.Time, bool, bool) {
	// Split a trailing "at TIME" clause off, if any.
	datePart := lower
	var tod *clock
	if m := atTimeRe.FindStringSubmatchIndex(lower); m != nil {
		if c, ok := parseClock(lower[m[0]:m[1]]); ok {
			tod = &c
			datePart = strings.TrimSpace(lower[:m[0]] + lower[m[1]:])
		}
	}

	if datePart == "" && tod != nil {
		// Bare "at 5pm" means today, or tomorrow if already past.
		t := time.Date(now.Year(), now.Month(), now.Day(), tod.hour, tod.minute, 0, 0, now.Location())
		if t.Before(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true, true
	}

	if t, hasClock, ok := parseDatePart(datePart, now); ok {
		if tod != nil {
			return applyClock(t, tod, now), true, true
		}
		return t, hasClock, true
	}

	// No recognized date part: the whole text may be a bare clock time.
	if c, ok := parseClock("at " + datePart); ok {
		t := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, now.Location())
		if t.Before(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true, true
	}

	return time.Time{}, false, false
}

func applyClock(day time.Time, tod *clock, now time.Time) time.Time {
	if tod == nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.hour, tod.minute, 0, 0, now.Location())
}

// parseDatePart parses the date portion of the text. The second return
// reports whether the form carries its own clock time (offsets, ISO
// datetimes); bare dates get the end-of-day default upstream.
func parseDatePart(datePart string, now time.Time) (time.Time, bool, bool) {
	switch datePart {
	case "today":
		return now, false, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), false, true
	case "yesterday":
		// Parses so the past-date rejection can name the real problem.
		return now.AddDate(0, 0, -1), false, true
	case "next week":
		return now.AddDate(0, 0, 7), false, true
	case "next month":
		return now.AddDate(0, 1, 0), false, true
	}

	if m := inOffRe.FindStringSubmatch(datePart); m != nil {
		nUnits, _ := strconv.Atoi(m[1])
		var d time.Time
		switch m[2] {
		case "minute", "min":
			d = now.Add(time.Duration(nUnits) * time.Minute)
		case "hour", "hr":
			d = now.Add(time.Duration(nUnits) * time.Hour)
		case "day":
			d = now.AddDate(0, 0, nUnits)
		case "week":
			d = now.AddDate(0, 0, 7*nUnits)
		case "month":
			d = now.AddDate(0, nUnits, 0)
		}
		// Offsets shift the current clock, so the time is already set.
		return d, true, true
	}

	if m := weekdayRe.FindStringSubmatch(datePart); m != nil {
		target := weekdays[m[2]]
		daysAhead := int(target-now.Weekday()+7) % 7
		if daysAhead == 0 {
			daysAhead = 7
		}
		// "next friday" earlier in the same week means the week after.
		if strings.TrimSpace(m[1]) == "next" && daysAhead < 7 {
			daysAhead += 7
		}
		return now.AddDate(0, 0, daysAhead), false, true
	}

	if m := isoDtRe.FindStringSubmatch(datePart); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false, false
		}
		if m[4] != "" {
			hour, _ := strconv.Atoi(m[4])
			minute, _ := strconv.Atoi(m[5])
			return time.Date(year, time.Month(month), day, hour, minute, 0, 0, now.Location()), true, true
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), false, true
	}

	if t, ok := parseMonthDay(datePart, now); ok {
		return t, false, true
	}

	return time.Time{}, false, false
}

func parseMonthDay(datePart string, now time.Time) (time.Time, bool) {
	var monthWord string
	var day, year int

	if m := monthDmRe.FindStringSubmatch(datePart); m != nil {
		monthWord = m[1]
		day, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
	} else if m := dmMonthRe.FindStringSubmatch(datePart); m != nil {
		day, _ = strconv.Atoi(m[1])
		monthWord = m[2]
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
	} else {
		return time.Time{}, false
	}

	month, ok := months[monthWord]
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}

	if year == 0 {
		year = now.Year()
		t := time.Date(year, month, day, 23, 59, 0, 0, now.Location())
		// Prefer the future occurrence for ambiguous month-day dates.
		if t.Before(now) {
			year++
		}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
}

func parseClock(s string) (clock, bool) {
	s = strings.TrimSpace(s)
	var m []string
	if strings.HasPrefix(s, "at ") {
		m = atTimeRe.FindStringSubmatch(s)
	} else {
		m = bareHmRe.FindStringSubmatch(s)
	}
	if m == nil {
		return clock{}, false
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if hour > 23 || minute > 59 {
		return clock{}, false
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "":
		// 24-hour or ambiguous; only accept with explicit minutes.
		if m[2] == "" {
			return clock{}, false
		}
	}
	return clock{hour, minute}, true
}

// confidence scores how specific the input was, mirroring the original
// heuristics: explicit times score high, relative days medium, vague
// phrases low.
func confidence(lower string, withTime bool) float64 {
	switch {
	case isoDtRe.MatchString(lower):
		return 0.95
	case withTime:
		return 0.9
	}
	for month := range months {
		if strings.Contains(lower, month) {
			return 0.85
		}
	}
	for _, w := range []string{"tomorrow", "next week", "next month", "in ", "days", "weeks", "months"} {
		if strings.Contains(lower, w) {
			return 0.8
		}
	}
	for day := range weekdays {
		if strings.Contains(lower, day) {
			return 0.8
		}
	}
	for _, w := range []string{"sometime", "later", "soon", "eventually"} {
		if strings.Contains(lower, w) {
			return 0.5
		}
	}
	return 0.7
}
