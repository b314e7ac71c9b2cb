// Package resolve matches a user's free-text task reference against their
// task list. An exact title match wins outright; otherwise fuzzy scoring
// decides between auto-selection, a disambiguation listing, and not-found.
package resolve

import (
	"sort"
	"strings"

	"github.com/fernlabs/taskd/internal/task"
)

// Scoring thresholds.
const (
	// MinScore is the floor below which a task is not listed at all.
	MinScore = 0.6
	// AcceptScore is the minimum for auto-selecting the best match.
	AcceptScore = 0.8
	// CloseBand is the score gap under which the runner-up is considered
	// too close to auto-select the leader.
	CloseBand = 0.05
	// MaxCandidates caps a disambiguation listing.
	MaxCandidates = 5
)

// Kind classifies the outcome of a resolution.
type Kind int

const (
	// NotFound means nothing scored at or above MinScore.
	NotFound Kind = iota
	// Auto means a single candidate was confidently selected.
	Auto
	// Disambiguate means the caller must present Candidates and ask.
	Disambiguate
)

// Candidate is one scored match. MatchedField records whether the title or
// the description produced the score.
type Candidate struct {
	Task         task.Task
	Score        float64
	MatchedField string
}

// Resolution is the outcome of resolving a reference.
type Resolution struct {
	Kind Kind
	// Match and Score are set when Kind is Auto.
	Match task.Task
	Score float64
	// Candidates is set when Kind is Disambiguate, best first, capped at
	// MaxCandidates.
	Candidates []Candidate
}

// Resolve scores query against each task's title (primary) and description
// (secondary) and decides. Tasks with an exact (case-insensitive) title
// match short-circuit to Auto with score 1.0 when unique.
func Resolve(tasks []task.Task, query string) Resolution {
	query = strings.TrimSpace(query)
	if query == "" || len(tasks) == 0 {
		return Resolution{Kind: NotFound}
	}

	var exact []task.Task
	for _, t := range tasks {
		if strings.EqualFold(strings.TrimSpace(t.Title), query) {
			exact = append(exact, t)
		}
	}
	if len(exact) == 1 {
		return Resolution{Kind: Auto, Match: exact[0], Score: 1}
	}

	var cands []Candidate
	for _, t := range tasks {
		score := Similarity(query, t.Title)
		field := "title"
		if t.Description != "" {
			if ds := Similarity(query, t.Description); ds > score {
				score = ds
				field = "description"
			}
		}
		if score >= MinScore {
			cands = append(cands, Candidate{Task: t, Score: score, MatchedField: field})
		}
	}
	if len(cands) == 0 {
		return Resolution{Kind: NotFound}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if len(cands[i].Task.Title) != len(cands[j].Task.Title) {
			return len(cands[i].Task.Title) < len(cands[j].Task.Title)
		}
		return cands[i].Task.ID < cands[j].Task.ID
	})
	if len(cands) > MaxCandidates {
		cands = cands[:MaxCandidates]
	}

	top := cands[0]
	if top.Score >= AcceptScore {
		if len(cands) == 1 || top.Score-cands[1].Score > CloseBand {
			return Resolution{Kind: Auto, Match: top.Task, Score: top.Score}
		}
	}
	return Resolution{Kind: Disambiguate, Candidates: cands}
}
