package stats

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/sprint"
)

// Velocity categories.
const (
	Incomplete = "incomplete"
	Complete   = "complete"
	Rejected   = "rejected"
)

// Issue types used to refine each category.
const (
	TypePR    = "PR"
	TypeBug   = "bug"
	TypeIssue = "issue"
)

// Exclusion reasons.
const (
	ReasonNotStarted     = "not started"
	ReasonClosedUnworked = "closed without being worked"
)

// Classified pairs an issue with its derived lifecycle.
type Classified struct {
	Issue     eventlog.Issue     `json:"issue"`
	Lifecycle eventlog.Lifecycle `json:"lifecycle"`
}

// ClassifyAll classifies every issue, stopping at the first malformed one.
func ClassifyAll(issues []eventlog.Issue, cal *sprint.Calendar, vocab eventlog.Vocabulary) ([]Classified, error) {
	out := make([]Classified, 0, len(issues))
	for _, issue := range issues {
		lc, err := eventlog.Classify(issue, cal, vocab)
		if err != nil {
			return nil, err
		}
		out = append(out, Classified{Issue: issue, Lifecycle: lc})
	}
	return out, nil
}

// Entry accumulates the contributions for one (sprint, category) key.
type Entry struct {
	Count  int              `json:"count" yaml:"count"`
	Issues map[string][]int `json:"issues" yaml:"issues"`
}

func (e *Entry) add(repo string, number int) {
	e.Count++
	if e.Issues == nil {
		e.Issues = make(map[string][]int)
	}
	nums := e.Issues[repo]
	i, found := slices.BinarySearch(nums, number)
	if found {
		return
	}
	e.Issues[repo] = slices.Insert(nums, i, number)
}

// Refs flattens the entry's issues into "repo#n" strings, sorted.
func (e *Entry) Refs() []string {
	if e == nil {
		return nil
	}
	var refs []string
	for _, repo := range slices.Sorted(maps.Keys(e.Issues)) {
		for _, n := range e.Issues[repo] {
			refs = append(refs, fmt.Sprintf("%s#%d", repo, n))
		}
	}
	return refs
}

// IssueRef identifies an issue left out of the breakdown and why.
type IssueRef struct {
	Repository string `json:"repository" yaml:"repository"`
	Number     int    `json:"number" yaml:"number"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Reason     string `json:"reason" yaml:"reason"`
}

// Velocity is the sprint by category breakdown of a set of issues.
type Velocity struct {
	Current  int                       `json:"current" yaml:"current"`
	Sprints  map[int]map[string]*Entry `json:"sprints" yaml:"sprints"`
	Excluded []IssueRef                `json:"excluded" yaml:"excluded"`
}

// TypeOf returns the issue type tag: PR, bug or issue.
func TypeOf(issue eventlog.Issue, vocab eventlog.Vocabulary) string {
	switch {
	case issue.IsPullRequest:
		return TypePR
	case issue.HasLabel(vocab.Bug):
		return TypeBug
	default:
		return TypeIssue
	}
}

// Aggregate folds classified issues into a Velocity. In-progress issues
// count as incomplete up to and including the current sprint. The result
// depends only on its inputs, never on their order.
func Aggregate(issues []Classified, current int, vocab eventlog.Vocabulary) Velocity {
	v := Velocity{Current: current, Sprints: make(map[int]map[string]*Entry)}

	for _, c := range issues {
		lc := c.Lifecycle
		typ := TypeOf(c.Issue, vocab)

		switch {
		case lc.Rejected != nil:
			v.contribute(*lc.Rejected, Rejected, typ, c.Issue)
		case lc.Start == nil:
			reason := ReasonNotStarted
			if lc.Done != nil {
				reason = ReasonClosedUnworked
			}
			v.Excluded = append(v.Excluded, IssueRef{
				Repository: c.Issue.Repository,
				Number:     c.Issue.Number,
				Title:      c.Issue.Title,
				Reason:     reason,
			})
		case lc.Done == nil:
			for s := *lc.Start; s <= current; s++ {
				v.contribute(s, Incomplete, typ, c.Issue)
			}
		default:
			for s := *lc.Start; s < *lc.Done; s++ {
				v.contribute(s, Incomplete, typ, c.Issue)
			}
			v.contribute(*lc.Done, Complete, typ, c.Issue)
		}
	}

	slices.SortFunc(v.Excluded, func(a, b IssueRef) int {
		return cmp.Or(cmp.Compare(a.Repository, b.Repository), cmp.Compare(a.Number, b.Number))
	})
	return v
}

func (v *Velocity) contribute(n int, category, typ string, issue eventlog.Issue) {
	v.entry(n, category).add(issue.Repository, issue.Number)
	v.entry(n, category+":"+typ).add(issue.Repository, issue.Number)
}

func (v *Velocity) entry(n int, category string) *Entry {
	cats, ok := v.Sprints[n]
	if !ok {
		cats = make(map[string]*Entry)
		v.Sprints[n] = cats
	}
	e, ok := cats[category]
	if !ok {
		e = &Entry{}
		cats[category] = e
	}
	return e
}

// SprintNumbers returns the sprints with any contribution, ascending.
func (v Velocity) SprintNumbers() []int {
	return slices.Sorted(maps.Keys(v.Sprints))
}

// Categories returns the category keys of sprint n in lexical order.
func (v Velocity) Categories(n int) []string {
	return slices.Sorted(maps.Keys(v.Sprints[n]))
}

// Entry returns the entry for a key, or nil when nothing contributed.
func (v Velocity) Entry(n int, category string) *Entry {
	return v.Sprints[n][category]
}

// Count returns the contribution count for a key, zero when absent.
func (v Velocity) Count(n int, category string) int {
	if e := v.Entry(n, category); e != nil {
		return e.Count
	}
	return 0
}
