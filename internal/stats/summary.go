package stats

import (
	"maps"
	"slices"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/sprint"
)

// Buckets of the sprint summary that cut across milestones.
const (
	NoMilestone = "Issues without milestones"
	BugsBucket  = "Bugs"
	Community   = "Community contribution"
)

// Tally counts issues by state within one sprint.
type Tally struct {
	Name       string `json:"name" yaml:"name"`
	Open       int    `json:"open" yaml:"open"`
	InProgress int    `json:"inProgress" yaml:"inProgress"`
	Resolved   int    `json:"resolved" yaml:"resolved"`
}

// SprintSummary tallies one sprint's issues by milestone and by assignee.
type SprintSummary struct {
	Window        sprint.Window `json:"window" yaml:"window"`
	Milestones    []Tally       `json:"milestones" yaml:"milestones"`
	Assignees     []Tally       `json:"assignees" yaml:"assignees"`
	Resolved      int           `json:"resolved" yaml:"resolved"`
	Uncategorized []string      `json:"uncategorized,omitempty" yaml:"uncategorized,omitempty"`
}

type tallyState int

const (
	stateNone tallyState = iota
	stateOpen
	stateInProgress
	stateResolved
)

func (t *Tally) add(s tallyState) {
	switch s {
	case stateOpen:
		t.Open++
	case stateInProgress:
		t.InProgress++
	case stateResolved:
		t.Resolved++
	}
}

// stateIn places an issue in the sprint: open issues updated during the
// sprint by their labels, closed issues by their close time.
func stateIn(issue eventlog.Issue, w sprint.Window, vocab eventlog.Vocabulary) tallyState {
	if issue.IsOpen() {
		if !w.Contains(issue.UpdatedAt) {
			return stateNone
		}
		switch {
		case issue.HasLabel(sprint.Label(vocab.SprintPrefix, w.Number)):
			return stateOpen
		case issue.HasLabel(vocab.InProgress):
			return stateInProgress
		case issue.HasLabel(vocab.ReadyForVerification), issue.HasLabel(vocab.ReadyToShip):
			return stateResolved
		}
		return stateNone
	}
	if issue.ClosedAt != nil && w.Contains(*issue.ClosedAt) {
		return stateResolved
	}
	return stateNone
}

// SummarizeSprint tallies the issues active in window w. Issues that fit
// no state are listed as uncategorized. Community work is anything carrying
// the community label plus the pull requests whose IDs are in outsiders.
func SummarizeSprint(issues []eventlog.Issue, w sprint.Window, vocab eventlog.Vocabulary, outsiders map[string]bool) SprintSummary {
	milestones := map[string]*Tally{
		NoMilestone: {Name: NoMilestone},
		BugsBucket:  {Name: BugsBucket},
		Community:   {Name: Community},
	}
	assignees := make(map[string]*Tally)

	tally := func(m map[string]*Tally, name string, s tallyState) {
		t, ok := m[name]
		if !ok {
			t = &Tally{Name: name}
			m[name] = t
		}
		t.add(s)
	}

	sum := SprintSummary{Window: w}
	for _, issue := range issues {
		s := stateIn(issue, w, vocab)
		if s == stateNone {
			sum.Uncategorized = append(sum.Uncategorized, issue.ID())
			continue
		}

		milestone := issue.Milestone
		if milestone == "" {
			milestone = NoMilestone
		}
		tally(milestones, milestone, s)
		if issue.HasLabel(vocab.Bug) {
			tally(milestones, BugsBucket, s)
		}
		if issue.HasLabel(vocab.Community) || (issue.IsPullRequest && outsiders[issue.ID()]) {
			tally(milestones, Community, s)
		}
		if issue.Assignee != "" {
			tally(assignees, issue.Assignee, s)
		}
		if s == stateResolved {
			sum.Resolved++
		}
	}

	sum.Milestones = sortedTallies(milestones)
	sum.Assignees = sortedTallies(assignees)
	return sum
}

func sortedTallies(m map[string]*Tally) []Tally {
	out := make([]Tally, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		out = append(out, *m[name])
	}
	return out
}
