package stats

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/sprint"
)

// Group is a titled list of issues, e.g. everything closed in one sprint.
type Group struct {
	Title  string           `json:"title" yaml:"title"`
	Sprint int              `json:"sprint,omitempty" yaml:"sprint,omitempty"`
	Issues []eventlog.Issue `json:"issues" yaml:"issues"`
}

// Summary totals a group: the summed size of its sized non-PR issues and
// the number of issues.
type Summary struct {
	TotalSize int `json:"totalSize" yaml:"totalSize"`
	Count     int `json:"count" yaml:"count"`
}

// SizeOf returns the story size from the issue's size label ("#fib-3").
// When several are present the last one wins; zero means unsized.
func SizeOf(issue eventlog.Issue, vocab eventlog.Vocabulary) int {
	if vocab.SizePrefix == "" {
		return 0
	}
	size := 0
	for _, l := range issue.Labels {
		rest, ok := strings.CutPrefix(l, vocab.SizePrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		size = n
	}
	return size
}

// Summarize totals a group.
func Summarize(g Group, vocab eventlog.Vocabulary) Summary {
	s := Summary{Count: len(g.Issues)}
	for _, issue := range g.Issues {
		if issue.IsPullRequest {
			continue
		}
		s.TotalSize += SizeOf(issue, vocab)
	}
	return s
}

// ClosedBySprint groups issues by the sprint they were closed in, keeping
// sprints from "from" onwards. An empty milestone keeps every milestone.
func ClosedBySprint(issues []eventlog.Issue, cal *sprint.Calendar, from int, milestone string) []Group {
	bySprint := make(map[int][]eventlog.Issue)
	for _, issue := range issues {
		n, ok := eventlog.ClosedAtSprint(issue, cal)
		if !ok || n < from {
			continue
		}
		if milestone != "" && issue.Milestone != milestone {
			continue
		}
		bySprint[n] = append(bySprint[n], issue)
	}

	groups := make([]Group, 0, len(bySprint))
	for n, members := range bySprint {
		groups = append(groups, Group{Title: fmt.Sprintf("Sprint %d", n), Sprint: n, Issues: sortByTitle(members)})
	}
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Sprint, b.Sprint) })
	return groups
}

// InSprint groups open issues by the labels that place them in the current
// sprint, in reporting order. An issue carrying several of them appears in
// each group.
func InSprint(issues []eventlog.Issue, vocab eventlog.Vocabulary, current int, milestone string) []Group {
	labels := vocab.InSprintLabels(current)
	groups := make([]Group, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		var members []eventlog.Issue
		for _, issue := range issues {
			if !issue.IsOpen() || !issue.HasLabel(label) {
				continue
			}
			if milestone != "" && issue.Milestone != milestone {
				continue
			}
			members = append(members, issue)
		}
		groups = append(groups, Group{Title: label, Sprint: current, Issues: sortByTitle(members)})
	}
	return groups
}

// Backlog lists the open issues of a milestone that are not in the current
// sprint. Without a milestone the backlog is too large to be useful and the
// group is empty.
func Backlog(issues []eventlog.Issue, vocab eventlog.Vocabulary, current int, milestone string) Group {
	g := Group{Title: "Backlog"}
	if milestone == "" {
		return g
	}
	inSprint := vocab.InSprintLabels(current)
	var members []eventlog.Issue
	for _, issue := range issues {
		if !issue.IsOpen() || issue.Milestone != milestone {
			continue
		}
		if slices.ContainsFunc(inSprint, issue.HasLabel) {
			continue
		}
		members = append(members, issue)
	}
	g.Issues = sortByTitle(members)
	return g
}

// DecoratedTitle prefixes the title with the milestone and any labels that
// are not plain workflow state, e.g. "(bug, blocked) v3: Fix relations".
func DecoratedTitle(issue eventlog.Issue, vocab eventlog.Vocabulary) string {
	title := milestoneTitle(issue)

	var extra []string
	for _, l := range issue.Labels {
		if vocab.IsWorkflowLabel(l) || strings.HasPrefix(l, "sprint") {
			continue
		}
		if strings.Contains(l, "waiting") {
			extra = append(extra, "blocked")
			continue
		}
		extra = append(extra, strings.TrimPrefix(l, "#"))
	}
	if len(extra) == 0 {
		return title
	}
	return "(" + strings.Join(extra, ", ") + ") " + title
}

func milestoneTitle(issue eventlog.Issue) string {
	if issue.Milestone == "" {
		return issue.Title
	}
	return strings.TrimPrefix(issue.Milestone, "#") + ": " + issue.Title
}

func sortByTitle(issues []eventlog.Issue) []eventlog.Issue {
	slices.SortStableFunc(issues, func(a, b eventlog.Issue) int {
		return cmp.Or(
			cmp.Compare(milestoneTitle(a), milestoneTitle(b)),
			cmp.Compare(a.Repository, b.Repository),
			cmp.Compare(a.Number, b.Number),
		)
	})
	return issues
}

// ShortRepoName trims the organization and common prefixes from a
// repository name for compact listings.
func ShortRepoName(repo string) string {
	if _, name, ok := strings.Cut(repo, "/"); ok {
		repo = name
	}
	for _, prefix := range []string{"scrum-", "strong-"} {
		if trimmed, ok := strings.CutPrefix(repo, prefix); ok {
			return trimmed
		}
	}
	return repo
}

// UnassignedPulls keeps the open pull requests nobody is assigned to,
// ordered by repository and number.
func UnassignedPulls(issues []eventlog.Issue) []eventlog.Issue {
	var out []eventlog.Issue
	for _, issue := range issues {
		if issue.IsPullRequest && issue.IsOpen() && issue.Assignee == "" {
			out = append(out, issue)
		}
	}
	slices.SortFunc(out, func(a, b eventlog.Issue) int {
		return cmp.Or(cmp.Compare(a.Repository, b.Repository), cmp.Compare(a.Number, b.Number))
	})
	return out
}
