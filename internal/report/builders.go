package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/reposync"
	"sprintstat/internal/sprint"
	"sprintstat/internal/stats"
	"sprintstat/internal/visuals"
)

const timeLayout = "2006-01-02 15:04 MST"

// VelocityReport combines the breakdown, the excluded list and a chart.
func VelocityReport(v stats.Velocity) *Report {
	r := &Report{
		Title:    fmt.Sprintf("Velocity (current sprint %d)", v.Current),
		Sections: []Renderable{VelocityTable(v), ExcludedTable(v)},
		Chart:    visuals.VelocityChart(v),
		Data:     v,
	}
	if trend := v.Trend(); trend.Sprints > 0 {
		r.Sections = append(r.Sections, TrendNote(trend))
	}
	return r
}

// TrendNote summarizes completed issues over finished sprints.
func TrendNote(t stats.Trend) *Note {
	return &Note{Title: "Trend", Lines: []string{
		fmt.Sprintf("Completed per sprint over the last %d finished sprints: median %.1f, mean %.1f", t.Sprints, t.Median, t.Mean),
		fmt.Sprintf("Completed in the previous sprint: %d", t.Last),
	}}
}

// VelocityTable lists every (sprint, category) entry, sprints ascending and
// categories in lexical order.
func VelocityTable(v stats.Velocity) *Table {
	t := &Table{
		Title:   "Breakdown",
		Headers: []string{"Sprint", "Category", "Count", "Issues"},
		Data:    v.Sprints,
	}
	for _, n := range v.SprintNumbers() {
		sprintCell := strconv.Itoa(n)
		if n == v.Current {
			sprintCell += " *"
		}
		for _, cat := range v.Categories(n) {
			e := v.Entry(n, cat)
			t.Rows = append(t.Rows, []string{sprintCell, cat, strconv.Itoa(e.Count), strings.Join(e.Refs(), " ")})
		}
	}
	return t
}

// ExcludedTable lists the issues left out of the breakdown.
func ExcludedTable(v stats.Velocity) *Table {
	t := &Table{
		Title:   "Excluded",
		Headers: []string{"Issue", "Title", "Reason"},
		Data:    v.Excluded,
	}
	if v.Excluded == nil {
		t.Data = []stats.IssueRef{}
	}
	for _, ref := range v.Excluded {
		t.Rows = append(t.Rows, []string{fmt.Sprintf("%s#%d", ref.Repository, ref.Number), ref.Title, ref.Reason})
	}
	return t
}

// IssueGroupTable lists a group with sizes and decorated titles. Pull
// requests count towards the total but are not listed.
func IssueGroupTable(g stats.Group, vocab eventlog.Vocabulary, withIssue bool) *Table {
	sum := stats.Summarize(g, vocab)
	t := &Table{
		Title:   g.Title,
		Headers: []string{"Size", "Title"},
		Footer:  []string{strconv.Itoa(sum.TotalSize), fmt.Sprintf("total size, %d issues", sum.Count)},
		Data:    groupData{Group: g, Summary: sum},
	}
	for _, issue := range g.Issues {
		if issue.IsPullRequest {
			continue
		}
		size := "-"
		if n := stats.SizeOf(issue, vocab); n > 0 {
			size = strconv.Itoa(n)
		}
		title := stats.DecoratedTitle(issue, vocab)
		if withIssue {
			title += fmt.Sprintf(" (%s/%d)", stats.ShortRepoName(issue.Repository), issue.Number)
		}
		t.Rows = append(t.Rows, []string{size, title})
	}
	return t
}

type groupData struct {
	stats.Group `yaml:",inline"`
	Summary     stats.Summary `json:"summary" yaml:"summary"`
}

// ScrumReport lays out the closed, in-progress and backlog groups.
func ScrumReport(r stats.ScrumReport, vocab eventlog.Vocabulary, withIssue bool) *Report {
	out := &Report{Title: fmt.Sprintf("Scrum report (current sprint %d)", r.Current), Data: r}
	for _, g := range r.Closed {
		out.Sections = append(out.Sections, IssueGroupTable(g, vocab, withIssue))
	}
	for _, g := range r.InWork {
		g.Title = "Incomplete in " + g.Title
		out.Sections = append(out.Sections, IssueGroupTable(g, vocab, withIssue))
	}
	if r.Backlog != nil {
		out.Sections = append(out.Sections, IssueGroupTable(*r.Backlog, vocab, withIssue))
	}
	return out
}

// WindowTable lists sprint windows, marking the current sprint.
func WindowTable(windows []sprint.Window, current int) *Table {
	t := &Table{
		Headers: []string{"Sprint", "Start", "Stop", "Current"},
		Data:    windows,
	}
	for _, w := range windows {
		mark := ""
		if w.Number == current {
			mark = "yes"
		}
		t.Rows = append(t.Rows, []string{strconv.Itoa(w.Number), w.Start.Format(timeLayout), w.Stop.Format(timeLayout), mark})
	}
	return t
}

// noiseEvents are left out of the history dump.
var noiseEvents = []string{"renamed", "subscribed", "assigned", "unassigned", "unlabeled", "milestoned", "mentioned"}

// HistoryTable lists an issue's events with the sprint each fell in.
func HistoryTable(issue eventlog.Issue, cal *sprint.Calendar) *Table {
	t := &Table{
		Title:   "Events",
		Headers: []string{"#", "Time", "Sprint", "Event", "Label", "Actor"},
		Data:    issue.Events,
	}
	for i, e := range issue.Events {
		if slices.Contains(noiseEvents, e.Raw) {
			continue
		}
		raw := e.Raw
		if raw == "" {
			raw = string(e.Kind)
		}
		when, n := "-", "-"
		if !e.At.IsZero() {
			when = e.At.In(cal.Location()).Format(timeLayout)
			n = strconv.Itoa(cal.SprintContaining(e.At))
		}
		t.Rows = append(t.Rows, []string{strconv.Itoa(i), when, n, raw, e.Label, e.Actor})
	}
	return t
}

// HistoryReport shows one issue, its events and the derived lifecycle.
func HistoryReport(c stats.Classified, cal *sprint.Calendar) *Report {
	issue := c.Issue
	details := &Note{Title: issue.ID(), Lines: []string{
		"Title:     " + issue.Title,
		"State:     " + issue.State,
		"Labels:    " + strings.Join(issue.Labels, ", "),
		"Milestone: " + issue.Milestone,
		"Assignee:  " + issue.Assignee,
		"Created:   " + formatTime(issue.CreatedAt, cal),
	}}
	if issue.ClosedAt != nil {
		details.Lines = append(details.Lines, "Closed:    "+formatTime(*issue.ClosedAt, cal))
	}
	if issue.URL != "" {
		details.Lines = append(details.Lines, "URL:       "+issue.URL)
	}

	return &Report{
		Title: "Issue history",
		Sections: []Renderable{
			details,
			HistoryTable(issue, cal),
			&Note{Title: "Lifecycle", Lines: []string{c.Lifecycle.String()}},
		},
		Data: c,
	}
}

func formatTime(t time.Time, cal *sprint.Calendar) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (sprint %d)", t.In(cal.Location()).Format(timeLayout), cal.SprintContaining(t))
}

// SummaryReport shows a sprint's milestone and assignee tallies.
func SummaryReport(s stats.SprintSummary) *Report {
	w := s.Window
	out := &Report{
		Title: fmt.Sprintf("Sprint %d: %s to %s", w.Number, w.Start.Format(time.DateOnly), w.Stop.Format(time.DateOnly)),
		Sections: []Renderable{
			tallyTable("Milestone", s.Milestones),
		},
		Chart: visuals.SummaryChart(s),
		Data:  s,
	}
	if len(s.Assignees) > 0 {
		out.Sections = append(out.Sections, tallyTable("Assignee", s.Assignees))
	} else {
		out.Sections = append(out.Sections, &Note{Lines: []string{"No issues assigned for the sprint."}})
	}
	out.Sections = append(out.Sections, &Note{Lines: []string{fmt.Sprintf("Total %d issues resolved for sprint %d", s.Resolved, w.Number)}})
	if len(s.Uncategorized) > 0 {
		out.Sections = append(out.Sections, &Note{Title: "Uncategorized", Lines: s.Uncategorized})
	}
	return out
}

func tallyTable(name string, tallies []stats.Tally) *Table {
	t := &Table{
		Headers: []string{name, "Open", "In Progress", "Resolved"},
		Data:    tallies,
	}
	for _, tally := range tallies {
		t.Rows = append(t.Rows, []string{tally.Name, strconv.Itoa(tally.Open), strconv.Itoa(tally.InProgress), strconv.Itoa(tally.Resolved)})
	}
	return t
}

// PullsTable lists pull requests with their labels.
func PullsTable(title string, pulls []eventlog.Issue) *Table {
	t := &Table{
		Title:   title,
		Headers: []string{"Pull Request", "Title", "Author", "Labels"},
		Data:    pulls,
	}
	if pulls == nil {
		t.Data = []eventlog.Issue{}
	}
	for _, pr := range pulls {
		ref := pr.URL
		if ref == "" {
			ref = pr.ID()
		}
		t.Rows = append(t.Rows, []string{ref, pr.Title, pr.Author, strings.Join(pr.Labels, ", ")})
	}
	return t
}

// SyncTable lists planned or applied sync actions.
func SyncTable(actions []reposync.Action, dryRun bool) *Table {
	title := "Sync"
	if dryRun {
		title = "Sync (dry run)"
	}
	t := &Table{
		Title:   title,
		Headers: []string{"Repository", "Kind", "Op", "Name", "Detail"},
		Data:    actions,
	}
	if actions == nil {
		t.Data = []reposync.Action{}
	}
	for _, a := range actions {
		t.Rows = append(t.Rows, []string{a.Repo, string(a.Kind), string(a.Op), a.Name, a.Detail})
	}
	return t
}
