package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/sprint"
)

func snapshotSession(t *testing.T, current int, issues []eventlog.Issue) *Session {
	t.Helper()
	cal := testCalendar(t, current)
	provider := eventlog.NewProvider(eventlog.NewSnapshotSource(issues), 4)
	return NewSession(provider, cal, eventlog.DefaultVocabulary())
}

func at(cal *sprint.Calendar, n int) time.Time {
	return cal.WindowOf(n).Start.Add(30 * time.Hour)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"strongloop/loopback", Target{Repo: "strongloop/loopback"}, false},
		{"strongloop/loopback/42", Target{Repo: "strongloop/loopback", Number: 42}, false},
		{"strongloop", Target{}, true},
		{"strongloop/loopback/x", Target{}, true},
		{"strongloop/loopback/0", Target{}, true},
		{"a/b/c/d", Target{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTarget(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTarget(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTarget(%q): Expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

func TestSession_Velocity(t *testing.T) {
	cal := testCalendar(t, 72)
	closed := at(cal, 71)
	issues := []eventlog.Issue{
		{
			Repository: "a/b", Number: 1, State: "closed", ClosedAt: &closed, UpdatedAt: closed,
			Events: []eventlog.Event{
				{Kind: eventlog.Labeled, At: at(cal, 70), Label: "#wip"},
				{Kind: eventlog.Closed, At: closed},
			},
		},
		{
			Repository: "a/b", Number: 2, State: "open", UpdatedAt: at(cal, 71), Labels: []string{"#review"},
			Events: []eventlog.Event{{Kind: eventlog.Labeled, At: at(cal, 71), Label: "#review"}},
		},
		{Repository: "a/c", Number: 3, State: "open", UpdatedAt: at(cal, 71)},
	}
	s := snapshotSession(t, 72, issues)

	v, classified, err := s.Velocity(context.Background(), []Target{{Repo: "a/b"}, {Repo: "a/c"}}, eventlog.Query{})
	if err != nil {
		t.Fatalf("Velocity failed: %v", err)
	}
	if len(classified) != 3 {
		t.Fatalf("Expected 3 classified issues, got %d", len(classified))
	}
	if v.Current != 72 {
		t.Errorf("Expected current 72, got %d", v.Current)
	}
	if v.Count(70, Incomplete) != 1 || v.Count(71, Complete) != 1 {
		t.Errorf("Unexpected issue #1 contributions: %+v", v.Sprints)
	}
	if v.Count(71, Incomplete) != 1 || v.Count(72, Incomplete) != 1 {
		t.Errorf("Unexpected issue #2 contributions: %+v", v.Sprints)
	}
	if len(v.Excluded) != 1 || v.Excluded[0].Repository != "a/c" {
		t.Errorf("Expected a/c#3 excluded, got %+v", v.Excluded)
	}
}

func TestSession_VelocitySingleIssue(t *testing.T) {
	cal := testCalendar(t, 72)
	issues := []eventlog.Issue{
		{Repository: "a/b", Number: 1, State: "open", Labels: []string{"#wip"}, Events: []eventlog.Event{{Kind: eventlog.Labeled, At: at(cal, 72), Label: "#wip"}}},
		{Repository: "a/b", Number: 2, State: "open", Labels: []string{"#wip"}, Events: []eventlog.Event{{Kind: eventlog.Labeled, At: at(cal, 72), Label: "#wip"}}},
	}
	s := snapshotSession(t, 72, issues)

	v, _, err := s.Velocity(context.Background(), []Target{{Repo: "a/b", Number: 2}}, eventlog.Query{})
	if err != nil {
		t.Fatalf("Velocity failed: %v", err)
	}
	if got := v.Entry(72, Incomplete).Refs(); len(got) != 1 || got[0] != "a/b#2" {
		t.Errorf("Expected only a/b#2, got %v", got)
	}
}

func TestSession_VelocityMalformed(t *testing.T) {
	issues := []eventlog.Issue{
		{Repository: "a/b", Number: 1, State: "open", Events: []eventlog.Event{{Kind: eventlog.Closed}}},
	}
	s := snapshotSession(t, 72, issues)

	_, _, err := s.Velocity(context.Background(), []Target{{Repo: "a/b"}}, eventlog.Query{})
	var merr *eventlog.MalformedEventError
	if !errors.As(err, &merr) {
		t.Fatalf("Expected MalformedEventError, got %v", err)
	}
}

func TestSession_History(t *testing.T) {
	cal := testCalendar(t, 72)
	issues := []eventlog.Issue{
		{Repository: "a/b", Number: 1, State: "open", Labels: []string{"#sprint73"}, Events: []eventlog.Event{{Kind: eventlog.Labeled, At: at(cal, 72), Label: "#sprint73"}}},
	}
	s := snapshotSession(t, 72, issues)

	c, err := s.History(context.Background(), "a/b", 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if c.Lifecycle.Start == nil || *c.Lifecycle.Start != 73 {
		t.Errorf("Expected start 73, got %s", c.Lifecycle)
	}
	if len(c.Issue.Events) != 1 {
		t.Errorf("Expected events to be attached, got %d", len(c.Issue.Events))
	}
}

func TestSession_Scrum(t *testing.T) {
	cal := testCalendar(t, 75)
	c73, c74, c60 := at(cal, 73), at(cal, 74), at(cal, 60)
	issues := []eventlog.Issue{
		{Repository: "a/b", Number: 1, State: "closed", ClosedAt: &c73, UpdatedAt: c73, Labels: []string{"#fib-3"}},
		{Repository: "a/b", Number: 2, State: "closed", ClosedAt: &c74, UpdatedAt: c74, Milestone: "v3"},
		{Repository: "a/b", Number: 3, State: "closed", ClosedAt: &c60, UpdatedAt: c60},
		{Repository: "a/b", Number: 4, State: "open", Labels: []string{"#wip"}, Milestone: "v3"},
		{Repository: "a/b", Number: 5, State: "open", Milestone: "v3"},
	}
	s := snapshotSession(t, 75, issues)

	report, err := s.Scrum(context.Background(), []Target{{Repo: "a/b"}}, ScrumOptions{From: 73})
	if err != nil {
		t.Fatalf("Scrum failed: %v", err)
	}
	if len(report.Closed) != 2 || report.Closed[0].Sprint != 73 {
		t.Errorf("Unexpected closed groups: %+v", report.Closed)
	}
	if report.Backlog != nil {
		t.Errorf("Expected no backlog without milestone")
	}
	if len(report.InWork) != 4 || len(report.InWork[2].Issues) != 1 {
		t.Errorf("Unexpected in-work groups: %+v", report.InWork)
	}

	report, err = s.Scrum(context.Background(), []Target{{Repo: "a/b"}}, ScrumOptions{From: 73, Milestone: "v3"})
	if err != nil {
		t.Fatalf("Scrum failed: %v", err)
	}
	if report.Backlog == nil || len(report.Backlog.Issues) != 1 || report.Backlog.Issues[0].Number != 5 {
		t.Errorf("Unexpected backlog: %+v", report.Backlog)
	}
	if len(report.Closed) != 1 || report.Closed[0].Sprint != 74 {
		t.Errorf("Expected milestone to filter closed groups, got %+v", report.Closed)
	}

	report, err = s.Scrum(context.Background(), []Target{{Repo: "a/b"}}, ScrumOptions{OnlyClosed: true})
	if err != nil {
		t.Fatalf("Scrum failed: %v", err)
	}
	if len(report.Closed) != 0 || report.InWork != nil {
		t.Errorf("Expected nothing closed since the current sprint, got %+v", report)
	}
}

type memberSource struct {
	*eventlog.SnapshotSource
	members map[string]bool
}

func (m memberSource) IsCollaborator(ctx context.Context, repo, login string) (bool, error) {
	return m.members[login], nil
}

func TestSession_SummaryCountsOutsidePullRequests(t *testing.T) {
	cal := testCalendar(t, 75)
	during := at(cal, 75)
	issues := []eventlog.Issue{
		{Repository: "a/b", Number: 1, State: "closed", IsPullRequest: true, Author: "visitor", UpdatedAt: during, ClosedAt: &during},
		{Repository: "a/b", Number: 2, State: "closed", IsPullRequest: true, Author: "sam", UpdatedAt: during, ClosedAt: &during},
	}
	src := memberSource{SnapshotSource: eventlog.NewSnapshotSource(issues), members: map[string]bool{"sam": true}}
	s := NewSession(eventlog.NewProvider(src, 2), cal, eventlog.DefaultVocabulary())

	sum, err := s.Summary(context.Background(), []Target{{Repo: "a/b"}}, 75)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	for _, m := range sum.Milestones {
		if m.Name == Community && m.Resolved != 1 {
			t.Errorf("Expected 1 resolved community contribution, got %+v", m)
		}
	}
	if sum.Resolved != 2 {
		t.Errorf("Expected 2 resolved, got %d", sum.Resolved)
	}
}
