package github

import (
	"slices"
	"time"

	gh "github.com/google/go-github/v57/github"

	"sprintstat/internal/eventlog"
)

// MapIssue projects an API issue onto the record the core consumes.
func MapIssue(repo string, in *gh.Issue) eventlog.Issue {
	out := eventlog.Issue{
		Repository:    repo,
		Number:        in.GetNumber(),
		Title:         in.GetTitle(),
		State:         in.GetState(),
		Labels:        labelNames(in.Labels),
		IsPullRequest: in.IsPullRequest(),
		Milestone:     in.GetMilestone().GetTitle(),
		Assignee:      in.GetAssignee().GetLogin(),
		Author:        in.GetUser().GetLogin(),
		URL:           in.GetHTMLURL(),
		CreatedAt:     in.GetCreatedAt().Time,
		UpdatedAt:     in.GetUpdatedAt().Time,
		ClosedAt:      timePtr(in.ClosedAt),
	}
	return out
}

// MapPull projects an API pull request onto the same record.
func MapPull(repo string, in *gh.PullRequest) eventlog.Issue {
	return eventlog.Issue{
		Repository:    repo,
		Number:        in.GetNumber(),
		Title:         in.GetTitle(),
		State:         in.GetState(),
		Labels:        labelNames(in.Labels),
		IsPullRequest: true,
		Milestone:     in.GetMilestone().GetTitle(),
		Assignee:      in.GetAssignee().GetLogin(),
		Author:        in.GetUser().GetLogin(),
		URL:           in.GetHTMLURL(),
		CreatedAt:     in.GetCreatedAt().Time,
		UpdatedAt:     in.GetUpdatedAt().Time,
		ClosedAt:      timePtr(in.ClosedAt),
	}
}

// MapEvent projects an API issue event. Event kinds the classifier does
// not act on keep their raw name for the history dump.
func MapEvent(in *gh.IssueEvent) eventlog.Event {
	raw := in.GetEvent()
	return eventlog.Event{
		Kind:  eventlog.KindOf(raw),
		Raw:   raw,
		At:    in.GetCreatedAt().Time,
		Label: in.GetLabel().GetName(),
		Actor: in.GetActor().GetLogin(),
	}
}

func labelNames(labels []*gh.Label) []string {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if name := l.GetName(); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func timePtr(ts *gh.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}
