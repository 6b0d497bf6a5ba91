package github

import (
	"context"
	"time"

	gh "github.com/google/go-github/v57/github"
)

// Label is a repository label.
type Label struct {
	Name  string
	Color string
}

// Milestone is a repository milestone.
type Milestone struct {
	Number int
	Title  string
	State  string
	DueOn  *time.Time
}

// Labels lists every label defined in a repository.
func (c *Client) Labels(ctx context.Context, repo string) ([]Label, error) {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}

	var labels []Label
	opts := &gh.ListOptions{PerPage: perPage, Page: 1}
	for {
		fe := SourceFetchError{Repo: repo, Op: "list labels"}
		page, resp, err := retry(ctx, c.backoff, fe, func() ([]*gh.Label, *gh.Response, error) {
			return c.api.Issues.ListLabels(ctx, owner, name, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, l := range page {
			labels = append(labels, Label{Name: l.GetName(), Color: l.GetColor()})
		}
		if resp.NextPage == 0 {
			return labels, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateLabel adds a label to a repository.
func (c *Client) CreateLabel(ctx context.Context, repo string, l Label) error {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return err
	}
	fe := SourceFetchError{Repo: repo, Op: "create label " + l.Name}
	_, _, err = retry(ctx, c.backoff, fe, func() (*gh.Label, *gh.Response, error) {
		return c.api.Issues.CreateLabel(ctx, owner, name, &gh.Label{Name: gh.String(l.Name), Color: gh.String(l.Color)})
	})
	return err
}

// UpdateLabel changes the color of an existing label.
func (c *Client) UpdateLabel(ctx context.Context, repo string, l Label) error {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return err
	}
	fe := SourceFetchError{Repo: repo, Op: "update label " + l.Name}
	_, _, err = retry(ctx, c.backoff, fe, func() (*gh.Label, *gh.Response, error) {
		return c.api.Issues.EditLabel(ctx, owner, name, l.Name, &gh.Label{Name: gh.String(l.Name), Color: gh.String(l.Color)})
	})
	return err
}

// DeleteLabel removes a label from a repository.
func (c *Client) DeleteLabel(ctx context.Context, repo, label string) error {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return err
	}
	fe := SourceFetchError{Repo: repo, Op: "delete label " + label}
	_, _, err = retry(ctx, c.backoff, fe, func() (struct{}, *gh.Response, error) {
		resp, err := c.api.Issues.DeleteLabel(ctx, owner, name, label)
		return struct{}{}, resp, err
	})
	return err
}

// Milestones lists every milestone of a repository, open and closed.
func (c *Client) Milestones(ctx context.Context, repo string) ([]Milestone, error) {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}

	var milestones []Milestone
	opts := &gh.MilestoneListOptions{State: "all", ListOptions: gh.ListOptions{PerPage: perPage, Page: 1}}
	for {
		fe := SourceFetchError{Repo: repo, Op: "list milestones"}
		page, resp, err := retry(ctx, c.backoff, fe, func() ([]*gh.Milestone, *gh.Response, error) {
			return c.api.Issues.ListMilestones(ctx, owner, name, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			milestones = append(milestones, Milestone{
				Number: m.GetNumber(),
				Title:  m.GetTitle(),
				State:  m.GetState(),
				DueOn:  timePtr(m.DueOn),
			})
		}
		if resp.NextPage == 0 {
			return milestones, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateMilestone adds an open milestone.
func (c *Client) CreateMilestone(ctx context.Context, repo string, m Milestone) error {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return err
	}
	fe := SourceFetchError{Repo: repo, Op: "create milestone " + m.Title}
	_, _, err = retry(ctx, c.backoff, fe, func() (*gh.Milestone, *gh.Response, error) {
		return c.api.Issues.CreateMilestone(ctx, owner, name, toAPIMilestone(m))
	})
	return err
}

// UpdateMilestone changes the state or due date of milestone m.Number.
func (c *Client) UpdateMilestone(ctx context.Context, repo string, m Milestone) error {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return err
	}
	fe := SourceFetchError{Repo: repo, Op: "update milestone " + m.Title}
	_, _, err = retry(ctx, c.backoff, fe, func() (*gh.Milestone, *gh.Response, error) {
		return c.api.Issues.EditMilestone(ctx, owner, name, m.Number, toAPIMilestone(m))
	})
	return err
}

// DeleteMilestone removes milestone number from a repository.
func (c *Client) DeleteMilestone(ctx context.Context, repo string, number int) error {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return err
	}
	fe := SourceFetchError{Repo: repo, Number: number, Op: "delete milestone"}
	_, _, err = retry(ctx, c.backoff, fe, func() (struct{}, *gh.Response, error) {
		resp, err := c.api.Issues.DeleteMilestone(ctx, owner, name, number)
		return struct{}{}, resp, err
	})
	return err
}

func toAPIMilestone(m Milestone) *gh.Milestone {
	out := &gh.Milestone{Title: gh.String(m.Title)}
	if m.State != "" {
		out.State = gh.String(m.State)
	}
	if m.DueOn != nil {
		out.DueOn = &gh.Timestamp{Time: *m.DueOn}
	}
	return out
}

// milestoneNumber resolves a milestone title to its per-repository number.
func (c *Client) milestoneNumber(ctx context.Context, repo, title string) (int, bool, error) {
	milestones, err := c.Milestones(ctx, repo)
	if err != nil {
		return 0, false, err
	}
	for _, m := range milestones {
		if m.Title == title {
			return m.Number, true, nil
		}
	}
	return 0, false, nil
}
