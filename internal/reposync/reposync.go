// Package reposync keeps the labels and milestones of a set of repositories
// in line with a shared definition.
package reposync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"sprintstat/internal/github"
)

// Kind is what an action changes.
type Kind string

const (
	KindLabel     Kind = "label"
	KindMilestone Kind = "milestone"
)

// Op is what an action does.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpClose  Op = "close"
	OpSkip   Op = "skip"
)

// dueHour is the UTC hour milestones fall due: midnight Pacific.
const dueHour = "T07:00:00Z"

// MilestoneSpec is the desired state of one milestone. Exactly one of Due,
// Close or Delete is set.
type MilestoneSpec struct {
	// Due is the due date as YYYY-MM-DD.
	Due    string
	Close  bool
	Delete bool
}

// Definitions is the desired label and milestone set. A label with an
// empty color is deleted.
type Definitions struct {
	Labels     map[string]string
	Milestones map[string]MilestoneSpec
}

// ParseMilestones converts the project file form (a date string, false to
// close, null to delete) into specs.
func ParseMilestones(raw map[string]any) (map[string]MilestoneSpec, error) {
	out := make(map[string]MilestoneSpec, len(raw))
	for title, v := range raw {
		switch def := v.(type) {
		case nil:
			out[title] = MilestoneSpec{Delete: true}
		case bool:
			if def {
				return nil, fmt.Errorf("milestone %q: true is not a valid definition, use a due date", title)
			}
			out[title] = MilestoneSpec{Close: true}
		case string:
			if _, err := time.Parse(time.DateOnly, def); err != nil {
				return nil, fmt.Errorf("milestone %q: invalid due date %q: %w", title, def, err)
			}
			out[title] = MilestoneSpec{Due: def}
		default:
			return nil, fmt.Errorf("milestone %q: unsupported definition %v", title, v)
		}
	}
	return out, nil
}

// Client is the subset of the GitHub client sync needs.
type Client interface {
	Labels(ctx context.Context, repo string) ([]github.Label, error)
	CreateLabel(ctx context.Context, repo string, l github.Label) error
	UpdateLabel(ctx context.Context, repo string, l github.Label) error
	DeleteLabel(ctx context.Context, repo, label string) error
	Milestones(ctx context.Context, repo string) ([]github.Milestone, error)
	CreateMilestone(ctx context.Context, repo string, m github.Milestone) error
	UpdateMilestone(ctx context.Context, repo string, m github.Milestone) error
	DeleteMilestone(ctx context.Context, repo string, number int) error
}

// Action is one planned change to a repository.
type Action struct {
	Repo   string `json:"repo" yaml:"repo"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Op     Op     `json:"op" yaml:"op"`
	Name   string `json:"name" yaml:"name"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`

	label     github.Label
	milestone github.Milestone
}

// Plan compares the repository against defs and returns the actions that
// bring it in line, sorted by kind and name.
func Plan(ctx context.Context, c Client, repo string, defs Definitions) ([]Action, error) {
	var actions []Action

	if len(defs.Labels) > 0 {
		existing, err := c.Labels(ctx, repo)
		if err != nil {
			return nil, err
		}
		actions = append(actions, planLabels(repo, existing, defs.Labels)...)
	}
	if len(defs.Milestones) > 0 {
		existing, err := c.Milestones(ctx, repo)
		if err != nil {
			return nil, err
		}
		actions = append(actions, planMilestones(repo, existing, defs.Milestones)...)
	}

	slices.SortFunc(actions, func(a, b Action) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Name, b.Name))
	})
	return actions, nil
}

func planLabels(repo string, existing []github.Label, defs map[string]string) []Action {
	current := make(map[string]github.Label, len(existing))
	for _, l := range existing {
		current[l.Name] = l
	}

	var actions []Action
	for name, color := range defs {
		color = strings.TrimPrefix(color, "#")
		have, exists := current[name]
		a := Action{Repo: repo, Kind: KindLabel, Name: name, label: github.Label{Name: name, Color: color}}
		switch {
		case color == "" && !exists:
			continue
		case color == "":
			a.Op = OpDelete
		case !exists:
			a.Op, a.Detail = OpCreate, color
		case strings.EqualFold(have.Color, color):
			a.Op, a.Detail = OpSkip, "up to date"
		default:
			a.Op, a.Detail = OpUpdate, have.Color+" -> "+color
		}
		actions = append(actions, a)
	}
	return actions
}

func planMilestones(repo string, existing []github.Milestone, defs map[string]MilestoneSpec) []Action {
	current := make(map[string]github.Milestone, len(existing))
	for _, m := range existing {
		current[m.Title] = m
	}

	var actions []Action
	for title, spec := range defs {
		have, exists := current[title]
		a := Action{Repo: repo, Kind: KindMilestone, Name: title, milestone: have}
		switch {
		case spec.Delete:
			if !exists {
				continue
			}
			a.Op = OpDelete
		case spec.Close:
			if !exists {
				a.Op, a.Detail = OpSkip, "not creating a closed milestone"
				break
			}
			if have.State == "closed" {
				a.Op, a.Detail = OpSkip, "already closed"
				break
			}
			a.Op = OpClose
			a.milestone.State = "closed"
		default:
			due, _ := time.Parse(time.RFC3339, spec.Due+dueHour)
			switch {
			case !exists:
				a.Op = OpCreate
				a.milestone = github.Milestone{Title: title}
			case have.DueOn != nil && have.DueOn.UTC().Format(time.DateOnly) == spec.Due:
				a.Op, a.Detail = OpSkip, "up to date"
			default:
				a.Op = OpUpdate
			}
			if a.Op != OpSkip {
				a.milestone.DueOn = &due
				a.Detail = "due " + spec.Due
			}
		}
		actions = append(actions, a)
	}
	return actions
}

// Apply performs the actions in order, skipping OpSkip.
func Apply(ctx context.Context, c Client, actions []Action) error {
	for _, a := range actions {
		if err := apply(ctx, c, a); err != nil {
			return fmt.Errorf("%s %s %q in %s: %w", a.Op, a.Kind, a.Name, a.Repo, err)
		}
		if a.Op != OpSkip {
			log.Info().Str("repo", a.Repo).Str("kind", string(a.Kind)).Str("op", string(a.Op)).Str("name", a.Name).Msg("Applied")
		}
	}
	return nil
}

func apply(ctx context.Context, c Client, a Action) error {
	switch a.Kind {
	case KindLabel:
		switch a.Op {
		case OpCreate:
			return c.CreateLabel(ctx, a.Repo, a.label)
		case OpUpdate:
			return c.UpdateLabel(ctx, a.Repo, a.label)
		case OpDelete:
			return c.DeleteLabel(ctx, a.Repo, a.Name)
		}
	case KindMilestone:
		switch a.Op {
		case OpCreate:
			return c.CreateMilestone(ctx, a.Repo, a.milestone)
		case OpUpdate, OpClose:
			return c.UpdateMilestone(ctx, a.Repo, a.milestone)
		case OpDelete:
			return c.DeleteMilestone(ctx, a.Repo, a.milestone.Number)
		}
	}
	return nil
}

// Run plans, and unless dryRun applies, the definitions across repos. A
// failing repository does not stop the others; every failure is returned
// joined together with the actions of the repositories that succeeded.
func Run(ctx context.Context, c Client, repos []string, defs Definitions, dryRun bool, concurrency int) ([]Action, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	p := pool.NewWithResults[[]Action]().WithMaxGoroutines(concurrency).WithContext(ctx)
	for _, repo := range repos {
		p.Go(func(ctx context.Context) ([]Action, error) {
			if _, _, err := github.ParseRepo(repo); err != nil {
				return nil, err
			}
			log.Info().Str("repo", repo).Bool("dry_run", dryRun).Msg("Syncing repository")
			actions, err := Plan(ctx, c, repo, defs)
			if err != nil {
				return nil, err
			}
			if dryRun {
				return actions, nil
			}
			if err := Apply(ctx, c, actions); err != nil {
				return nil, err
			}
			return actions, nil
		})
	}

	results, err := p.Wait()
	var all []Action
	for _, actions := range results {
		all = append(all, actions...)
	}
	slices.SortStableFunc(all, func(a, b Action) int { return cmp.Compare(a.Repo, b.Repo) })
	if err != nil {
		return all, errors.Join(errors.New("sync failed"), err)
	}
	return all, nil
}
