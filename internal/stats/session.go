package stats

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/sprint"

	"github.com/rs/zerolog/log"
)

// Target names a repository ("owner/name"), or one of its issues when
// Number is set.
type Target struct {
	Repo   string
	Number int
}

// ParseTarget parses "owner/name" or "owner/name/number".
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Target{}, fmt.Errorf("invalid repository %q: want owner/name[/number]", s)
	}
	t := Target{Repo: parts[0] + "/" + parts[1]}
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			return Target{}, fmt.Errorf("invalid issue number in %q", s)
		}
		t.Number = n
	}
	return t, nil
}

func (t Target) String() string {
	if t.Number > 0 {
		return fmt.Sprintf("%s/%d", t.Repo, t.Number)
	}
	return t.Repo
}

// Session runs the fetch, classify and aggregate pipeline for one report
// invocation. It holds no state that outlives the report.
type Session struct {
	provider *eventlog.Provider
	cal      *sprint.Calendar
	vocab    eventlog.Vocabulary
	current  int
}

// NewSession fixes the current sprint at creation so every step of the
// report agrees on it.
func NewSession(provider *eventlog.Provider, cal *sprint.Calendar, vocab eventlog.Vocabulary) *Session {
	return &Session{
		provider: provider,
		cal:      cal,
		vocab:    vocab,
		current:  cal.Current(),
	}
}

// Current returns the session's current sprint.
func (s *Session) Current() int {
	return s.current
}

// Calendar returns the session's calendar.
func (s *Session) Calendar() *sprint.Calendar {
	return s.cal
}

// Vocabulary returns the session's label vocabulary.
func (s *Session) Vocabulary() eventlog.Vocabulary {
	return s.vocab
}

// Fetch collects the issues named by targets. Whole repositories are
// filtered by q; explicitly numbered issues are always included.
func (s *Session) Fetch(ctx context.Context, targets []Target, q eventlog.Query, withEvents bool) ([]eventlog.Issue, error) {
	var repos []string
	var single []Target
	for _, t := range targets {
		if t.Number > 0 {
			single = append(single, t)
		} else if !slices.Contains(repos, t.Repo) {
			repos = append(repos, t.Repo)
		}
	}

	var issues []eventlog.Issue
	if len(repos) > 0 {
		collected, err := s.provider.Collect(ctx, repos, q, withEvents)
		if err != nil {
			return nil, err
		}
		issues = collected
	}
	for _, t := range single {
		issue, err := s.provider.Lookup(ctx, t.Repo, t.Number, withEvents)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}

	slices.SortFunc(issues, func(a, b eventlog.Issue) int {
		return cmp.Or(cmp.Compare(a.Repository, b.Repository), cmp.Compare(a.Number, b.Number))
	})
	issues = slices.CompactFunc(issues, func(a, b eventlog.Issue) bool { return a.ID() == b.ID() })
	return issues, nil
}

// Velocity fetches, classifies and aggregates the targets' issues.
func (s *Session) Velocity(ctx context.Context, targets []Target, q eventlog.Query) (Velocity, []Classified, error) {
	issues, err := s.Fetch(ctx, targets, q, true)
	if err != nil {
		return Velocity{}, nil, err
	}
	classified, err := ClassifyAll(issues, s.cal, s.vocab)
	if err != nil {
		return Velocity{}, nil, err
	}
	v := Aggregate(classified, s.current, s.vocab)
	log.Info().Int("issues", len(issues)).Int("sprints", len(v.Sprints)).Int("excluded", len(v.Excluded)).Msg("Velocity aggregated")
	return v, classified, nil
}

// History fetches one issue with its events and classifies it.
func (s *Session) History(ctx context.Context, repo string, number int) (Classified, error) {
	issue, err := s.provider.Lookup(ctx, repo, number, true)
	if err != nil {
		return Classified{}, err
	}
	lc, err := eventlog.Classify(issue, s.cal, s.vocab)
	if err != nil {
		return Classified{}, err
	}
	return Classified{Issue: issue, Lifecycle: lc}, nil
}

// ScrumOptions selects what the scrum report covers.
type ScrumOptions struct {
	// From is the first sprint whose closed issues are reported.
	From int
	// Milestone restricts every section to one milestone and enables the
	// backlog section.
	Milestone string
	// OnlyClosed skips the current sprint and backlog sections.
	OnlyClosed bool
}

// ScrumReport is a board overview: what was closed, what is in flight and
// what is waiting.
type ScrumReport struct {
	Current int     `json:"current" yaml:"current"`
	Closed  []Group `json:"closed" yaml:"closed"`
	InWork  []Group `json:"inWork,omitempty" yaml:"inWork,omitempty"`
	Backlog *Group  `json:"backlog,omitempty" yaml:"backlog,omitempty"`
}

// Scrum builds the board overview for the targets.
func (s *Session) Scrum(ctx context.Context, targets []Target, opts ScrumOptions) (ScrumReport, error) {
	from := opts.From
	if from == 0 {
		from = s.current
	}
	report := ScrumReport{Current: s.current}

	closed, err := s.Fetch(ctx, targets, eventlog.Query{State: "closed", Since: s.cal.WindowOf(from).Start}, false)
	if err != nil {
		return ScrumReport{}, err
	}
	report.Closed = ClosedBySprint(closed, s.cal, from, opts.Milestone)

	if opts.OnlyClosed {
		return report, nil
	}

	open, err := s.Fetch(ctx, targets, eventlog.Query{State: "open"}, false)
	if err != nil {
		return ScrumReport{}, err
	}
	report.InWork = InSprint(open, s.vocab, s.current, opts.Milestone)
	if opts.Milestone != "" {
		backlog := Backlog(open, s.vocab, s.current, opts.Milestone)
		report.Backlog = &backlog
	}
	return report, nil
}

// Summary tallies sprint n by milestone and assignee.
func (s *Session) Summary(ctx context.Context, targets []Target, n int) (SprintSummary, error) {
	w := s.cal.WindowOf(n)
	issues, err := s.Fetch(ctx, targets, eventlog.Query{State: "all", Since: w.Start}, false)
	if err != nil {
		return SprintSummary{}, err
	}
	outsiders, err := s.provider.Outsiders(ctx, issues)
	if err != nil {
		return SprintSummary{}, err
	}
	return SummarizeSprint(issues, w, s.vocab, outsiders), nil
}
