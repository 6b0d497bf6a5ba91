package eventlog

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Query filters the issues requested from a Source.
type Query struct {
	// State is "open", "closed" or "all" (the default).
	State string
	// Since keeps only issues updated at or after this instant.
	Since time.Time
	// Labels keeps only issues carrying every listed label.
	Labels []string
	// Milestone keeps only issues in the milestone with this title.
	Milestone string
}

// Matches applies the query to an issue that is already in memory.
func (q Query) Matches(issue Issue) bool {
	switch q.State {
	case "", "all":
	default:
		if issue.State != q.State {
			return false
		}
	}
	if !q.Since.IsZero() && issue.UpdatedAt.Before(q.Since) {
		return false
	}
	for _, l := range q.Labels {
		if !issue.HasLabel(l) {
			return false
		}
	}
	if q.Milestone != "" && issue.Milestone != q.Milestone {
		return false
	}
	return true
}

// Source is where issues and their event histories come from.
type Source interface {
	// IssuePages yields matching issues of one "owner/name" repository a
	// page at a time. Ranging over the result again starts from page one.
	IssuePages(ctx context.Context, repo string, q Query) iter.Seq2[[]Issue, error]
	// Events returns the full event history of one issue, oldest first.
	Events(ctx context.Context, repo string, number int) ([]Event, error)
}

// IssueGetter is implemented by sources that can fetch a single issue
// directly instead of scanning its repository.
type IssueGetter interface {
	Issue(ctx context.Context, repo string, number int) (Issue, error)
}

// CollaboratorChecker is implemented by sources that know who may push to a
// repository.
type CollaboratorChecker interface {
	IsCollaborator(ctx context.Context, repo, login string) (bool, error)
}

// Option configures a Provider.
type Option func(*Provider)

// WithIssueProgress registers a callback invoked once per fetched issue page.
func WithIssueProgress(fn func(repo string, n int)) Option {
	return func(p *Provider) { p.onIssues = fn }
}

// WithEventsStarted registers a callback invoked with the number of issues
// whose events are about to be fetched for a repository.
func WithEventsStarted(fn func(n int)) Option {
	return func(p *Provider) { p.onEventsStarted = fn }
}

// WithEventProgress registers a callback invoked once per issue whose
// events have been fetched.
func WithEventProgress(fn func()) Option {
	return func(p *Provider) { p.onEvents = fn }
}

// Provider orchestrates concurrent retrieval from a Source.
type Provider struct {
	src         Source
	concurrency int

	onIssues        func(repo string, n int)
	onEventsStarted func(n int)
	onEvents        func()
}

// NewProvider creates a Provider that keeps at most concurrency source
// requests in flight per Collect, summed over every repository.
func NewProvider(src Source, concurrency int, opts ...Option) *Provider {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Provider{src: src, concurrency: concurrency}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Collect fetches matching issues of every repository and, when withEvents
// is set, the event history of each one. It returns only after every fetch
// has finished; the first failure cancels the rest and is returned alone.
// Results are sorted by repository, then issue number.
func (p *Provider) Collect(ctx context.Context, repos []string, q Query, withEvents bool) ([]Issue, error) {
	perRepo := make([][]Issue, len(repos))
	sem := semaphore.NewWeighted(int64(p.concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, repo := range repos {
		g.Go(func() error {
			issues, err := p.collectRepo(gctx, sem, repo, q, withEvents)
			if err != nil {
				return err
			}
			perRepo[i] = issues
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Issue
	for _, issues := range perRepo {
		all = append(all, issues...)
	}
	slices.SortFunc(all, func(a, b Issue) int {
		return cmp.Or(cmp.Compare(a.Repository, b.Repository), cmp.Compare(a.Number, b.Number))
	})

	log.Info().Int("repos", len(repos)).Int("issues", len(all)).Bool("events", withEvents).Msg("Collection complete")
	return all, nil
}

// collectRepo lists one repository and fetches its histories. Every source
// request holds a slot of sem, which Collect shares across repositories.
func (p *Provider) collectRepo(ctx context.Context, sem *semaphore.Weighted, repo string, q Query, withEvents bool) ([]Issue, error) {
	issues, err := p.listRepo(ctx, sem, repo, q)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("repo", repo).Int("issues", len(issues)).Msg("Issues listed")

	if !withEvents || len(issues) == 0 {
		return issues, nil
	}
	if p.onEventsStarted != nil {
		p.onEventsStarted(len(issues))
	}

	wp := pool.New().WithMaxGoroutines(p.concurrency).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i := range issues {
		wp.Go(func(ctx context.Context) error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			events, err := p.src.Events(ctx, repo, issues[i].Number)
			sem.Release(1)
			if err != nil {
				return err
			}
			if !Chronological(events) {
				slices.SortStableFunc(events, func(a, b Event) int { return a.At.Compare(b.At) })
			}
			issues[i].Events = events
			if p.onEvents != nil {
				p.onEvents()
			}
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}
	return issues, nil
}

// listRepo pages through a repository while holding one slot of sem.
func (p *Provider) listRepo(ctx context.Context, sem *semaphore.Weighted, repo string, q Query) ([]Issue, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sem.Release(1)

	var issues []Issue
	for page, err := range p.src.IssuePages(ctx, repo, q) {
		if err != nil {
			return nil, fmt.Errorf("listing issues of %s: %w", repo, err)
		}
		issues = append(issues, page...)
		if p.onIssues != nil {
			p.onIssues(repo, len(page))
		}
	}
	return issues, nil
}

// Outsiders returns the IDs of the pull requests in issues whose author is
// not a collaborator of the repository. The result is empty when the source
// cannot tell collaborators apart.
func (p *Provider) Outsiders(ctx context.Context, issues []Issue) (map[string]bool, error) {
	checker, ok := p.src.(CollaboratorChecker)
	if !ok {
		return nil, nil
	}

	type author struct{ repo, login string }
	var authors []author
	seen := make(map[author]bool)
	for _, issue := range issues {
		a := author{issue.Repository, issue.Author}
		if !issue.IsPullRequest || a.login == "" || seen[a] {
			continue
		}
		seen[a] = true
		authors = append(authors, a)
	}

	var mu sync.Mutex
	outside := make(map[author]bool)
	wp := pool.New().WithMaxGoroutines(p.concurrency).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, a := range authors {
		wp.Go(func(ctx context.Context) error {
			member, err := checker.IsCollaborator(ctx, a.repo, a.login)
			if err != nil {
				return err
			}
			if !member {
				mu.Lock()
				outside[a] = true
				mu.Unlock()
			}
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	for _, issue := range issues {
		if issue.IsPullRequest && outside[author{issue.Repository, issue.Author}] {
			ids[issue.ID()] = true
		}
	}
	log.Debug().Int("authors", len(authors)).Int("outside", len(ids)).Msg("Collaborators checked")
	return ids, nil
}

// Lookup fetches one issue and, when withEvents is set, its history.
func (p *Provider) Lookup(ctx context.Context, repo string, number int, withEvents bool) (Issue, error) {
	issue, err := p.lookup(ctx, repo, number)
	if err != nil {
		return Issue{}, err
	}
	if withEvents {
		events, err := p.src.Events(ctx, repo, number)
		if err != nil {
			return Issue{}, err
		}
		issue.Events = events
	}
	return issue, nil
}

func (p *Provider) lookup(ctx context.Context, repo string, number int) (Issue, error) {
	if getter, ok := p.src.(IssueGetter); ok {
		return getter.Issue(ctx, repo, number)
	}
	for page, err := range p.src.IssuePages(ctx, repo, Query{}) {
		if err != nil {
			return Issue{}, fmt.Errorf("listing issues of %s: %w", repo, err)
		}
		for _, issue := range page {
			if issue.Number == number {
				return issue, nil
			}
		}
	}
	return Issue{}, fmt.Errorf("%s#%d: %w", repo, number, ErrIssueNotFound)
}
