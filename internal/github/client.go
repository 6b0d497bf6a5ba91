package github

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"sprintstat/internal/eventlog"
)

const perPage = 100

// Config holds the connection and retry settings of the API client.
type Config struct {
	// Token is a personal access token. Empty means anonymous access.
	Token string
	// BaseURL overrides the API root, e.g. "https://ghe.example.com/api/v3/".
	BaseURL string
	// MaxAttempts, BaseDelay and MaxWait configure the Backoff policy.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxWait     time.Duration
	// CacheTTL enables a session cache of issues and events when positive.
	CacheTTL time.Duration
	// HTTPClient is the transport used when Token is empty.
	HTTPClient *http.Client
}

// Client is the GitHub issue source. It is safe for concurrent use.
type Client struct {
	api     *gh.Client
	backoff Backoff
	events  *ttlCache[[]eventlog.Event]
	issues  *ttlCache[eventlog.Issue]
	collabs *ttlCache[bool]
}

// NewClient creates a client authenticated with cfg.Token.
func NewClient(cfg Config) (*Client, error) {
	httpClient := cfg.HTTPClient
	if cfg.Token != "" {
		ctx := context.Background()
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	api := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", cfg.BaseURL, err)
		}
		api.BaseURL = u
	}

	b := DefaultBackoff()
	if cfg.MaxAttempts > 0 {
		b.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		b.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxWait > 0 {
		b.MaxWait = cfg.MaxWait
	}

	c := &Client{api: api, backoff: b}
	if cfg.CacheTTL > 0 {
		c.events = newTTLCache[[]eventlog.Event](cfg.CacheTTL)
		c.issues = newTTLCache[eventlog.Issue](cfg.CacheTTL)
		c.collabs = newTTLCache[bool](cfg.CacheTTL)
	}

	log.Debug().Str("base_url", api.BaseURL.String()).Bool("authenticated", cfg.Token != "").Int("max_attempts", b.MaxAttempts).Msg("GitHub client created")
	return c, nil
}

// IssuePages lists a repository's issues and pull requests matching q, one
// page at a time. Each range over the sequence starts again at page one.
func (c *Client) IssuePages(ctx context.Context, repo string, q eventlog.Query) iter.Seq2[[]eventlog.Issue, error] {
	return func(yield func([]eventlog.Issue, error) bool) {
		owner, name, err := ParseRepo(repo)
		if err != nil {
			yield(nil, err)
			return
		}

		opts := &gh.IssueListByRepoOptions{
			State:       "all",
			Since:       q.Since,
			Labels:      q.Labels,
			ListOptions: gh.ListOptions{PerPage: perPage, Page: 1},
		}
		if q.State != "" {
			opts.State = q.State
		}
		if q.Milestone != "" {
			number, ok, err := c.milestoneNumber(ctx, repo, q.Milestone)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				log.Debug().Str("repo", repo).Str("milestone", q.Milestone).Msg("Milestone not present in repository")
				return
			}
			opts.Milestone = strconv.Itoa(number)
		}

		for {
			fe := SourceFetchError{Repo: repo, Op: "list issues"}
			page, resp, err := retry(ctx, c.backoff, fe, func() ([]*gh.Issue, *gh.Response, error) {
				return c.api.Issues.ListByRepo(ctx, owner, name, opts)
			})
			if err != nil {
				yield(nil, err)
				return
			}

			issues := make([]eventlog.Issue, 0, len(page))
			for _, in := range page {
				issues = append(issues, MapIssue(repo, in))
			}
			log.Debug().Str("repo", repo).Int("page", opts.Page).Int("count", len(issues)).Msg("Fetched issue page")

			if !yield(issues, nil) {
				return
			}
			if resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// Issue fetches a single issue or pull request.
func (c *Client) Issue(ctx context.Context, repo string, number int) (eventlog.Issue, error) {
	key := fmt.Sprintf("%s#%d", repo, number)
	if issue, ok := c.issues.get(key); ok {
		return issue, nil
	}

	owner, name, err := ParseRepo(repo)
	if err != nil {
		return eventlog.Issue{}, err
	}
	fe := SourceFetchError{Repo: repo, Number: number, Op: "get issue"}
	in, _, err := retry(ctx, c.backoff, fe, func() (*gh.Issue, *gh.Response, error) {
		return c.api.Issues.Get(ctx, owner, name, number)
	})
	if err != nil {
		return eventlog.Issue{}, err
	}

	issue := MapIssue(repo, in)
	c.issues.add(key, issue)
	return issue, nil
}

// Events fetches the complete event history of one issue.
func (c *Client) Events(ctx context.Context, repo string, number int) ([]eventlog.Event, error) {
	key := fmt.Sprintf("%s#%d", repo, number)
	if events, ok := c.events.get(key); ok {
		return slices.Clone(events), nil
	}

	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}

	var events []eventlog.Event
	opts := &gh.ListOptions{PerPage: perPage, Page: 1}
	for {
		fe := SourceFetchError{Repo: repo, Number: number, Op: "list events"}
		page, resp, err := retry(ctx, c.backoff, fe, func() ([]*gh.IssueEvent, *gh.Response, error) {
			return c.api.Issues.ListIssueEvents(ctx, owner, name, number, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, e := range page {
			events = append(events, MapEvent(e))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.events.add(key, slices.Clone(events))
	return events, nil
}

// OpenPulls lists the open pull requests of a repository.
func (c *Client) OpenPulls(ctx context.Context, repo string) ([]eventlog.Issue, error) {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}

	var pulls []eventlog.Issue
	opts := &gh.PullRequestListOptions{State: "open", ListOptions: gh.ListOptions{PerPage: perPage, Page: 1}}
	for {
		fe := SourceFetchError{Repo: repo, Op: "list pulls"}
		page, resp, err := retry(ctx, c.backoff, fe, func() ([]*gh.PullRequest, *gh.Response, error) {
			return c.api.PullRequests.List(ctx, owner, name, opts)
		})
		if err != nil {
			return nil, err
		}
		for _, pr := range page {
			pulls = append(pulls, MapPull(repo, pr))
		}
		if resp.NextPage == 0 {
			return pulls, nil
		}
		opts.Page = resp.NextPage
	}
}

// IssueLabels lists the label names currently on an issue.
func (c *Client) IssueLabels(ctx context.Context, repo string, number int) ([]string, error) {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}
	fe := SourceFetchError{Repo: repo, Number: number, Op: "list issue labels"}
	labels, _, err := retry(ctx, c.backoff, fe, func() ([]*gh.Label, *gh.Response, error) {
		return c.api.Issues.ListLabelsByIssue(ctx, owner, name, number, &gh.ListOptions{PerPage: perPage})
	})
	if err != nil {
		return nil, err
	}
	return labelNames(labels), nil
}

// IsCollaborator reports whether login is a collaborator of repo. A check
// the API refuses (anonymous access, no push rights) counts as a
// collaborator, so only confirmed outsiders are reported.
func (c *Client) IsCollaborator(ctx context.Context, repo, login string) (bool, error) {
	key := repo + ":" + login
	if member, ok := c.collabs.get(key); ok {
		return member, nil
	}

	owner, name, err := ParseRepo(repo)
	if err != nil {
		return false, err
	}
	fe := SourceFetchError{Repo: repo, Op: "check collaborator"}
	member, _, err := retry(ctx, c.backoff, fe, func() (bool, *gh.Response, error) {
		return c.api.Repositories.IsCollaborator(ctx, owner, name, login)
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Debug().Err(err).Str("repo", repo).Str("login", login).Msg("Collaborator check refused, assuming collaborator")
		return true, nil
	}

	c.collabs.add(key, member)
	return member, nil
}
