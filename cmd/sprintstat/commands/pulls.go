package commands

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/report"
	"sprintstat/internal/stats"
)

// pullLister is the part of the GitHub client the pull listing needs.
type pullLister interface {
	OpenPulls(ctx context.Context, repo string) ([]eventlog.Issue, error)
	IssueLabels(ctx context.Context, repo string, number int) ([]string, error)
}

func newUnassignedPullsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unassigned-pulls [owner/repo...]",
		Short: "List open pull requests nobody is assigned to, with their labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := o.targets(args)
			if err != nil {
				return err
			}
			repos := make([]string, 0, len(targets))
			for _, t := range targets {
				repos = append(repos, t.Repo)
			}

			var pulls []eventlog.Issue
			if o.fromSnapshot != "" {
				session, fetch, err := o.session()
				if err != nil {
					return err
				}
				open, err := session.Fetch(cmd.Context(), targets, eventlog.Query{State: "open"}, false)
				fetch.Finish(err)
				if err != nil {
					return err
				}
				pulls = stats.UnassignedPulls(open)
			} else {
				client, err := o.githubClient(0)
				if err != nil {
					return err
				}
				if pulls, err = unassignedPulls(cmd.Context(), client, repos, o.cfg.Concurrency); err != nil {
					return err
				}
			}
			return o.render(report.PullsTable("Unassigned pull requests", pulls))
		},
	}
}

// unassignedPulls lists every repository's open pull requests and refreshes
// the labels of the unassigned ones from their issue.
func unassignedPulls(ctx context.Context, c pullLister, repos []string, concurrency int) ([]eventlog.Issue, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	p := pool.NewWithResults[[]eventlog.Issue]().
		WithMaxGoroutines(concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, repo := range repos {
		p.Go(func(ctx context.Context) ([]eventlog.Issue, error) {
			open, err := c.OpenPulls(ctx, repo)
			if err != nil {
				return nil, err
			}
			pulls := stats.UnassignedPulls(open)
			for i := range pulls {
				labels, err := c.IssueLabels(ctx, repo, pulls[i].Number)
				if err != nil {
					return nil, err
				}
				pulls[i].Labels = labels
			}
			return pulls, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	var all []eventlog.Issue
	for _, pulls := range results {
		all = append(all, pulls...)
	}
	return stats.UnassignedPulls(all), nil
}
