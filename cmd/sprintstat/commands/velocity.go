package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/report"
)

func newVelocityCmd(o *options) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "velocity [owner/repo[/number]...]",
		Short: "Count the issues started and completed in each sprint",
		Long: `Fetches the event history of every issue and pull request of the given
repositories (default: the project's), finds the sprint in which each was
started and completed, and counts them per sprint. Issues that were never
started are listed separately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := o.targets(args)
			if err != nil {
				return err
			}
			session, fetch, err := o.session()
			if err != nil {
				return err
			}

			q := eventlog.Query{State: "all"}
			if since != "" {
				t, err := time.ParseInLocation(time.DateOnly, since, session.Calendar().Location())
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				q.Since = t
			} else if q.Since, err = o.project.SinceTime(session.Calendar()); err != nil {
				return err
			}

			v, _, err := session.Velocity(cmd.Context(), targets, q)
			fetch.Finish(err)
			if err != nil {
				return err
			}
			return o.render(report.VelocityReport(v))
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only issues updated on or after this date (YYYY-MM-DD); overrides the project file")
	return cmd
}
