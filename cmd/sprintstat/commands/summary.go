package commands

import (
	"github.com/spf13/cobra"

	"sprintstat/internal/report"
	"sprintstat/internal/sprint"
)

func newSummaryCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary [N]",
		Short: "Tally a sprint's issues by milestone and assignee",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := o.targets(nil)
			if err != nil {
				return err
			}
			session, fetch, err := o.session()
			if err != nil {
				return err
			}

			n := session.Current()
			if len(args) == 1 {
				if n, err = sprint.ParseNumber(args[0]); err != nil {
					return err
				}
			}

			s, err := session.Summary(cmd.Context(), targets, n)
			fetch.Finish(err)
			if err != nil {
				return err
			}
			return o.render(report.SummaryReport(s))
		},
	}
	return cmd
}
