package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sprintstat/internal/config"
	"sprintstat/internal/report"
	"sprintstat/internal/stats"
)

func newReportCmd(o *options) *cobra.Command {
	var (
		opts       stats.ScrumOptions
		withIssues bool
	)

	cmd := &cobra.Command{
		Use:   "report [scrum]",
		Short: "Report closed, in-sprint and backlog issues of a scrum board",
		Long: `Reports the issues closed in each sprint since --from, the open issues
grouped by their in-sprint label, and, when --milestone is given, the
milestone backlog. A scrum name is looked up as DATA_PATH/scrums/<name>.yaml
(or .yml, .json, .toml); without one the project file is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				path, err := config.FindScrum(o.cfg.DataPath, args[0])
				if err != nil {
					return err
				}
				project, err := config.LoadProject(path)
				if err != nil {
					return err
				}
				log.Debug().Str("scrum", args[0]).Str("path", path).Msg("Loaded scrum board")
				o.project = project
			}

			targets, err := o.targets(nil)
			if err != nil {
				return err
			}
			session, fetch, err := o.session()
			if err != nil {
				return err
			}

			r, err := session.Scrum(cmd.Context(), targets, opts)
			fetch.Finish(err)
			if err != nil {
				return err
			}
			return o.render(report.ScrumReport(r, session.Vocabulary(), withIssues))
		},
	}
	cmd.Flags().IntVar(&opts.From, "from", 0, "first sprint whose closed issues are reported (default: the current sprint)")
	cmd.Flags().StringVarP(&opts.Milestone, "milestone", "m", "", "restrict to one milestone and report its backlog")
	cmd.Flags().BoolVarP(&opts.OnlyClosed, "closed", "c", false, "report only closed issues")
	cmd.Flags().BoolVarP(&withIssues, "issues", "i", false, "show the repository and number of every issue")
	return cmd
}
