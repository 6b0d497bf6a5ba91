package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"sprintstat/internal/report"
	"sprintstat/internal/reposync"
)

func newSyncCmd(o *options) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync [owner/repo...]",
		Short: "Create, update, close or delete labels and milestones to match the project file",
		Long: `Brings the labels and milestones of every repository in line with the
project file. A label with an empty color is deleted. A milestone with a date
is created or given that due date, false closes it and null deletes it.
Repositories are synced concurrently; a failing repository does not stop the
others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.fromSnapshot != "" {
				return errors.New("sync needs GitHub and cannot run from a snapshot")
			}
			targets, err := o.targets(args)
			if err != nil {
				return err
			}
			defs, err := o.project.SyncDefinitions()
			if err != nil {
				return err
			}
			if len(defs.Labels) == 0 && len(defs.Milestones) == 0 {
				return errors.New("the project file defines no labels or milestones")
			}

			client, err := o.githubClient(0)
			if err != nil {
				return err
			}
			repos := make([]string, 0, len(targets))
			for _, t := range targets {
				repos = append(repos, t.Repo)
			}

			actions, runErr := reposync.Run(cmd.Context(), client, repos, defs, dryRun, o.cfg.Concurrency)
			if err := o.render(report.SyncTable(actions, dryRun)); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "only show what would change")
	return cmd
}
