package commands

import (
	"fmt"
	"strconv"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sprintstat/internal/report"
	"sprintstat/internal/stats"
)

func newIssueHistCmd(o *options) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "issue-hist owner/repo number",
		Short: "Show an issue's events, the sprint of each, and its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := stats.ParseTarget(args[0])
			if err != nil {
				return err
			}
			number, err := strconv.Atoi(args[1])
			if err != nil || number <= 0 {
				return fmt.Errorf("invalid issue number %q", args[1])
			}

			session, fetch, err := o.session()
			if err != nil {
				return err
			}
			c, err := session.History(cmd.Context(), target.Repo, number)
			fetch.Finish(err)
			if err != nil {
				return err
			}

			if err := o.render(report.HistoryReport(c, session.Calendar())); err != nil {
				return err
			}
			if open {
				url := c.Issue.URL
				if url == "" {
					url = fmt.Sprintf("https://github.com/%s/issues/%d", target.Repo, number)
				}
				log.Debug().Str("url", url).Msg("Opening issue in browser")
				if err := browser.OpenURL(url); err != nil {
					return fmt.Errorf("failed to open %s: %w", url, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "also open the issue in a web browser")
	return cmd
}
