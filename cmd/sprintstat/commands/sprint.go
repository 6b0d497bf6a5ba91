package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sprintstat/internal/report"
	"sprintstat/internal/sprint"
)

func newSprintCmd(o *options) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "sprint [N]",
		Short: "Show the window of a sprint (default: the current sprint)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := o.calendar()
			if err != nil {
				return err
			}
			current := cal.Current()

			first := current
			if len(args) == 1 {
				if first, err = sprint.ParseNumber(args[0]); err != nil {
					return err
				}
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}

			windows := make([]sprint.Window, 0, count)
			for n := first; n < first+count; n++ {
				windows = append(windows, cal.WindowOf(n))
			}
			return o.render(report.WindowTable(windows, current))
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of consecutive sprints to show")
	return cmd
}
