package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sprintstat/internal/config"
	"sprintstat/internal/eventlog"
	"sprintstat/internal/logging"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// options holds the persistent flags and what PersistentPreRunE loads from
// them.
type options struct {
	verbose      bool
	projectPath  string
	format       string
	output       string
	concurrency  int
	fromSnapshot string
	snapshot     string
	noProgress   bool
	now          string

	cfg      *config.AppConfig
	project  *config.Project
	snap     *eventlog.SnapshotSource
	recorder *eventlog.Recorder
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "sprintstat",
		Short: "Sprint velocity and scrum reports for GitHub issue trackers",
		Long: `sprintstat reads the label and close history of GitHub issues and pull requests,
places every event in a fixed-length sprint, and reports what each sprint started
and completed. It also renders scrum board overviews and sprint summaries, keeps
labels and milestones in sync across repositories, and serves the same reports
as MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(o.verbose)

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			o.cfg = cfg
			if o.concurrency > 0 {
				o.cfg.Concurrency = o.concurrency
			}

			project, err := o.loadProject()
			if err != nil {
				return err
			}
			o.project = project

			log.Info().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("command", cmd.Name()).
				Msg("sprintstat starting")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return o.saveSnapshot()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVarP(&o.projectPath, "project", "p", "", "project file (json, yaml or toml); defaults to sprintstat.* in the working directory")
	flags.StringVarP(&o.format, "format", "f", "text", "output format: text, markdown, json, yaml or mermaid")
	flags.StringVarP(&o.output, "output", "o", "", "write output to this file instead of stdout")
	flags.IntVarP(&o.concurrency, "concurrency", "j", 0, "maximum concurrent requests (default from SPRINTSTAT_CONCURRENCY)")
	flags.StringVar(&o.fromSnapshot, "from-snapshot", "", "read issues from a JSONL snapshot instead of GitHub")
	flags.StringVar(&o.snapshot, "snapshot", "", "save every fetched issue and history to this JSONL snapshot")
	flags.BoolVar(&o.noProgress, "no-progress", false, "disable progress bars")
	flags.StringVar(&o.now, "now", "", "evaluate the current sprint at this RFC 3339 instant")
	_ = flags.MarkHidden("now")

	root.AddCommand(
		newSprintCmd(o),
		newVelocityCmd(o),
		newReportCmd(o),
		newSummaryCmd(o),
		newIssueHistCmd(o),
		newSyncCmd(o),
		newUnassignedPullsCmd(o),
		newServeCmd(o),
	)
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().Execute()
}
