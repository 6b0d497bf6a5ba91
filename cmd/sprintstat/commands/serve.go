package commands

import (
	"context"

	"github.com/spf13/cobra"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/mcp"
	"sprintstat/internal/stats"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sprint reports as MCP tools over stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout. To use it from an
MCP client, configure:

  {
    "mcpServers": {
      "sprintstat": {
        "command": "sprintstat",
        "args": ["serve", "--project", "/path/to/sprintstat.yaml"]
      }
    }
  }

Available tools:
  - sprint_window    Start and stop of one or more sprints
  - current_sprint   The sprint that contains now
  - velocity         Started and completed issues per sprint
  - issue_history    Events and lifecycle of one issue
  - sprint_summary   Milestone and assignee tallies of a sprint

Issues and events fetched from GitHub are cached for SPRINTSTAT_CACHE_TTL_SECONDS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := o.source(o.cfg.CacheTTL)
			if err != nil {
				return err
			}
			defaults, err := o.serverDefaults()
			if err != nil {
				return err
			}
			server := mcp.NewServer(Version, o.sessionFactory(src), defaults)
			return server.Run(cmd.Context())
		},
	}
}

// serverDefaults hands the project's repos and since to the tools; since
// is checked here so a bad project file fails before serving.
func (o *options) serverDefaults() (mcp.Defaults, error) {
	cal, err := o.calendar()
	if err != nil {
		return mcp.Defaults{}, err
	}
	if _, err := o.project.SinceTime(cal); err != nil {
		return mcp.Defaults{}, err
	}
	return mcp.Defaults{Repos: o.project.Repos, Since: o.project.Since}, nil
}

// sessionFactory shares one source across tool calls; the calendar is
// rebuilt per call so the current sprint follows the clock.
func (o *options) sessionFactory(src eventlog.Source) mcp.SessionFactory {
	return func(ctx context.Context) (*stats.Session, error) {
		cal, err := o.calendar()
		if err != nil {
			return nil, err
		}
		provider := eventlog.NewProvider(src, o.cfg.Concurrency)
		return stats.NewSession(provider, cal, o.project.Vocabulary), nil
	}
}
