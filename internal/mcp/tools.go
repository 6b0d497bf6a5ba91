package mcp

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/report"
	"sprintstat/internal/sprint"
	"sprintstat/internal/stats"
)

// maxWindows bounds how many sprint windows one call may list.
const maxWindows = 52

// SprintWindowInput selects sprint windows.
type SprintWindowInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default), markdown, yaml or text"`
	Sprint int    `json:"sprint,omitempty" jsonschema:"Sprint number. Defaults to the current sprint."`
	Count  int    `json:"count,omitempty" jsonschema:"Number of consecutive sprints to list, starting at sprint. Defaults to 1."`
}

// CurrentSprintInput has no parameters besides the format.
type CurrentSprintInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default), markdown, yaml or text"`
}

// VelocityInput selects the issues a velocity report covers.
type VelocityInput struct {
	Format string   `json:"format,omitempty" jsonschema:"Output format: json (default), markdown, yaml or text"`
	Repos  []string `json:"repos,omitempty" jsonschema:"Repositories as owner/name, or single issues as owner/name/number. Defaults to the project repositories."`
	Since  string   `json:"since,omitempty" jsonschema:"Only issues updated on or after this date (YYYY-MM-DD). Defaults to the project since."`
}

// IssueHistoryInput names one issue.
type IssueHistoryInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default), markdown, yaml or text"`
	Repo   string `json:"repo" jsonschema:"Repository as owner/name"`
	Number int    `json:"number" jsonschema:"Issue or pull request number"`
}

// SprintSummaryInput selects the sprint to tally.
type SprintSummaryInput struct {
	Format string   `json:"format,omitempty" jsonschema:"Output format: json (default), markdown, yaml or text"`
	Repos  []string `json:"repos,omitempty" jsonschema:"Repositories as owner/name. Defaults to the project repositories."`
	Sprint int      `json:"sprint,omitempty" jsonschema:"Sprint number. Defaults to the current sprint."`
}

func describeSprintWindow() string {
	return `Returns the start and stop instants of sprint windows.

USE WHEN:
- Converting a sprint number into dates
- Listing the windows of several consecutive sprints

INTERPRETING RESULTS:
- start is inclusive, stop is exclusive; both carry the calendar's zone
- current marks the sprint that contains the present instant`
}

func describeCurrentSprint() string {
	return `Returns the number and window of the sprint that contains the present instant.

USE WHEN:
- Anchoring a conversation about "this sprint"
- Checking which sprint label work should carry now`
}

func describeVelocity() string {
	return `Counts, per sprint, the issues that were completed and those that were started but not completed.

USE WHEN:
- Measuring team throughput over recent sprints
- Finding work that keeps slipping across sprints

INTERPRETING RESULTS:
- sprints maps a sprint number to categories (complete, incomplete, rejected), each also split by type as "category:type" with type PR, bug or issue
- an issue can be incomplete in several sprints and complete in at most one
- rejected issues were started but no longer carry any in-flight label; they count once, in the sprint they were started
- excluded lists issues that never entered a sprint, with the reason: "not started" (never labeled in progress) or "closed without being worked"
- an issue whose history cannot be classified fails the whole call instead of being left out`
}

func describeIssueHistory() string {
	return `Returns the event history of one issue or pull request with the sprint each event fell in, and its derived lifecycle.

USE WHEN:
- Explaining why an issue is counted as complete or incomplete in a sprint
- Auditing how labels moved over time`
}

func describeSprintSummary() string {
	return `Tallies a sprint's issues by milestone and by assignee: planned, resolved, in progress and open.

USE WHEN:
- Writing a sprint review
- Checking who carried the sprint's work`
}

// getFormat maps the requested format; json is the default for tool output.
func getFormat(format string) report.Format {
	if format == "" {
		return report.FormatJSON
	}
	f, err := report.ParseFormat(format)
	if err != nil || f == report.FormatMermaid {
		return report.FormatJSON
	}
	return f
}

func formatOutput(data any, format report.Format) (string, error) {
	var buf bytes.Buffer
	if err := report.NewWriterFormatter(format, &buf, false).Output(data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toolResult(data any, format report.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// targets parses the requested repositories, falling back to the
// project's.
func (s *Server) targets(repos []string) ([]stats.Target, error) {
	if len(repos) == 0 {
		repos = s.defaults.Repos
	}
	if len(repos) == 0 {
		return nil, errors.New("no repositories given and none configured")
	}
	targets := make([]stats.Target, 0, len(repos))
	for _, r := range repos {
		t, err := stats.ParseTarget(r)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Tool handlers

func (s *Server) handleSprintWindow(ctx context.Context, req *mcp.CallToolRequest, input SprintWindowInput) (*mcp.CallToolResult, any, error) {
	session, err := s.newSession(ctx)
	if err != nil {
		return toolError(err.Error())
	}

	count := input.Count
	if count <= 0 {
		count = 1
	}
	if count > maxWindows {
		return toolError(fmt.Sprintf("count must be at most %d", maxWindows))
	}
	first := input.Sprint
	if first == 0 {
		first = session.Current()
	}

	windows := make([]sprint.Window, 0, count)
	for n := first; n < first+count; n++ {
		windows = append(windows, session.Calendar().WindowOf(n))
	}
	return toolResult(report.WindowTable(windows, session.Current()), getFormat(input.Format))
}

func (s *Server) handleCurrentSprint(ctx context.Context, req *mcp.CallToolRequest, input CurrentSprintInput) (*mcp.CallToolResult, any, error) {
	session, err := s.newSession(ctx)
	if err != nil {
		return toolError(err.Error())
	}
	n := session.Current()
	return toolResult(report.WindowTable([]sprint.Window{session.Calendar().WindowOf(n)}, n), getFormat(input.Format))
}

func (s *Server) handleVelocity(ctx context.Context, req *mcp.CallToolRequest, input VelocityInput) (*mcp.CallToolResult, any, error) {
	targets, err := s.targets(input.Repos)
	if err != nil {
		return toolError(err.Error())
	}
	session, err := s.newSession(ctx)
	if err != nil {
		return toolError(err.Error())
	}

	q := eventlog.Query{State: "all"}
	if since := cmp.Or(input.Since, s.defaults.Since); since != "" {
		t, err := time.ParseInLocation(time.DateOnly, since, session.Calendar().Location())
		if err != nil {
			return toolError(fmt.Sprintf("invalid since %q: want YYYY-MM-DD", since))
		}
		q.Since = t
	}

	v, _, err := session.Velocity(ctx, targets, q)
	if err != nil {
		log.Error().Err(err).Msg("Velocity tool failed")
		return toolError(err.Error())
	}
	return toolResult(report.VelocityReport(v), getFormat(input.Format))
}

func (s *Server) handleIssueHistory(ctx context.Context, req *mcp.CallToolRequest, input IssueHistoryInput) (*mcp.CallToolResult, any, error) {
	if input.Repo == "" || input.Number <= 0 {
		return toolError("repo and number are required")
	}
	target, err := stats.ParseTarget(input.Repo)
	if err != nil {
		return toolError(err.Error())
	}
	session, err := s.newSession(ctx)
	if err != nil {
		return toolError(err.Error())
	}

	c, err := session.History(ctx, target.Repo, input.Number)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report.HistoryReport(c, session.Calendar()), getFormat(input.Format))
}

func (s *Server) handleSprintSummary(ctx context.Context, req *mcp.CallToolRequest, input SprintSummaryInput) (*mcp.CallToolResult, any, error) {
	targets, err := s.targets(input.Repos)
	if err != nil {
		return toolError(err.Error())
	}
	session, err := s.newSession(ctx)
	if err != nil {
		return toolError(err.Error())
	}

	n := input.Sprint
	if n == 0 {
		n = session.Current()
	}
	summary, err := session.Summary(ctx, targets, n)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report.SummaryReport(summary), getFormat(input.Format))
}
