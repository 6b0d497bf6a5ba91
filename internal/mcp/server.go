// Package mcp exposes the sprint reports as Model Context Protocol tools.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"sprintstat/internal/stats"
)

// SessionFactory builds a fresh report session. Each tool call gets its own
// session so the current sprint is evaluated per call.
type SessionFactory func(ctx context.Context) (*stats.Session, error)

// Defaults are the project settings a tool call falls back to.
type Defaults struct {
	// Repos are used when a call names no repositories.
	Repos []string
	// Since (YYYY-MM-DD) bounds velocity queries that give no since.
	Since string
}

// Server wraps the MCP server and the session factory its tools share.
type Server struct {
	server     *mcp.Server
	newSession SessionFactory
	defaults   Defaults
}

// NewServer creates the MCP server and registers its tools.
func NewServer(version string, newSession SessionFactory, defaults Defaults) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "sprintstat",
			Version: version,
		}, nil),
		newSession: newSession,
		defaults:   defaults,
	}
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Strs("repos", s.defaults.Repos).Str("since", s.defaults.Since).Msg("Starting MCP server on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sprint_window",
		Description: describeSprintWindow(),
	}, s.handleSprintWindow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "current_sprint",
		Description: describeCurrentSprint(),
	}, s.handleCurrentSprint)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "velocity",
		Description: describeVelocity(),
	}, s.handleVelocity)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "issue_history",
		Description: describeIssueHistory(),
	}, s.handleIssueHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sprint_summary",
		Description: describeSprintSummary(),
	}, s.handleSprintSummary)
}
