// Package mcp exposes the claims desk to AI agents over the Model Context
// Protocol.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/adjudication"
	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Members is the read side of the ledger the tools need.
type Members interface {
	GetMember(ctx context.Context, memberID string) (*claims.Member, error)
	ListQueue(ctx context.Context) ([]ledger.QueueItem, error)
}

// Server wraps an MCP server that exposes the claim tools.
type Server struct {
	pipeline *adjudication.Pipeline
	members  Members
	limits   map[claims.Field]int
	logger   *zap.Logger
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. limits
// are the annual maximums shown next to usage counters. The logger must not
// write to stdout.
func NewServer(pipeline *adjudication.Pipeline, members Members, limits map[claims.Field]int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline: pipeline,
		members:  members,
		limits:   limits,
		logger:   logger,
	}

	s.mcp = server.NewMCPServer(
		"claimdesk",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(processClaimTool, s.handleProcessClaim)
	s.mcp.AddTool(askFollowUpTool, s.handleAskFollowUp)
	s.mcp.AddTool(getMemberUsageTool, s.handleGetMemberUsage)
	s.mcp.AddTool(listReviewQueueTool, s.handleListReviewQueue)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
