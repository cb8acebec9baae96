// Package mcpserver exposes tag navigation as MCP tools over stdio. Every
// tool is stateless: the selection travels in the query string.
package mcpserver

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/session"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

// Version is set via ldflags at build time.
var Version = "dev"

type Server struct {
	page   *api.Page
	tree   *tagtree.Tree
	logger *slog.Logger
	mcp    *server.MCPServer
}

func NewServer(page *api.Page, tree *tagtree.Tree, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{page: page, tree: tree, logger: logger}
	s.mcp = server.NewMCPServer(
		"tagnav",
		Version,
		server.WithToolCapabilities(false),
	)
	s.mcp.AddTool(resolveSelectionTool, s.handleResolveSelection)
	s.mcp.AddTool(selectValueTool, s.handleSelectValue)
	s.mcp.AddTool(stepAnimationTool, s.handleStepAnimation)
	s.mcp.AddTool(listDimensionsTool, s.handleListDimensions)
	return s
}

// Serve runs the server on stdio. Stdout carries protocol messages only.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) session(query string) (*session.Session, error) {
	sess, err := session.New(s.page, s.tree, session.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	sess.Init(query)
	return sess, nil
}
