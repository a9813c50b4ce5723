package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/treeflow/treeflow/internal/manager"
)

// NewServer wires the worktree tools into an MCP server instance ready to
// serve over stdio.
func NewServer(mgr *manager.Manager, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"treeflow",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	createTool := NewCreateTool(mgr)
	s.AddTool(createTool.Definition(), createTool.Handle)

	listTool := NewListTool(mgr)
	s.AddTool(listTool.Definition(), listTool.Handle)

	return s
}
