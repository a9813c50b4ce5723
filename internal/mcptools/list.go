package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/types"
)

// ListTool handles the list-worktrees MCP tool.
type ListTool struct {
	mgr *manager.Manager
}

// NewListTool creates a ListTool over the given manager.
func NewListTool(mgr *manager.Manager) *ListTool {
	return &ListTool{mgr: mgr}
}

// Definition returns the MCP tool definition.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("list-worktrees",
		mcp.WithDescription(
			"List all managed git worktrees with their hierarchy metadata, "+
				"lifecycle status, and issue bindings.",
		),
		mcp.WithString("worktree_type",
			mcp.Description("Filter by type: epic, feature, issue, subissue, custom"),
		),
	)
}

// Handle processes the list-worktrees tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := types.WorktreeType(req.GetString("worktree_type", ""))
	if filter != "" && !filter.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid worktree type %q", filter)), nil
	}

	infos, err := t.mgr.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list worktrees: %v", err)), nil
	}
	if infos == nil {
		infos = []*types.WorktreeInfo{}
	}

	out, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
