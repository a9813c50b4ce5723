// Package mcptools exposes worktree operations as MCP tools so coding agents
// can drive the manager directly.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/types"
)

// CreateTool handles the create-worktree-from-issue MCP tool.
type CreateTool struct {
	mgr *manager.Manager
}

// NewCreateTool creates a CreateTool over the given manager.
func NewCreateTool(mgr *manager.Manager) *CreateTool {
	return &CreateTool{mgr: mgr}
}

// Definition returns the MCP tool definition.
func (t *CreateTool) Definition() mcp.Tool {
	return mcp.NewTool("create-worktree-from-issue",
		mcp.WithDescription(
			"Create a git worktree bound to a tracked issue. Derives the worktree "+
				"name and branch from the issue number, enforces hierarchy guardrails, "+
				"and records sidecar metadata.",
		),
		mcp.WithString("issue_id",
			mcp.Required(),
			mcp.Description("Issue number or tracker identifier (e.g. \"7\" or \"DEV-123\")"),
		),
		mcp.WithString("worktree_type",
			mcp.Description("Hierarchy type: epic, feature, issue, subissue, custom (default issue)"),
		),
		mcp.WithString("parent_worktree",
			mcp.Description("Name of the parent worktree to attach under"),
		),
		mcp.WithString("provider",
			mcp.Description("Issue provider override (linear, github)"),
		),
	)
}

// Handle processes the create-worktree-from-issue tool call.
func (t *CreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := req.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	wtype := types.WorktreeType(req.GetString("worktree_type", string(types.TypeIssue)))
	if !wtype.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid worktree type %q", wtype)), nil
	}

	info, err := t.mgr.Create(ctx, types.CreateRequest{
		IssueID:        issueID,
		WorktreeType:   wtype,
		ParentWorktree: req.GetString("parent_worktree", ""),
		Provider:       req.GetString("provider", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create worktree: %v", err)), nil
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
