package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	GroupID: "serve",
	Short:   "Serve worktree tools over MCP stdio",
	Long: `Expose create-worktree-from-issue and list-worktrees as MCP tools on
stdin/stdout, for use by coding agents. All diagnostics go to stderr so
the protocol stream stays clean.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.ServeStdio(mcptools.NewServer(mgr, Version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
