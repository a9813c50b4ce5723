package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/types"
	"github.com/treeflow/treeflow/internal/ui"
)

var (
	createIssue    string
	createName     string
	createType     string
	createParent   string
	createProvider string
	createBranch   string
	createBase     string
)

var createCmd = &cobra.Command{
	Use:     "create",
	GroupID: "worktrees",
	Short:   "Create a worktree bound to an issue (or a custom one)",
	Long: `Create a git worktree and its metadata record.

With --issue the worktree name and branch derive from the issue number
(issue-7, issue/7) and descriptive fields are fetched from the tracker.
With --name a custom worktree is created without an issue binding.`,
	Example: `  wt create --issue 7
  wt create --issue DEV-123 --provider linear --type feature
  wt create --issue 42 --type subissue --parent issue-7
  wt create --name spike-cache --type custom`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wtype := types.WorktreeType(createType)
		if !wtype.IsValid() {
			return fmt.Errorf("invalid worktree type %q", createType)
		}
		if createIssue == "" && createName == "" {
			return fmt.Errorf("either --issue or --name is required")
		}

		wt, err := mgr.Create(rootCtx, types.CreateRequest{
			IssueID:        createIssue,
			Name:           createName,
			Provider:       createProvider,
			WorktreeType:   wtype,
			ParentWorktree: createParent,
			Branch:         createBranch,
			BaseBranch:     createBase,
		})
		if err != nil {
			return err
		}

		printWarnings(wt.Warnings)
		if jsonOutput {
			outputJSON(wt)
			return nil
		}
		info("%s %s", ui.ActiveStyle.Render("created"), wt.Name)
		info("  path:   %s", wt.Path)
		info("  branch: %s (from %s)", wt.Branch, wt.BaseBranch)
		if wt.Metadata != nil && wt.Metadata.Title != nil && *wt.Metadata.Title != "" {
			info("  title:  %s", *wt.Metadata.Title)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createIssue, "issue", "i", "", "Issue number or tracker identifier (\"7\", \"DEV-123\")")
	createCmd.Flags().StringVarP(&createName, "name", "n", "", "Explicit worktree name (custom worktrees)")
	createCmd.Flags().StringVarP(&createType, "type", "t", string(types.TypeIssue), "Worktree type (epic, feature, issue, subissue, custom)")
	createCmd.Flags().StringVarP(&createParent, "parent", "p", "", "Parent worktree to attach under")
	createCmd.Flags().StringVar(&createProvider, "provider", "", "Issue provider override (linear, github)")
	createCmd.Flags().StringVarP(&createBranch, "branch", "b", "", "Branch name override")
	createCmd.Flags().StringVar(&createBase, "base", "", "Base branch (default: parent branch, then current)")
	rootCmd.AddCommand(createCmd)
}
