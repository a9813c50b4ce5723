package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/ui"
)

var infoCmd = &cobra.Command{
	Use:     "info <name>",
	Aliases: []string{"show"},
	GroupID: "worktrees",
	Short:   "Show a worktree's metadata",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wt, err := mgr.Get(rootCtx, args[0])
		if err != nil {
			return err
		}
		printWarnings(wt.Warnings)

		if jsonOutput {
			outputJSON(wt)
			return nil
		}

		fmt.Println(ui.RenderHeader(wt.Name))
		fmt.Printf("  type:    %s\n", wt.WorktreeType)
		fmt.Printf("  path:    %s\n", wt.Path)
		fmt.Printf("  branch:  %s (from %s)\n", wt.Branch, wt.BaseBranch)

		m := wt.Metadata
		if m == nil {
			return nil
		}
		fmt.Printf("  status:  %s\n", ui.RenderStatus(string(m.Status)))
		if m.HasParent() {
			fmt.Printf("  parent:  %s\n", *m.ParentWorktree)
		}
		if m.IssueNumber != nil {
			issue := fmt.Sprintf("#%d", *m.IssueNumber)
			if m.IssueProvider != nil {
				issue += " (" + *m.IssueProvider + ")"
			}
			fmt.Printf("  issue:   %s\n", issue)
		}
		if m.Title != nil && *m.Title != "" {
			fmt.Printf("  title:   %s\n", *m.Title)
		}
		if m.PRNumber != nil {
			fmt.Printf("  pr:      #%d\n", *m.PRNumber)
		}
		fmt.Printf("  created: %s\n", m.CreatedAt.Format("2006-01-02 15:04"))
		if len(m.SubWorktrees) > 0 {
			fmt.Printf("  children: %s\n", strings.Join(m.SubWorktrees, ", "))
		}
		if len(m.Bindings) > 0 {
			fmt.Println("  bindings:")
			for kind, ref := range m.Bindings {
				fmt.Printf("    %s: %s\n", kind, ref)
			}
		}
		if len(m.Commits) > 0 {
			fmt.Printf("  commits: %d recorded\n", len(m.Commits))
			for i, c := range m.Commits {
				if i == 5 {
					fmt.Println("    " + ui.RenderMuted("..."))
					break
				}
				sha := c.SHA
				if len(sha) > 8 {
					sha = sha[:8]
				}
				fmt.Printf("    %s %s\n", ui.RenderMuted(sha), c.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
