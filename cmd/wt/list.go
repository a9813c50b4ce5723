package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/types"
	"github.com/treeflow/treeflow/internal/ui"
)

var (
	listType   string
	listStatus string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	GroupID: "worktrees",
	Short:   "List managed worktrees as a hierarchy",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.WorktreeType(listType)
		if filter != "" && !filter.IsValid() {
			return fmt.Errorf("invalid worktree type %q", listType)
		}
		status := types.Status(listStatus)
		if status != "" && !status.IsValid() {
			return fmt.Errorf("invalid status %q", listStatus)
		}

		infos, err := mgr.List(rootCtx, filter)
		if err != nil {
			return err
		}
		if status != "" {
			kept := infos[:0]
			for _, wt := range infos {
				if wt.Metadata != nil && wt.Metadata.Status == status {
					kept = append(kept, wt)
				}
			}
			infos = kept
		}

		if jsonOutput {
			if infos == nil {
				infos = []*types.WorktreeInfo{}
			}
			outputJSON(infos)
			return nil
		}
		if len(infos) == 0 {
			info("no managed worktrees")
			return nil
		}
		printTree(infos)
		for _, wt := range infos {
			printWarnings(wt.Warnings)
		}
		return nil
	},
}

// printTree renders the worktree forest. Children hang off their parent;
// records whose parent is unknown (or filtered out) print as roots.
func printTree(infos []*types.WorktreeInfo) {
	byName := make(map[string]*types.WorktreeInfo, len(infos))
	for _, wt := range infos {
		byName[wt.Name] = wt
	}

	var roots []*types.WorktreeInfo
	children := make(map[string][]*types.WorktreeInfo)
	for _, wt := range infos {
		if wt.Metadata != nil && wt.Metadata.HasParent() {
			parent := *wt.Metadata.ParentWorktree
			if _, ok := byName[parent]; ok {
				children[parent] = append(children[parent], wt)
				continue
			}
		}
		roots = append(roots, wt)
	}

	for _, root := range roots {
		fmt.Println(renderLine(root))
		printChildren(children, root.Name, "")
	}
}

func printChildren(children map[string][]*types.WorktreeInfo, parent, prefix string) {
	kids := children[parent]
	for i, wt := range kids {
		connector, childPrefix := ui.TreeBranch, prefix+ui.TreePipe
		if i == len(kids)-1 {
			connector, childPrefix = ui.TreeLast, prefix+ui.TreeIndent
		}
		fmt.Println(prefix + connector + renderLine(wt))
		printChildren(children, wt.Name, childPrefix)
	}
}

func renderLine(wt *types.WorktreeInfo) string {
	line := fmt.Sprintf("%s %s", wt.Name, ui.RenderMuted("["+string(wt.WorktreeType)+"]"))
	if wt.Metadata != nil {
		line += " " + ui.RenderStatus(string(wt.Metadata.Status))
		if wt.Metadata.IssueNumber != nil {
			line += " " + ui.AccentStyle.Render(fmt.Sprintf("#%d", *wt.Metadata.IssueNumber))
		}
		if wt.Metadata.Title != nil && *wt.Metadata.Title != "" {
			line += " " + ui.RenderMuted(*wt.Metadata.Title)
		}
	}
	return line
}

func init() {
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "Filter by type (epic, feature, issue, subissue, custom)")
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status (active, merged, removed)")
	rootCmd.AddCommand(listCmd)
}
