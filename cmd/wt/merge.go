package main

import (
	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/types"
)

var mergeCmd = &cobra.Command{
	Use:     "merge <name>",
	GroupID: "worktrees",
	Short:   "Mark a worktree merged and record its commits",
	Long: `Transition a worktree to merged. The branch's commits since its base
are recorded in the metadata sidecar. Merged is terminal: the worktree
keeps its checkout but accepts no further transitions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := mgr.Transition(rootCtx, args[0], types.StatusMerged, manager.TransitionOptions{})
		if err != nil {
			return err
		}
		info("merged %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
