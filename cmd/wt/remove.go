package main

import (
	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/types"
)

var (
	removeCascade bool
	removeForce   bool
)

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	GroupID: "worktrees",
	Short:   "Remove a worktree and its metadata",
	Long: `Remove a worktree, delete its checkout and metadata record, and detach
it from its parent. A worktree with active children is refused unless
--cascade removes the whole subtree, children first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := mgr.Transition(rootCtx, args[0], types.StatusRemoved, manager.TransitionOptions{
			Cascade: removeCascade,
			Force:   removeForce,
		})
		if err != nil {
			return err
		}
		info("removed %s", args[0])
		return nil
	},
}

func init() {
	removeCmd.Flags().BoolVar(&removeCascade, "cascade", false, "Remove active children first, depth-first")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Force removal even with uncommitted changes")
	rootCmd.AddCommand(removeCmd)
}
