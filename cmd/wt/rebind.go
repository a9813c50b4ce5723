package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var rebindCmd = &cobra.Command{
	Use:     "rebind <name> <kind> [ref]",
	GroupID: "worktrees",
	Short:   "Bind a worktree to an external reference",
	Long: `Set or clear a named binding on a worktree (e.g. a review URL or a
deployment ticket). Omitting the ref clears the binding.`,
	Example: `  wt rebind issue-7 review https://example.com/r/42
  wt rebind issue-7 review`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := ""
		if len(args) == 3 {
			ref = args[2]
		}
		rec, err := mgr.Rebind(rootCtx, args[0], args[1], ref)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(rec)
			return nil
		}
		if ref == "" {
			info("cleared %s binding on %s", args[1], args[0])
		} else {
			info("bound %s on %s", args[1], args[0])
		}
		return nil
	},
}

var prCmd = &cobra.Command{
	Use:     "pr <name> <number>",
	GroupID: "worktrees",
	Short:   "Record the pull request number for a worktree",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid PR number %q", args[1])
		}
		rec, err := mgr.SetPRNumber(rootCtx, args[0], n)
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(rec)
			return nil
		}
		info("recorded PR #%d on %s", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebindCmd)
	rootCmd.AddCommand(prCmd)
}
