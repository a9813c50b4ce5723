package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/naming"
	"github.com/treeflow/treeflow/internal/ui"
)

const envrcTemplate = `# treeflow configuration. Loaded by direnv on cd.
# export WORKTREE_DEFAULT_REPO=%s
# export WORKTREE_DEFAULT_ISSUE_PROVIDER=linear
# export WORKTREE_LINEAR_API_KEY=lin_api_...
# export WORKTREE_LINEAR_TEAM_ID=...
# export WORKTREE_GITHUB_TOKEN=ghp_...
# export WORKTREE_GITHUB_REPO=owner/name
`

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize a repository for worktree management",
	Long: `Create the worktrees directory and, if missing, an example .envrc with
the WORKTREE_* variables. Reports whether direnv is installed and which
variables are currently set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wtDir := naming.WorktreesDir(repoRoot)
		if err := os.MkdirAll(wtDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", wtDir, err)
		}
		info("worktrees directory: %s", wtDir)

		envrc := filepath.Join(repoRoot, ".envrc")
		if _, err := os.Stat(envrc); os.IsNotExist(err) {
			content := fmt.Sprintf(envrcTemplate, repoRoot)
			if err := os.WriteFile(envrc, []byte(content), 0o600); err != nil {
				return fmt.Errorf("writing .envrc: %w", err)
			}
			info("wrote example %s", envrc)
		} else {
			info(".envrc already present")
		}

		if _, err := exec.LookPath("direnv"); err == nil {
			info("direnv found; run %s to load the variables", ui.AccentStyle.Render("direnv allow"))
		} else {
			info("%s direnv not found; source .envrc manually or install direnv", ui.RenderWarn(ui.IconWarn))
		}

		var loaded []string
		for _, kv := range os.Environ() {
			if strings.HasPrefix(kv, "WORKTREE_") {
				loaded = append(loaded, strings.SplitN(kv, "=", 2)[0])
			}
		}
		if len(loaded) > 0 {
			info("loaded variables: %s", strings.Join(loaded, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
