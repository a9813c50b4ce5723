// Command wt manages hierarchical git worktrees bound to tracked issues.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/config"
	"github.com/treeflow/treeflow/internal/git"
	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/ui"

	// Provider registration.
	_ "github.com/treeflow/treeflow/internal/provider/github"
	_ "github.com/treeflow/treeflow/internal/provider/linear"
)

var (
	repoFlag    string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	settings *config.Settings
	repoRoot string
	mgr      *manager.Manager

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

// noRepoCommands run without a repository or manager.
var noRepoCommands = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository path (default: WORKTREE_DEFAULT_REPO, then the enclosing git repo)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Echo git commands as they run")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(
		&cobra.Group{ID: "worktrees", Title: "Working With Worktrees:"},
		&cobra.Group{ID: "issues", Title: "Issue Trackers:"},
		&cobra.Group{ID: "serve", Title: "Servers & Integrations:"},
		&cobra.Group{ID: "setup", Title: "Setup & Configuration:"},
	)
}

var rootCmd = &cobra.Command{
	Use:   "wt",
	Short: "wt - Hierarchical git worktree manager",
	Long: `Manage a tree of git worktrees bound to tracked issues.

Worktrees nest epic -> feature -> issue/subissue, carry sidecar metadata
alongside their checkouts, and can be enriched from Linear or GitHub.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("wt version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init()
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		if noRepoCommands[cmd.Name()] {
			return nil
		}

		var err error
		settings, err = config.Load(configDir())
		if err != nil {
			return err
		}

		// Tracker commands need credentials but no repository.
		if underIssues(cmd) {
			return nil
		}

		repoRoot, err = resolveRepo(rootCtx)
		if err != nil {
			return err
		}
		config.LoadLocalConfig(repoRoot).Apply(settings)

		mgr = manager.New(repoRoot, settings,
			manager.WithVCS(&git.Runner{RepoRoot: repoRoot, Verbose: verboseFlag}))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rootCancel != nil {
			rootCancel()
		}
	},
}

// underIssues reports whether cmd is the issues command or one of its
// subcommands.
func underIssues(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "issues" {
			return true
		}
	}
	return false
}

// configDir returns the directory holding config.yaml and providers.toml.
// WORKTREE_CONFIG_DIR overrides the platform default.
func configDir() string {
	if dir := os.Getenv("WORKTREE_CONFIG_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "treeflow")
}

// resolveRepo picks the repository root: --repo flag, then the configured
// default, then the git toplevel of the working directory.
func resolveRepo(ctx context.Context) (string, error) {
	if repoFlag != "" {
		return repoFlag, nil
	}
	if settings.DefaultRepo != "" {
		return settings.DefaultRepo, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	top, err := git.Toplevel(ctx, cwd)
	if err != nil {
		return "", fmt.Errorf("not inside a git repository (use --repo or WORKTREE_DEFAULT_REPO): %w", err)
	}
	return top, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("error:"), err)
		os.Exit(exitCode(err))
	}
}
