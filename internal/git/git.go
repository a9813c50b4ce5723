// Package git shells out to the git executable for worktree and branch
// operations. All failures surface as *types.VCSError carrying the trailing
// command output, so callers can decide between rollback and reporting.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/treeflow/treeflow/internal/types"
)

// Runner executes git commands against one repository.
type Runner struct {
	// RepoRoot is the repository the commands run in.
	RepoRoot string
	// Verbose echoes each git invocation to stderr before running it.
	Verbose bool
}

// NewRunner returns a Runner for the repository at repoRoot.
func NewRunner(repoRoot string) *Runner {
	return &Runner{RepoRoot: repoRoot}
}

// run executes git with the given args in the repo root and returns combined
// output. op names the logical operation for error reporting.
func (r *Runner) run(ctx context.Context, op string, args ...string) (string, error) {
	full := append([]string{"-C", r.RepoRoot}, args...)
	if r.Verbose {
		fmt.Fprintf(os.Stderr, "+ git %s\n", shellquote.Join(full...))
	}
	cmd := exec.CommandContext(ctx, "git", full...)
	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))
	if err != nil {
		return out, &types.VCSError{Op: op, Output: tail(out), Err: err}
	}
	return out, nil
}

// tail keeps the last few lines of command output for error messages.
func tail(out string) string {
	lines := strings.Split(out, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// IsRepository reports whether RepoRoot is inside a git work tree.
func (r *Runner) IsRepository(ctx context.Context) bool {
	out, err := r.run(ctx, "rev-parse", "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Toplevel returns the repository root for the directory dir.
func Toplevel(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", &types.VCSError{Op: "rev-parse --show-toplevel", Err: err}
	}
	return strings.TrimSpace(string(output)), nil
}

// CurrentBranch returns the branch checked out in the repo root.
func (r *Runner) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse --abbrev-ref", "rev-parse", "--abbrev-ref", "HEAD")
}

// DefaultBranch returns the repository's default branch, preferring the
// origin HEAD, then main, then master.
func (r *Runner) DefaultBranch(ctx context.Context) string {
	if out, err := r.run(ctx, "symbolic-ref", "symbolic-ref", "--short", "refs/remotes/origin/HEAD"); err == nil {
		return strings.TrimPrefix(out, "origin/")
	}
	for _, b := range []string{"main", "master"} {
		if r.BranchExists(ctx, b) {
			return b
		}
	}
	return "main"
}

// BranchExists reports whether the local branch exists.
func (r *Runner) BranchExists(ctx context.Context, branch string) bool {
	_, err := r.run(ctx, "show-ref", "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// CreateWorktree materializes a new worktree at path with a new branch off
// base. The caller has already validated the path against the repository
// root.
func (r *Runner) CreateWorktree(ctx context.Context, path, branch, base string) error {
	_, err := r.run(ctx, "worktree add", "worktree", "add", "-b", branch, path, base)
	return err
}

// RemoveWorktree detaches the worktree at path. force discards uncommitted
// changes; without it git refuses to remove a dirty tree and the error is
// passed through.
func (r *Runner) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.run(ctx, "worktree remove", args...)
	return err
}

// PruneWorktrees drops stale worktree bookkeeping after directories
// disappeared outside of git.
func (r *Runner) PruneWorktrees(ctx context.Context) error {
	_, err := r.run(ctx, "worktree prune", "worktree", "prune")
	return err
}

// DeleteBranch force-deletes a local branch. Used after a worktree is
// removed without being merged.
func (r *Runner) DeleteBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "branch -D", "branch", "-D", branch)
	return err
}

// Worktree is one entry from git's worktree bookkeeping.
type Worktree struct {
	Path   string
	Head   string
	Branch string // empty when detached
}

// ListWorktrees returns git's view of the attached worktrees, parsed from
// the porcelain listing.
func (r *Runner) ListWorktrees(ctx context.Context) ([]Worktree, error) {
	out, err := r.run(ctx, "worktree list", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

// parseWorktreeList parses `git worktree list --porcelain` output. Entries
// are blank-line separated blocks of "key value" lines.
func parseWorktreeList(out string) []Worktree {
	var (
		worktrees []Worktree
		cur       *Worktree
	)
	flush := func() {
		if cur != nil && cur.Path != "" {
			worktrees = append(worktrees, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			flush()
			cur = &Worktree{Path: value}
		case "HEAD":
			if cur != nil {
				cur.Head = value
			}
		case "branch":
			if cur != nil {
				cur.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		}
	}
	flush()
	return worktrees
}

// RecentCommits returns up to limit commits unique to the worktree's branch
// relative to base, newest first.
func (r *Runner) RecentCommits(ctx context.Context, worktreePath, base string, limit int) ([]types.Commit, error) {
	args := []string{"-C", worktreePath, "log", "--pretty=format:%H%x1f%s", fmt.Sprintf("-n%d", limit)}
	if base != "" {
		args = append(args, base+"..HEAD")
	}
	if r.Verbose {
		fmt.Fprintf(os.Stderr, "+ git %s\n", shellquote.Join(args...))
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, &types.VCSError{Op: "log", Err: err}
	}

	var commits []types.Commit
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		sha, msg, ok := strings.Cut(line, "\x1f")
		if !ok || sha == "" {
			continue
		}
		commits = append(commits, types.Commit{SHA: sha, Message: msg})
	}
	return commits, nil
}
