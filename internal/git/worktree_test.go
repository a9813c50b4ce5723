package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// setupTestRepo creates a temporary git repository with one commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repoPath := filepath.Join(t.TempDir(), "test-repo")
	if err := os.MkdirAll(repoPath, 0o750); err != nil {
		t.Fatalf("Failed to create test repo directory: %v", err)
	}

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\nOutput: %s", args, err, output)
		}
	}

	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	readme := filepath.Join(repoPath, "README.md")
	if err := os.WriteFile(readme, []byte("test repo\n"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "Initial commit")

	return repoPath
}

func TestRunnerWorktreeLifecycle(t *testing.T) {
	repoPath := setupTestRepo(t)
	ctx := context.Background()
	r := NewRunner(repoPath)

	if !r.IsRepository(ctx) {
		t.Fatal("IsRepository = false for a fresh repo")
	}

	base, err := r.CurrentBranch(ctx)
	if err != nil || base == "" {
		t.Fatalf("CurrentBranch: %q, %v", base, err)
	}

	wtPath := filepath.Join(repoPath, ".worktrees", "issue-7")
	if err := r.CreateWorktree(ctx, wtPath, "issue/7", base); err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	if _, err := os.Stat(wtPath); err != nil {
		t.Fatalf("worktree directory missing: %v", err)
	}
	if !r.BranchExists(ctx, "issue/7") {
		t.Error("BranchExists(issue/7) = false after create")
	}

	worktrees, err := r.ListWorktrees(ctx)
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	found := false
	for _, wt := range worktrees {
		if wt.Branch == "issue/7" {
			found = true
		}
	}
	if !found {
		t.Errorf("worktree issue/7 not in list: %+v", worktrees)
	}

	// A commit on the worktree branch shows up in RecentCommits.
	change := filepath.Join(wtPath, "change.txt")
	if err := os.WriteFile(change, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{
		{"add", "."},
		{"-c", "user.email=test@example.com", "-c", "user.name=Test User", "commit", "-m", "add change"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = wtPath
		if output, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\nOutput: %s", args, err, output)
		}
	}

	commits, err := r.RecentCommits(ctx, wtPath, base, 10)
	if err != nil {
		t.Fatalf("RecentCommits: %v", err)
	}
	if len(commits) != 1 || commits[0].Message != "add change" {
		t.Errorf("commits = %+v", commits)
	}

	if err := r.RemoveWorktree(ctx, wtPath, true); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
	if _, err := os.Stat(wtPath); !os.IsNotExist(err) {
		t.Error("worktree directory still present after removal")
	}

	if err := r.DeleteBranch(ctx, "issue/7"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if r.BranchExists(ctx, "issue/7") {
		t.Error("branch survived deletion")
	}
}

func TestToplevel(t *testing.T) {
	repoPath := setupTestRepo(t)
	sub := filepath.Join(repoPath, "pkg", "deep")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatal(err)
	}

	top, err := Toplevel(context.Background(), sub)
	if err != nil {
		t.Fatalf("Toplevel: %v", err)
	}

	want, _ := filepath.EvalSymlinks(repoPath)
	got, _ := filepath.EvalSymlinks(top)
	if got != want {
		t.Errorf("Toplevel = %s, want %s", got, want)
	}
}
