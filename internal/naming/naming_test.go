package naming

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/treeflow/treeflow/internal/types"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "feature-42", "feature-42", false},
		{"underscores kept", "my_tree_1", "my_tree_1", false},
		{"slashes collapsed", "a/b/c", "a-b-c", false},
		{"dots collapsed", "..", "", true},
		{"traversal", "../../etc", "etc", false},
		{"leading dash trimmed", "--rm-rf", "rm-rf", false},
		{"spaces stripped", "hello world", "helloworld", false},
		{"unicode stripped", "fix-été", "fix-t", false},
		{"empty", "", "", true},
		{"only junk", "@!#$", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Sanitize(%q) = %q, want error", tt.input, got)
				}
				var ine *types.InvalidNameError
				if !errors.As(err, &ine) {
					t.Errorf("error type = %T, want *InvalidNameError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sanitize(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDerivedNames(t *testing.T) {
	if got := WorktreeName(types.TypeIssue, 7); got != "issue-7" {
		t.Errorf("WorktreeName = %q, want issue-7", got)
	}
	if got := BranchName(types.TypeFeature, 42); got != "feature/42" {
		t.Errorf("BranchName = %q, want feature/42", got)
	}
}

func TestCustomName(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	got, err := CustomName("", now)
	if err != nil {
		t.Fatalf("CustomName error: %v", err)
	}
	if got != "custom-20250314-092653" {
		t.Errorf("CustomName fallback = %q", got)
	}

	got, err = CustomName("spike/cache layer", now)
	if err != nil {
		t.Fatalf("CustomName error: %v", err)
	}
	if got != "spike-cachelayer" {
		t.Errorf("CustomName explicit = %q", got)
	}
}

func TestParseIssueNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"7", 7, false},
		{"DEV-123", 123, false},
		{"TEAM-ABC-9", 9, false},
		{"nope", 0, true},
		{"DEV-", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIssueNumber(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseIssueNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseIssueNumber(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestWorktreePath(t *testing.T) {
	root := t.TempDir()

	p, err := WorktreePath(root, "issue-7")
	if err != nil {
		t.Fatalf("WorktreePath error: %v", err)
	}
	want := filepath.Join(root, WorktreesDirName, "issue-7")
	if resolved, rerr := filepath.EvalSymlinks(root); rerr == nil {
		want = filepath.Join(resolved, WorktreesDirName, "issue-7")
	}
	if p != want {
		t.Errorf("WorktreePath = %q, want %q", p, want)
	}

	if _, err := WorktreePath(root, "../outside"); err == nil {
		t.Error("WorktreePath accepted a traversal name")
	}
	var ipe *types.InvalidPathError
	_, err = WorktreePath(root, "../../etc/passwd")
	if !errors.As(err, &ipe) {
		t.Errorf("error type = %T, want *InvalidPathError", err)
	}
}

func TestVerifyWithin(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, ".worktrees", "a")
	if err := VerifyWithin(root, inside); err != nil {
		t.Errorf("VerifyWithin(inside) = %v", err)
	}
	if err := VerifyWithin(root, filepath.Join(root, "..", "elsewhere")); err == nil {
		t.Error("VerifyWithin accepted an escaping path")
	}
}

func TestVerifyWithinSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := VerifyWithin(root, filepath.Join(link, "x")); err == nil {
		t.Error("VerifyWithin accepted a symlink escape")
	}
}
