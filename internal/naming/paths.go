package naming

import (
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/treeflow/treeflow/internal/types"
)

// WorktreesDirName is the directory under the repository root that holds all
// managed worktrees.
const WorktreesDirName = ".worktrees"

// WorktreesDir returns the container directory for managed worktrees.
func WorktreesDir(repoRoot string) string {
	return filepath.Join(repoRoot, WorktreesDirName)
}

// WorktreePath resolves the directory for a named worktree and verifies it
// cannot escape the repository root, symlinks included. Escapes are rejected
// with InvalidPathError, never clamped.
func WorktreePath(repoRoot, name string) (string, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", &types.InvalidPathError{Path: repoRoot, Reason: err.Error()}
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	p, err := securejoin.SecureJoin(root, filepath.Join(WorktreesDirName, name))
	if err != nil {
		return "", &types.InvalidPathError{Path: name, Reason: err.Error()}
	}

	// SecureJoin clamps lexical escapes to the root; a clamped result means
	// the caller tried to walk out, which we treat as an error instead.
	want := filepath.Join(root, WorktreesDirName, name)
	if p != want {
		return "", &types.InvalidPathError{Path: name, Reason: "resolves outside repository root"}
	}
	return p, nil
}

// VerifyWithin checks that path, after resolving symlinks on its existing
// prefix, lies within root.
func VerifyWithin(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return &types.InvalidPathError{Path: root, Reason: err.Error()}
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return &types.InvalidPathError{Path: path, Reason: err.Error()}
	}
	// Resolve the deepest existing ancestor so symlinked segments can't smuggle
	// the path outside the root.
	resolved := resolveExisting(absPath)

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return &types.InvalidPathError{Path: path, Reason: "resolves outside repository root"}
	}
	return nil
}

func resolveExisting(path string) string {
	suffix := ""
	for p := path; ; {
		if _, err := os.Lstat(p); err == nil {
			if r, err := filepath.EvalSymlinks(p); err == nil {
				return filepath.Join(r, suffix)
			}
			return filepath.Join(p, suffix)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path
		}
		suffix = filepath.Join(filepath.Base(p), suffix)
		p = parent
	}
}
