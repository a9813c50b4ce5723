// Package naming derives canonical worktree and branch names from work-item
// identifiers and enforces the path policy for everything handed to the
// version-control adapter.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/treeflow/treeflow/internal/types"
)

// NamePattern is the shape every worktree name must match after
// sanitization: alphanumerics, hyphen, underscore; no leading hyphen.
var NamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

var (
	pathRunPattern = regexp.MustCompile(`[/\\.]+`)
	badCharPattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// Sanitize strips path separators and any character outside [A-Za-z0-9_-]
// from a proposed worktree name. Collisions introduced by sanitization are
// caught downstream by the uniqueness check, never resolved by suffixing.
func Sanitize(name string) (string, error) {
	s := pathRunPattern.ReplaceAllString(name, "-")
	s = badCharPattern.ReplaceAllString(s, "")
	s = strings.Trim(s, "-_")

	if s == "" {
		return "", &types.InvalidNameError{Name: name, Reason: "empty after sanitization"}
	}
	if !NamePattern.MatchString(s) {
		return "", &types.InvalidNameError{Name: name, Reason: "must match " + NamePattern.String()}
	}
	return s, nil
}

// WorktreeName derives the canonical worktree name for an issue-bound
// worktree: issue 7 with type "issue" becomes "issue-7".
func WorktreeName(t types.WorktreeType, issueNumber int) string {
	return fmt.Sprintf("%s-%d", t, issueNumber)
}

// BranchName derives the branch for an issue-bound worktree: issue 7 with
// type "issue" becomes "issue/7".
func BranchName(t types.WorktreeType, issueNumber int) string {
	return fmt.Sprintf("%s/%d", t, issueNumber)
}

// CustomName derives a name for a worktree with no issue binding. An explicit
// name is sanitized; otherwise a timestamped fallback is generated.
func CustomName(explicit string, now time.Time) (string, error) {
	if explicit != "" {
		return Sanitize(explicit)
	}
	return Sanitize("custom-" + now.Format("20060102-150405"))
}

// ParseIssueNumber extracts the numeric issue id from either a plain number
// ("7") or a tracker identifier ("DEV-123" -> 123).
func ParseIssueNumber(issueID string) (int, error) {
	if n, err := strconv.Atoi(issueID); err == nil {
		return n, nil
	}
	if idx := strings.LastIndex(issueID, "-"); idx >= 0 && idx < len(issueID)-1 {
		if n, err := strconv.Atoi(issueID[idx+1:]); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("invalid issue ID format: %q", issueID)
}
