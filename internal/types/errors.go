package types

import (
	"errors"
	"fmt"
)

// NotFoundError reports a lookup of a worktree name that has no record.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("worktree not found: %s", e.Name)
}

// DuplicateNameError reports a creation attempt that collides with an
// existing worktree name. Name uniqueness is a correctness invariant and is
// enforced even when guardrails are disabled.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("worktree already exists: %s", e.Name)
}

// DepthExceededError reports a creation attempt that would place a worktree
// deeper than the configured hierarchy maximum.
type DepthExceededError struct {
	Name  string
	Depth int
	Max   int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("maximum hierarchy depth exceeded for %s: depth %d > max %d", e.Name, e.Depth, e.Max)
}

// InvalidPathError reports a path that failed resolution or escaped the
// repository root. Paths are never silently clamped.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// InvalidNameError reports a worktree name that failed sanitization.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid worktree name %q: %s", e.Name, e.Reason)
}

// GuardrailError is the umbrella for hard guardrail rejections. It wraps the
// specific violation so callers can unwrap to DuplicateNameError,
// DepthExceededError, or InvalidNameError via errors.As.
type GuardrailError struct {
	Violation error
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail violation: %v", e.Violation)
}

func (e *GuardrailError) Unwrap() error {
	return e.Violation
}

// TransitionError reports an illegal status transition (terminal states are
// final; there is no resurrection).
type TransitionError struct {
	Name string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition for %s: %s -> %s", e.Name, e.From, e.To)
}

// VCSError reports a failure of the underlying version-control executable.
// Materialization failure is always fatal to a creation attempt.
type VCSError struct {
	Op     string // git operation, e.g. "worktree add"
	Output string // trailing stderr from git, if any
	Err    error
}

func (e *VCSError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("git %s failed: %v: %s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

func (e *VCSError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsGuardrail returns true if err is (or wraps) a GuardrailError.
func IsGuardrail(err error) bool {
	var g *GuardrailError
	return errors.As(err, &g)
}
