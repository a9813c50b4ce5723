// Package guardrail validates worktree creation requests against the
// hierarchy rules. It is a pure checker: it reads nothing from disk and
// mutates nothing, so the manager can call it before any side effects.
package guardrail

import (
	"fmt"

	"github.com/treeflow/treeflow/internal/naming"
	"github.com/treeflow/treeflow/internal/types"
)

// childTypes maps a parent worktree type to the child types considered
// well-formed beneath it. Combinations outside this table are allowed with a
// warning; the table expresses convention, not correctness.
var childTypes = map[types.WorktreeType]map[types.WorktreeType]bool{
	types.TypeEpic:    {types.TypeFeature: true},
	types.TypeFeature: {types.TypeIssue: true, types.TypeSubissue: true},
}

// Rules holds the policy knobs for a check.
type Rules struct {
	// MaxDepth is the deepest level a worktree may occupy; roots are depth 0.
	MaxDepth int
	// Enforce controls whether depth violations are hard errors. Name
	// uniqueness is always hard regardless of this flag.
	Enforce bool
}

// Candidate describes a creation attempt to be validated.
type Candidate struct {
	Name string
	Type types.WorktreeType

	// ParentType and ParentDepth describe the attachment point. For a root
	// candidate ParentDepth is -1 and ParentType is empty.
	ParentType  types.WorktreeType
	ParentDepth int

	// Existing is the set of all worktree names currently recorded,
	// regardless of status. Terminal records still occupy their name.
	Existing map[string]bool
}

// Result carries the soft-violation notes for an accepted candidate.
type Result struct {
	Warnings []string
}

// Check validates the candidate. Hard violations return a GuardrailError and
// suppress any warnings; an accepted candidate returns its warnings.
func Check(r Rules, c Candidate) (*Result, error) {
	if !naming.NamePattern.MatchString(c.Name) {
		return nil, &types.GuardrailError{Violation: &types.InvalidNameError{
			Name:   c.Name,
			Reason: "must match " + naming.NamePattern.String(),
		}}
	}

	if c.Existing[c.Name] {
		return nil, &types.GuardrailError{Violation: &types.DuplicateNameError{Name: c.Name}}
	}

	depth := c.ParentDepth + 1
	if depth > r.MaxDepth && r.Enforce {
		return nil, &types.GuardrailError{Violation: &types.DepthExceededError{
			Name:  c.Name,
			Depth: depth,
			Max:   r.MaxDepth,
		}}
	}

	res := &Result{}
	if depth > r.MaxDepth {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("depth %d exceeds maximum %d (guardrails disabled)", depth, r.MaxDepth))
	}
	if c.ParentDepth >= 0 && !compatible(c.ParentType, c.Type) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("unusual hierarchy: %s under %s", c.Type, c.ParentType))
	}
	return res, nil
}

// compatible reports whether child under parent matches the conventional
// hierarchy. Custom types are always considered compatible.
func compatible(parent, child types.WorktreeType) bool {
	if parent == types.TypeCustom || child == types.TypeCustom {
		return true
	}
	allowed, ok := childTypes[parent]
	if !ok {
		return false
	}
	return allowed[child]
}
