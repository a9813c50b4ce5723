// Package types defines core data structures for the treeflow worktree manager.
package types

import (
	"time"
)

// WorktreeType classifies a worktree's place in the work-item hierarchy.
type WorktreeType string

const (
	TypeEpic     WorktreeType = "epic"
	TypeFeature  WorktreeType = "feature"
	TypeIssue    WorktreeType = "issue"
	TypeSubissue WorktreeType = "subissue"
	TypeCustom   WorktreeType = "custom"
)

// IsValid returns true if the worktree type is one of the known values.
func (t WorktreeType) IsValid() bool {
	switch t {
	case TypeEpic, TypeFeature, TypeIssue, TypeSubissue, TypeCustom:
		return true
	}
	return false
}

// Status is the lifecycle state of a worktree.
// Transitions only move forward: active -> merged, active -> removed.
type Status string

const (
	StatusActive  Status = "active"
	StatusMerged  Status = "merged"
	StatusRemoved Status = "removed"
)

// IsValid returns true if the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusMerged, StatusRemoved:
		return true
	}
	return false
}

// IsTerminal returns true for states that permit no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusMerged || s == StatusRemoved
}

// CanTransitionTo reports whether a forward transition from s to next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusActive && next.IsTerminal()
}

// Commit is one entry of a worktree's recorded commit history.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

// WorktreeMetadata is the sidecar record stored as .task-metadata.json inside
// each worktree directory. Optional fields are pointers without omitempty so
// absence serializes as an explicit null: partial updates round-trip stably.
type WorktreeMetadata struct {
	Worktree     string       `json:"worktree"`
	WorktreeType WorktreeType `json:"worktree_type"`
	Branch       string       `json:"branch"`
	BaseBranch   string       `json:"base_branch"`

	ParentWorktree *string `json:"parent_worktree"`
	ParentBranch   *string `json:"parent_branch"`

	IssueNumber   *int    `json:"issue_number"`
	IssueProvider *string `json:"issue_provider"`
	Title         *string `json:"title"`

	PRNumber *int   `json:"pr_number"`
	Status   Status `json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`

	Commits      []Commit          `json:"commits"`
	SubWorktrees []string          `json:"sub_worktrees"`
	Bindings     map[string]string `json:"bindings"`
}

// HasParent returns true if the record carries a parent back-reference.
func (m *WorktreeMetadata) HasParent() bool {
	return m.ParentWorktree != nil && *m.ParentWorktree != ""
}

// WorktreeInfo pairs a live worktree with its metadata record.
// Metadata may be nil for worktrees created outside treeflow.
type WorktreeInfo struct {
	Path         string            `json:"path"`
	Name         string            `json:"name"`
	Branch       string            `json:"branch"`
	BaseBranch   string            `json:"base_branch"`
	WorktreeType WorktreeType      `json:"worktree_type"`
	Metadata     *WorktreeMetadata `json:"metadata"`
	// Warnings collects soft-failure notes from creation (e.g. the issue
	// provider was unreachable and descriptive fields are empty).
	Warnings []string `json:"warnings,omitempty"`
}

// CreateRequest is a worktree creation request. Either IssueID or Name must be
// set: an issue-bound worktree derives its name from (type, issue number), a
// custom worktree uses the sanitized supplied name.
type CreateRequest struct {
	IssueID        string       `json:"issue_id,omitempty"`
	Name           string       `json:"name,omitempty"`
	Provider       string       `json:"provider,omitempty"`
	WorktreeType   WorktreeType `json:"worktree_type"`
	ParentWorktree string       `json:"parent_worktree,omitempty"`
	Branch         string       `json:"branch,omitempty"`
	BaseBranch     string       `json:"base_branch,omitempty"`
}

// IssueState is the normalized issue state vocabulary. Tracker-native state
// names are preserved separately under Issue.Metadata.
type IssueState string

const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// Issue is the provider-neutral issue model. It is used transiently to seed
// or refresh a worktree's descriptive fields and is never persisted on its own.
type Issue struct {
	ID        string                 `json:"id"`
	Number    int                    `json:"number"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body,omitempty"`
	State     IssueState             `json:"state"`
	Labels    []string               `json:"labels,omitempty"`
	Assignees []string               `json:"assignees,omitempty"`
	URL       string                 `json:"url"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IssueDraft carries the fields for creating a new issue in a tracker.
type IssueDraft struct {
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// IssueUpdate carries partial fields for updating an existing issue.
// Nil fields are left unchanged.
type IssueUpdate struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}
