// Package provider defines the pluggable issue-tracker abstraction. Concrete
// providers (Linear, GitHub) live in subpackages and register themselves at
// init time; the manager only sees the IssueProvider interface and the
// normalized Issue model.
package provider

import (
	"context"

	"github.com/treeflow/treeflow/internal/types"
)

// IssueProvider is the contract every tracker backend implements. All calls
// honor context cancellation and are paced by the provider's rate limiter
// before any network traffic.
type IssueProvider interface {
	// Name returns the registry name of the provider ("linear", "github").
	Name() string

	// GetIssue fetches a single issue by tracker-native identifier.
	GetIssue(ctx context.Context, id string) (*types.Issue, error)

	// ListIssues returns issues matching opts, newest first.
	ListIssues(ctx context.Context, opts ListOptions) ([]*types.Issue, error)

	// CreateIssue opens a new issue in the tracker.
	CreateIssue(ctx context.Context, draft types.IssueDraft) (*types.Issue, error)

	// UpdateIssue applies a partial update; nil fields are left untouched.
	UpdateIssue(ctx context.Context, id string, update types.IssueUpdate) (*types.Issue, error)

	// CloseIssue moves the issue to the tracker's completed state and
	// returns the updated record.
	CloseIssue(ctx context.Context, id string) (*types.Issue, error)
}

// ListOptions filters a ListIssues call. A zero value means open issues with
// the default page size.
type ListOptions struct {
	// State filters by normalized state; empty means open.
	State types.IssueState
	// Limit caps the number of issues returned; 0 uses DefaultListLimit.
	Limit int
	// Assignee filters to issues assigned to this user, when supported.
	Assignee string
	// Labels filters to issues carrying all of these labels, when supported.
	Labels []string
}

// DefaultListLimit is the page size used when ListOptions.Limit is zero.
const DefaultListLimit = 50
