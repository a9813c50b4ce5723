// Package manager implements the worktree hierarchy and lifecycle logic:
// listing with live reconciliation, guarded creation, forward-only status
// transitions with cascade removal, and binding updates. It owns the ordering
// of side effects; the metadata store, git adapter, and issue providers are
// collaborators it drives.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/treeflow/treeflow/internal/config"
	"github.com/treeflow/treeflow/internal/git"
	"github.com/treeflow/treeflow/internal/guardrail"
	"github.com/treeflow/treeflow/internal/metadata"
	"github.com/treeflow/treeflow/internal/naming"
	"github.com/treeflow/treeflow/internal/provider"
	"github.com/treeflow/treeflow/internal/types"
)

// VCS is the subset of git operations the manager needs. Satisfied by
// *git.Runner; tests substitute a fake.
type VCS interface {
	CreateWorktree(ctx context.Context, path, branch, base string) error
	RemoveWorktree(ctx context.Context, path string, force bool) error
	ListWorktrees(ctx context.Context) ([]git.Worktree, error)
	PruneWorktrees(ctx context.Context) error
	CurrentBranch(ctx context.Context) (string, error)
	DefaultBranch(ctx context.Context) string
	RecentCommits(ctx context.Context, worktreePath, base string, limit int) ([]types.Commit, error)
	DeleteBranch(ctx context.Context, branch string) error
}

// ProviderFactory builds an issue provider by name. Defaults to the global
// provider registry; tests substitute fakes.
type ProviderFactory func(name string, ps config.ProviderSettings) (provider.IssueProvider, error)

// Manager coordinates all worktree operations for one repository.
type Manager struct {
	RepoRoot string
	Settings *config.Settings

	store       *metadata.Store
	vcs         VCS
	newProvider ProviderFactory
}

// Option configures a Manager.
type Option func(*Manager)

// WithVCS substitutes the git adapter.
func WithVCS(v VCS) Option {
	return func(m *Manager) { m.vcs = v }
}

// WithProviderFactory substitutes provider construction.
func WithProviderFactory(f ProviderFactory) Option {
	return func(m *Manager) { m.newProvider = f }
}

// New creates a Manager for the repository at repoRoot.
func New(repoRoot string, settings *config.Settings, opts ...Option) *Manager {
	m := &Manager{
		RepoRoot:    repoRoot,
		Settings:    settings,
		store:       metadata.NewStore(repoRoot),
		vcs:         git.NewRunner(repoRoot),
		newProvider: provider.New,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the metadata store for read-only callers (CLI info output).
func (m *Manager) Store() *metadata.Store {
	return m.store
}

// List returns all recorded worktrees, optionally filtered by type, ordered
// by name. Records whose backing filesystem worktree has disappeared are
// flagged removed on read rather than dropped, and cached child lists are
// reconstructed from parent back-references when they name unknown worktrees.
func (m *Manager) List(ctx context.Context, filterType types.WorktreeType) ([]*types.WorktreeInfo, error) {
	records, err := m.store.Scan(ctx)
	if err != nil {
		return nil, err
	}

	live := m.liveWorktrees(ctx)
	reconcileChildren(records)

	var (
		infos   []*types.WorktreeInfo
		flagged bool
	)
	for _, rec := range records {
		if filterType != "" && rec.WorktreeType != filterType {
			continue
		}

		path, err := naming.WorktreePath(m.RepoRoot, rec.Worktree)
		if err != nil {
			continue
		}
		info := &types.WorktreeInfo{
			Path:         path,
			Name:         rec.Worktree,
			Branch:       rec.Branch,
			BaseBranch:   rec.BaseBranch,
			WorktreeType: rec.WorktreeType,
			Metadata:     rec,
		}
		if warning := flagMissing(rec, path, live); warning != "" {
			info.Warnings = append(info.Warnings, warning)
			flagged = true
		}
		infos = append(infos, info)
	}

	// A missing checkout leaves stale bookkeeping behind in git; drop it so
	// the next worktree add doesn't trip over it.
	if flagged {
		_ = m.vcs.PruneWorktrees(ctx)
	}
	return infos, nil
}

// liveWorktrees returns the set of checkout paths git still knows about.
// Empty when git is unavailable, which callers treat as "unknown" rather
// than "all gone".
func (m *Manager) liveWorktrees(ctx context.Context) map[string]bool {
	live := map[string]bool{}
	if wts, err := m.vcs.ListWorktrees(ctx); err == nil {
		for _, wt := range wts {
			live[wt.Path] = true
		}
	}
	return live
}

// flagMissing marks an active record whose checkout disappeared as removed
// and returns the warning to surface, or "" when the record is intact.
func flagMissing(rec *types.WorktreeMetadata, path string, live map[string]bool) string {
	if rec.Status != types.StatusActive || len(live) == 0 || live[path] {
		return ""
	}
	rec.Status = types.StatusRemoved
	return "backing worktree no longer exists"
}

// reconcileChildren rebuilds sub_worktrees from parent back-references
// whenever a cached child list names a worktree absent from the scan. The
// parent-and-child two-file write is not transactional, so stale lists are
// expected after a crash between the writes.
func reconcileChildren(records []*types.WorktreeMetadata) {
	byName := make(map[string]*types.WorktreeMetadata, len(records))
	for _, rec := range records {
		byName[rec.Worktree] = rec
	}

	stale := func(rec *types.WorktreeMetadata) bool {
		for _, child := range rec.SubWorktrees {
			if _, ok := byName[child]; !ok {
				return true
			}
		}
		return false
	}

	var rebuild []*types.WorktreeMetadata
	for _, rec := range records {
		if stale(rec) {
			rebuild = append(rebuild, rec)
		}
	}
	if len(rebuild) == 0 {
		return
	}

	children := map[string][]string{}
	for _, rec := range records {
		if rec.HasParent() {
			p := *rec.ParentWorktree
			children[p] = append(children[p], rec.Worktree)
		}
	}
	for _, rec := range rebuild {
		rec.SubWorktrees = children[rec.Worktree]
		if rec.SubWorktrees == nil {
			rec.SubWorktrees = []string{}
		}
	}
}

// Get loads a single worktree record by name, applying the same liveness
// check as List: an active record whose checkout disappeared reads as
// removed.
func (m *Manager) Get(ctx context.Context, name string) (*types.WorktreeInfo, error) {
	rec, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	path, err := naming.WorktreePath(m.RepoRoot, name)
	if err != nil {
		return nil, err
	}
	info := &types.WorktreeInfo{
		Path:         path,
		Name:         rec.Worktree,
		Branch:       rec.Branch,
		BaseBranch:   rec.BaseBranch,
		WorktreeType: rec.WorktreeType,
		Metadata:     rec,
	}
	if warning := flagMissing(rec, path, m.liveWorktrees(ctx)); warning != "" {
		info.Warnings = append(info.Warnings, warning)
	}
	return info, nil
}

// Create materializes a new worktree and its metadata record.
//
// Order of effects: name derivation, parent validation, guardrails, VCS
// materialization, provider enrichment (soft), record write, parent child
// list update. A VCS failure aborts with nothing persisted; a record write
// failure rolls the fresh worktree back so no orphan survives.
func (m *Manager) Create(ctx context.Context, req types.CreateRequest) (*types.WorktreeInfo, error) {
	if req.WorktreeType == "" {
		req.WorktreeType = types.TypeIssue
	}
	if !req.WorktreeType.IsValid() {
		return nil, fmt.Errorf("invalid worktree type %q", req.WorktreeType)
	}
	if req.IssueID == "" && req.Name == "" {
		return nil, fmt.Errorf("either an issue ID or a name is required")
	}

	// Resolve the canonical name and branch.
	var (
		name        string
		branch      string
		issueNumber *int
	)
	if req.IssueID != "" {
		n, err := naming.ParseIssueNumber(req.IssueID)
		if err != nil {
			return nil, err
		}
		issueNumber = &n
		name = naming.WorktreeName(req.WorktreeType, n)
		branch = naming.BranchName(req.WorktreeType, n)
	} else {
		var err error
		name, err = naming.CustomName(req.Name, time.Now())
		if err != nil {
			return nil, err
		}
		branch = name
	}
	if req.Branch != "" {
		branch = req.Branch
	}

	// Resolve the attachment point and base branch.
	var (
		parentRec   *types.WorktreeMetadata
		parentDepth = -1
	)
	if req.ParentWorktree != "" {
		var err error
		parentRec, err = m.store.Load(req.ParentWorktree)
		if err != nil {
			return nil, err
		}
		if parentRec.Status != types.StatusActive {
			return nil, &types.GuardrailError{Violation: fmt.Errorf(
				"parent worktree %s is %s, not active", parentRec.Worktree, parentRec.Status)}
		}
		parentDepth, err = m.depth(parentRec)
		if err != nil {
			return nil, err
		}
	}

	baseBranch := req.BaseBranch
	if baseBranch == "" {
		if parentRec != nil {
			baseBranch = parentRec.Branch
		} else if cur, err := m.vcs.CurrentBranch(ctx); err == nil && cur != "HEAD" {
			baseBranch = cur
		} else {
			baseBranch = m.vcs.DefaultBranch(ctx)
		}
	}

	// Guardrails, against the full current name set.
	existing, err := m.store.Names(ctx)
	if err != nil {
		return nil, err
	}
	cand := guardrail.Candidate{
		Name:        name,
		Type:        req.WorktreeType,
		ParentDepth: parentDepth,
		Existing:    existing,
	}
	if parentRec != nil {
		cand.ParentType = parentRec.WorktreeType
	}
	res, err := guardrail.Check(guardrail.Rules{
		MaxDepth: m.Settings.MaxHierarchyDepth,
		Enforce:  m.Settings.EnforceGuardrails,
	}, cand)
	if err != nil {
		return nil, err
	}
	warnings := res.Warnings

	path, err := naming.WorktreePath(m.RepoRoot, name)
	if err != nil {
		return nil, err
	}

	// Materialize. Failure here is fatal and nothing has been written yet.
	if err := m.vcs.CreateWorktree(ctx, path, branch, baseBranch); err != nil {
		return nil, err
	}

	// Enrich from the tracker. Any provider failure degrades to a warning;
	// the filesystem artifact is the primary outcome of this operation.
	var (
		title        *string
		providerName *string
	)
	if req.IssueID != "" {
		pname := req.Provider
		if pname == "" {
			pname = m.Settings.DefaultIssueProvider
		}
		providerName = &pname

		issue, perr := m.fetchIssue(ctx, pname, req.IssueID)
		switch {
		case perr == nil:
			title = &issue.Title
		default:
			warnings = append(warnings, fmt.Sprintf("issue provider %s unavailable: %v", pname, perr))
		}
	}

	now := time.Now().UTC()
	rec := &types.WorktreeMetadata{
		Worktree:      name,
		WorktreeType:  req.WorktreeType,
		Branch:        branch,
		BaseBranch:    baseBranch,
		IssueNumber:   issueNumber,
		IssueProvider: providerName,
		Title:         title,
		Status:        types.StatusActive,
		CreatedAt:     now,
		Commits:       []types.Commit{},
		SubWorktrees:  []string{},
		Bindings:      map[string]string{},
	}
	if parentRec != nil {
		rec.ParentWorktree = &parentRec.Worktree
		rec.ParentBranch = &parentRec.Branch
	}

	if err := m.store.Save(rec); err != nil {
		// Roll the worktree back so a failed record write leaves nothing.
		_ = m.vcs.RemoveWorktree(ctx, path, true)
		_ = m.vcs.DeleteBranch(ctx, branch)
		return nil, err
	}

	if parentRec != nil {
		parentRec.SubWorktrees = append(parentRec.SubWorktrees, name)
		if err := m.store.Save(parentRec); err != nil {
			// The child record exists and is valid; list() reconstructs the
			// parent's child list from back-references.
			warnings = append(warnings, fmt.Sprintf("failed to update parent %s: %v", parentRec.Worktree, err))
		}
	}

	return &types.WorktreeInfo{
		Path:         path,
		Name:         name,
		Branch:       branch,
		BaseBranch:   baseBranch,
		WorktreeType: req.WorktreeType,
		Metadata:     rec,
		Warnings:     warnings,
	}, nil
}

// fetchIssue resolves the provider and fetches the issue, transparently
// retrying when the tracker reports rate limiting. Other provider errors
// propagate to the caller for soft handling.
func (m *Manager) fetchIssue(ctx context.Context, providerName, issueID string) (*types.Issue, error) {
	p, err := m.newProvider(providerName, m.Settings.Provider(providerName))
	if err != nil {
		return nil, err
	}

	var issue *types.Issue
	op := func() error {
		var gerr error
		issue, gerr = p.GetIssue(ctx, issueID)
		if gerr == nil {
			return nil
		}
		var rle *provider.RateLimitError
		if errors.As(gerr, &rle) {
			return gerr
		}
		return backoff.Permanent(gerr)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return issue, nil
}

// depth returns the hierarchy depth of an existing record, walking parent
// links; roots are depth 0. The walk is bounded to catch corrupted cycles.
func (m *Manager) depth(rec *types.WorktreeMetadata) (int, error) {
	depth := 0
	cur := rec
	for cur.HasParent() {
		depth++
		if depth > 32 {
			return 0, fmt.Errorf("parent chain for %s exceeds 32 links, metadata is corrupt", rec.Worktree)
		}
		next, err := m.store.Load(*cur.ParentWorktree)
		if err != nil {
			if types.IsNotFound(err) {
				// Dangling parent reference; treat the chain as ending here.
				return depth, nil
			}
			return 0, err
		}
		cur = next
	}
	return depth, nil
}

// TransitionOptions modifies a Transition call.
type TransitionOptions struct {
	// Cascade transitions active children recursively before the target
	// when moving to removed. Without it, active children are a violation.
	Cascade bool
	// Force passes through to git worktree remove, discarding uncommitted
	// changes.
	Force bool
}

// Transition moves a worktree to a terminal status. Merged keeps the record
// and stores the branch's commits; removed tears down the worktree
// directory, its record, and its entry in the parent's child list. Cascade
// removal visits children post-order so no child ever outlives its parent's
// removal.
func (m *Manager) Transition(ctx context.Context, name string, next types.Status, opts TransitionOptions) error {
	rec, err := m.store.Load(name)
	if err != nil {
		return err
	}
	if !rec.Status.CanTransitionTo(next) {
		return &types.TransitionError{Name: name, From: rec.Status, To: next}
	}

	switch next {
	case types.StatusMerged:
		return m.markMerged(ctx, rec)
	case types.StatusRemoved:
		return m.remove(ctx, rec, opts)
	default:
		return &types.TransitionError{Name: name, From: rec.Status, To: next}
	}
}

func (m *Manager) markMerged(ctx context.Context, rec *types.WorktreeMetadata) error {
	path, err := naming.WorktreePath(m.RepoRoot, rec.Worktree)
	if err != nil {
		return err
	}
	if commits, err := m.vcs.RecentCommits(ctx, path, rec.BaseBranch, 100); err == nil {
		rec.Commits = commits
	}
	rec.Status = types.StatusMerged
	return m.store.Save(rec)
}

func (m *Manager) remove(ctx context.Context, rec *types.WorktreeMetadata, opts TransitionOptions) error {
	children, err := m.activeChildren(ctx, rec.Worktree)
	if err != nil {
		return err
	}
	if len(children) > 0 && !opts.Cascade {
		return &types.GuardrailError{Violation: fmt.Errorf(
			"worktree %s has %d active children, pass cascade to remove them", rec.Worktree, len(children))}
	}

	// Post-order: children go first so a failure partway never leaves a
	// child whose parent is already gone.
	for _, child := range children {
		if err := m.remove(ctx, child, opts); err != nil {
			return err
		}
	}

	path, err := naming.WorktreePath(m.RepoRoot, rec.Worktree)
	if err != nil {
		return err
	}
	if err := m.vcs.RemoveWorktree(ctx, path, opts.Force); err != nil {
		return err
	}
	if err := m.store.Delete(rec.Worktree); err != nil {
		return err
	}

	if rec.HasParent() {
		if parent, err := m.store.Load(*rec.ParentWorktree); err == nil {
			parent.SubWorktrees = withoutName(parent.SubWorktrees, rec.Worktree)
			_ = m.store.Save(parent)
		}
	}
	return nil
}

// activeChildren returns the active records whose parent is name.
func (m *Manager) activeChildren(ctx context.Context, name string) ([]*types.WorktreeMetadata, error) {
	records, err := m.store.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var children []*types.WorktreeMetadata
	for _, rec := range records {
		if rec.HasParent() && *rec.ParentWorktree == name && rec.Status == types.StatusActive {
			children = append(children, rec)
		}
	}
	return children, nil
}

func withoutName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// Rebind sets a binding on a worktree record: an opaque reference keyed by
// binding kind, with no lifecycle effect.
func (m *Manager) Rebind(ctx context.Context, name, kind, ref string) (*types.WorktreeMetadata, error) {
	rec, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	if rec.Bindings == nil {
		rec.Bindings = map[string]string{}
	}
	if ref == "" {
		delete(rec.Bindings, kind)
	} else {
		rec.Bindings[kind] = ref
	}
	if err := m.store.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SetPRNumber records the pull request opened from a worktree's branch. It
// is descriptive only; status stays wherever the lifecycle put it.
func (m *Manager) SetPRNumber(ctx context.Context, name string, pr int) (*types.WorktreeMetadata, error) {
	rec, err := m.store.Load(name)
	if err != nil {
		return nil, err
	}
	rec.PRNumber = &pr
	if err := m.store.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
