package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/treeflow/treeflow/internal/config"
	"github.com/treeflow/treeflow/internal/git"
	"github.com/treeflow/treeflow/internal/provider"
	"github.com/treeflow/treeflow/internal/types"
)

// fakeVCS materializes worktrees as plain directories and records calls.
type fakeVCS struct {
	created    []string
	removed    []string
	failCreate error
	commits    []types.Commit
	pruned     int
}

func (f *fakeVCS) CreateWorktree(ctx context.Context, path, branch, base string) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	f.created = append(f.created, path)
	return nil
}

func (f *fakeVCS) RemoveWorktree(ctx context.Context, path string, force bool) error {
	f.removed = append(f.removed, path)
	return os.RemoveAll(path)
}

func (f *fakeVCS) ListWorktrees(ctx context.Context) ([]git.Worktree, error) {
	var wts []git.Worktree
	for _, p := range f.created {
		if _, err := os.Stat(p); err == nil {
			wts = append(wts, git.Worktree{Path: p})
		}
	}
	return wts, nil
}

func (f *fakeVCS) PruneWorktrees(ctx context.Context) error {
	f.pruned++
	return nil
}

func (f *fakeVCS) CurrentBranch(ctx context.Context) (string, error) { return "main", nil }
func (f *fakeVCS) DefaultBranch(ctx context.Context) string          { return "main" }
func (f *fakeVCS) DeleteBranch(ctx context.Context, branch string) error {
	return nil
}

func (f *fakeVCS) RecentCommits(ctx context.Context, path, base string, limit int) ([]types.Commit, error) {
	return f.commits, nil
}

// fakeProvider returns a fixed issue or error.
type fakeProvider struct {
	issue *types.Issue
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	return f.issue, f.err
}

func (f *fakeProvider) ListIssues(ctx context.Context, opts provider.ListOptions) ([]*types.Issue, error) {
	return nil, f.err
}

func (f *fakeProvider) CreateIssue(ctx context.Context, d types.IssueDraft) (*types.Issue, error) {
	return f.issue, f.err
}

func (f *fakeProvider) UpdateIssue(ctx context.Context, id string, u types.IssueUpdate) (*types.Issue, error) {
	return f.issue, f.err
}
func (f *fakeProvider) CloseIssue(ctx context.Context, id string) (*types.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.issue, nil
}

func testSettings() *config.Settings {
	return &config.Settings{
		DefaultIssueProvider: "fake",
		MaxHierarchyDepth:    3,
		EnforceGuardrails:    true,
		Providers:            map[string]config.ProviderSettings{},
	}
}

func newTestManager(t *testing.T, fp *fakeProvider) (*Manager, *fakeVCS) {
	t.Helper()
	root := t.TempDir()
	vcs := &fakeVCS{}
	factory := func(name string, ps config.ProviderSettings) (provider.IssueProvider, error) {
		if fp == nil {
			return nil, fmt.Errorf("no provider configured")
		}
		return fp, nil
	}
	m := New(root, testSettings(), WithVCS(vcs), WithProviderFactory(factory))
	return m, vcs
}

func TestCreateFromIssue(t *testing.T) {
	fp := &fakeProvider{issue: &types.Issue{Number: 7, Title: "Fix the cache", State: types.IssueOpen}}
	m, vcs := newTestManager(t, fp)

	info, err := m.Create(context.Background(), types.CreateRequest{
		IssueID:      "7",
		WorktreeType: types.TypeIssue,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.Name != "issue-7" || info.Branch != "issue/7" {
		t.Errorf("derived name/branch = %s / %s", info.Name, info.Branch)
	}
	if info.BaseBranch != "main" {
		t.Errorf("base branch = %s", info.BaseBranch)
	}
	if info.Metadata.Title == nil || *info.Metadata.Title != "Fix the cache" {
		t.Errorf("title = %v", info.Metadata.Title)
	}
	if info.Metadata.IssueNumber == nil || *info.Metadata.IssueNumber != 7 {
		t.Errorf("issue number = %v", info.Metadata.IssueNumber)
	}
	if len(info.Warnings) != 0 {
		t.Errorf("warnings = %v", info.Warnings)
	}
	if len(vcs.created) != 1 {
		t.Errorf("created %d worktrees", len(vcs.created))
	}

	// The record is persisted and loadable.
	if _, err := m.Get(context.Background(), "issue-7"); err != nil {
		t.Errorf("Get after create: %v", err)
	}
}

func TestCreateProviderFailureIsSoft(t *testing.T) {
	fp := &fakeProvider{err: &provider.TransportError{Provider: "fake", Err: errors.New("connection refused")}}
	m, _ := newTestManager(t, fp)

	info, err := m.Create(context.Background(), types.CreateRequest{
		IssueID:      "7",
		WorktreeType: types.TypeIssue,
	})
	if err != nil {
		t.Fatalf("Create should survive provider failure, got %v", err)
	}
	if info.Metadata.Title != nil {
		t.Errorf("title = %v, want nil after provider failure", info.Metadata.Title)
	}
	if len(info.Warnings) == 0 {
		t.Error("expected a warning about the unavailable provider")
	}
}

func TestCreateDuplicateName(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})

	req := types.CreateRequest{IssueID: "7", WorktreeType: types.TypeIssue}
	if _, err := m.Create(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	_, err := m.Create(context.Background(), req)
	var dup *types.DuplicateNameError
	if !errors.As(err, &dup) {
		t.Errorf("second create error = %v, want DuplicateNameError", err)
	}
}

func TestCreateVCSFailureLeavesNoRecord(t *testing.T) {
	m, vcs := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	vcs.failCreate = &types.VCSError{Op: "worktree add", Output: "fatal: already exists", Err: errors.New("exit 128")}

	_, err := m.Create(context.Background(), types.CreateRequest{
		IssueID:      "7",
		WorktreeType: types.TypeIssue,
	})
	var ve *types.VCSError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want VCSError", err)
	}
	if _, err := m.Get(context.Background(), "issue-7"); !types.IsNotFound(err) {
		t.Errorf("a record survived the failed materialization: %v", err)
	}
}

func TestCreateHierarchyChainToDepthLimit(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	steps := []struct {
		issueID string
		wtype   types.WorktreeType
		parent  string
		name    string
	}{
		{"1", types.TypeEpic, "", "epic-1"},
		{"2", types.TypeFeature, "epic-1", "feature-2"},
		{"3", types.TypeIssue, "feature-2", "issue-3"},
		{"4", types.TypeSubissue, "issue-3", "subissue-4"},
	}
	for _, s := range steps {
		info, err := m.Create(ctx, types.CreateRequest{
			IssueID:        s.issueID,
			WorktreeType:   s.wtype,
			ParentWorktree: s.parent,
		})
		if err != nil {
			t.Fatalf("create %s: %v", s.name, err)
		}
		if info.Name != s.name {
			t.Fatalf("name = %s, want %s", info.Name, s.name)
		}
	}

	// subissue-4 sits at depth 3, the default maximum. One level deeper is
	// rejected.
	_, err := m.Create(ctx, types.CreateRequest{
		IssueID:        "5",
		WorktreeType:   types.TypeSubissue,
		ParentWorktree: "subissue-4",
	})
	var de *types.DepthExceededError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DepthExceededError", err)
	}

	// Parent chains are recorded all the way up.
	rec, err := m.Store().Load("subissue-4")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ParentWorktree == nil || *rec.ParentWorktree != "issue-3" {
		t.Errorf("parent = %v", rec.ParentWorktree)
	}
}

func TestCreateUpdatesParentChildList(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{IssueID: "1", WorktreeType: types.TypeEpic}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(ctx, types.CreateRequest{
		IssueID: "2", WorktreeType: types.TypeFeature, ParentWorktree: "epic-1",
	}); err != nil {
		t.Fatal(err)
	}

	parent, err := m.Store().Load("epic-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(parent.SubWorktrees) != 1 || parent.SubWorktrees[0] != "feature-2" {
		t.Errorf("sub_worktrees = %v", parent.SubWorktrees)
	}

	child, _ := m.Store().Load("feature-2")
	if child.BaseBranch != "epic/1" {
		t.Errorf("child base branch = %s, want parent's branch", child.BaseBranch)
	}
}

func TestCreateRejectsInactiveParent(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{IssueID: "1", WorktreeType: types.TypeEpic}); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(ctx, "epic-1", types.StatusMerged, TransitionOptions{}); err != nil {
		t.Fatal(err)
	}

	_, err := m.Create(ctx, types.CreateRequest{
		IssueID: "2", WorktreeType: types.TypeFeature, ParentWorktree: "epic-1",
	})
	if !types.IsGuardrail(err) {
		t.Errorf("error = %v, want guardrail violation for inactive parent", err)
	}
}

func TestCreateCustomName(t *testing.T) {
	m, _ := newTestManager(t, nil)

	info, err := m.Create(context.Background(), types.CreateRequest{
		Name:         "spike-cache",
		WorktreeType: types.TypeCustom,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.Name != "spike-cache" || info.Branch != "spike-cache" {
		t.Errorf("name/branch = %s / %s", info.Name, info.Branch)
	}
	if info.Metadata.IssueNumber != nil {
		t.Errorf("issue number = %v for custom worktree", info.Metadata.IssueNumber)
	}
}

func TestTransitionMergedStoresCommits(t *testing.T) {
	m, vcs := newTestManager(t, nil)
	vcs.commits = []types.Commit{{SHA: "abc123", Message: "fix it"}}
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom}); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(ctx, "spike", types.StatusMerged, TransitionOptions{}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	rec, err := m.Store().Load("spike")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != types.StatusMerged {
		t.Errorf("status = %s", rec.Status)
	}
	if len(rec.Commits) != 1 || rec.Commits[0].SHA != "abc123" {
		t.Errorf("commits = %v", rec.Commits)
	}
}

func TestTransitionForwardOnly(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom}); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(ctx, "spike", types.StatusMerged, TransitionOptions{}); err != nil {
		t.Fatal(err)
	}

	err := m.Transition(ctx, "spike", types.StatusRemoved, TransitionOptions{})
	var te *types.TransitionError
	if !errors.As(err, &te) {
		t.Errorf("merged -> removed = %v, want TransitionError", err)
	}

	err = m.Transition(ctx, "spike", types.StatusActive, TransitionOptions{})
	if !errors.As(err, &te) {
		t.Errorf("merged -> active = %v, want TransitionError", err)
	}
}

func TestRemoveWithActiveChildrenNeedsCascade(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	m.Create(ctx, types.CreateRequest{IssueID: "1", WorktreeType: types.TypeEpic})
	m.Create(ctx, types.CreateRequest{IssueID: "2", WorktreeType: types.TypeFeature, ParentWorktree: "epic-1"})

	err := m.Transition(ctx, "epic-1", types.StatusRemoved, TransitionOptions{})
	if !types.IsGuardrail(err) {
		t.Errorf("remove with active children = %v, want guardrail violation", err)
	}
}

func TestCascadeRemovalPostOrder(t *testing.T) {
	m, vcs := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	m.Create(ctx, types.CreateRequest{IssueID: "1", WorktreeType: types.TypeEpic})
	m.Create(ctx, types.CreateRequest{IssueID: "2", WorktreeType: types.TypeFeature, ParentWorktree: "epic-1"})
	m.Create(ctx, types.CreateRequest{IssueID: "3", WorktreeType: types.TypeIssue, ParentWorktree: "feature-2"})

	err := m.Transition(ctx, "epic-1", types.StatusRemoved, TransitionOptions{Cascade: true, Force: true})
	if err != nil {
		t.Fatalf("cascade removal: %v", err)
	}

	// Post-order: grandchild, child, parent.
	if len(vcs.removed) != 3 {
		t.Fatalf("removed %d worktrees: %v", len(vcs.removed), vcs.removed)
	}
	wantOrder := []string{"issue-3", "feature-2", "epic-1"}
	for i, want := range wantOrder {
		if got := vcs.removed[i]; !containsName(got, want) {
			t.Errorf("removal %d = %s, want %s", i, got, want)
		}
	}

	for _, name := range wantOrder {
		if _, err := m.Get(ctx, name); !types.IsNotFound(err) {
			t.Errorf("record %s survived cascade removal", name)
		}
	}
}

func TestListFlagsMissingWorktrees(t *testing.T) {
	m, vcs := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom}); err != nil {
		t.Fatal(err)
	}

	// The sidecar record stays but git no longer reports the worktree; only
	// the repo root remains in the live set.
	vcs.created = []string{m.RepoRoot}

	infos, err := m.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d worktrees", len(infos))
	}
	if infos[0].Metadata.Status != types.StatusRemoved {
		t.Errorf("status = %s, want removed flag for missing backing worktree", infos[0].Metadata.Status)
	}
	if len(infos[0].Warnings) == 0 {
		t.Error("expected a reconciliation warning")
	}
	if vcs.pruned == 0 {
		t.Error("expected stale bookkeeping to be pruned after flagging")
	}
}

func TestListSkipsPruneWhenIntact(t *testing.T) {
	m, vcs := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.List(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if vcs.pruned != 0 {
		t.Errorf("pruned %d times with all checkouts intact", vcs.pruned)
	}
}

func TestGetFlagsMissingWorktree(t *testing.T) {
	m, vcs := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom}); err != nil {
		t.Fatal(err)
	}
	vcs.created = []string{m.RepoRoot}

	info, err := m.Get(ctx, "spike")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.Metadata.Status != types.StatusRemoved {
		t.Errorf("status = %s, want removed flag for missing backing worktree", info.Metadata.Status)
	}
	if len(info.Warnings) == 0 {
		t.Error("expected a reconciliation warning")
	}
}

func TestListFilterByType(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	m.Create(ctx, types.CreateRequest{IssueID: "1", WorktreeType: types.TypeEpic})
	m.Create(ctx, types.CreateRequest{IssueID: "2", WorktreeType: types.TypeFeature, ParentWorktree: "epic-1"})

	infos, err := m.List(ctx, types.TypeFeature)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name != "feature-2" {
		t.Errorf("filtered list = %v", infos)
	}
}

func TestListReconstructsStaleChildLists(t *testing.T) {
	m, _ := newTestManager(t, &fakeProvider{issue: &types.Issue{Title: "t"}})
	ctx := context.Background()

	m.Create(ctx, types.CreateRequest{IssueID: "1", WorktreeType: types.TypeEpic})
	m.Create(ctx, types.CreateRequest{IssueID: "2", WorktreeType: types.TypeFeature, ParentWorktree: "epic-1"})

	// Corrupt the cached child list with a name no scan will find.
	parent, _ := m.Store().Load("epic-1")
	parent.SubWorktrees = []string{"feature-2", "ghost-99"}
	if err := m.Store().Save(parent); err != nil {
		t.Fatal(err)
	}

	infos, err := m.List(ctx, types.TypeEpic)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatal("missing epic")
	}
	got := infos[0].Metadata.SubWorktrees
	if len(got) != 1 || got[0] != "feature-2" {
		t.Errorf("reconstructed sub_worktrees = %v", got)
	}
}

func TestRebind(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom})

	rec, err := m.Rebind(ctx, "spike", "research_thread", "thread-42")
	if err != nil {
		t.Fatalf("Rebind: %v", err)
	}
	if rec.Bindings["research_thread"] != "thread-42" {
		t.Errorf("bindings = %v", rec.Bindings)
	}

	// Clearing a binding removes the key.
	rec, err = m.Rebind(ctx, "spike", "research_thread", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Bindings["research_thread"]; ok {
		t.Errorf("binding not cleared: %v", rec.Bindings)
	}

	if _, err := m.Rebind(ctx, "nope", "k", "v"); !types.IsNotFound(err) {
		t.Errorf("rebind unknown = %v", err)
	}
}

func TestSetPRNumber(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	m.Create(ctx, types.CreateRequest{Name: "spike", WorktreeType: types.TypeCustom})
	rec, err := m.SetPRNumber(ctx, "spike", 314)
	if err != nil {
		t.Fatal(err)
	}
	if rec.PRNumber == nil || *rec.PRNumber != 314 {
		t.Errorf("pr_number = %v", rec.PRNumber)
	}
	if rec.Status != types.StatusActive {
		t.Errorf("status changed to %s by PR recording", rec.Status)
	}
}

func containsName(path, name string) bool {
	return len(path) >= len(name) && path[len(path)-len(name):] == name
}
