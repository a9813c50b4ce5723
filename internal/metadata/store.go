// Package metadata persists the per-worktree sidecar records. Each managed
// worktree directory holds exactly one .task-metadata.json; there is no
// central index, so the store is a thin layer over the filesystem and the
// directory scan is the source of truth for "what exists".
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/treeflow/treeflow/internal/naming"
	"github.com/treeflow/treeflow/internal/types"
)

// FileName is the sidecar file stored inside each worktree directory.
const FileName = ".task-metadata.json"

// Store reads and writes sidecar records under a repository's worktrees
// directory.
type Store struct {
	// RepoRoot is the repository the worktrees belong to.
	RepoRoot string
}

// NewStore returns a Store rooted at repoRoot.
func NewStore(repoRoot string) *Store {
	return &Store{RepoRoot: repoRoot}
}

// Path returns the sidecar file path for the named worktree.
func (s *Store) Path(name string) (string, error) {
	dir, err := naming.WorktreePath(s.RepoRoot, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the sidecar record for the named worktree.
func (s *Store) Load(name string) (*types.WorktreeMetadata, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path validated by WorktreePath
	if os.IsNotExist(err) {
		return nil, &types.NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", name, err)
	}

	var m types.WorktreeMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", name, err)
	}
	return &m, nil
}

// Save writes the record for m.Worktree, stamping updated_at. The write goes
// through a temp file and rename so a crash never leaves a truncated sidecar.
func (s *Store) Save(m *types.WorktreeMetadata) error {
	path, err := s.Path(m.Worktree)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	m.UpdatedAt = &now

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", m.Worktree, err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", m.Worktree, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing metadata for %s: %w", m.Worktree, err)
	}
	return nil
}

// Delete removes the sidecar record for the named worktree. Missing records
// are not an error; the caller is tearing the worktree down anyway.
func (s *Store) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing metadata for %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a sidecar record exists for the named worktree.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Scan loads every sidecar record under the worktrees directory, reading the
// files concurrently. Records are returned sorted by worktree name; unreadable
// or malformed sidecars are skipped rather than failing the whole scan.
func (s *Store) Scan(ctx context.Context) ([]*types.WorktreeMetadata, error) {
	entries, err := os.ReadDir(naming.WorktreesDir(s.RepoRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning worktrees dir: %w", err)
	}

	var (
		mu      sync.Mutex
		records []*types.WorktreeMetadata
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := s.Load(name)
			if err != nil {
				return nil // skip directories without a readable sidecar
			}
			mu.Lock()
			records = append(records, m)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Worktree < records[j].Worktree
	})
	return records, nil
}

// Names returns the set of worktree names that currently have a sidecar
// record, whatever their status.
func (s *Store) Names(ctx context.Context) (map[string]bool, error) {
	records, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(records))
	for _, m := range records {
		names[m.Worktree] = true
	}
	return names, nil
}
