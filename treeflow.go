// Package treeflow provides a minimal public API for embedding the worktree
// manager in other Go programs.
//
// Most integrations should use the wt CLI, the HTTP API, or the MCP server.
// This package exports only the essential types and the manager constructor
// for extensions that want to drive worktree lifecycles programmatically.
package treeflow

import (
	"github.com/treeflow/treeflow/internal/config"
	"github.com/treeflow/treeflow/internal/manager"
	"github.com/treeflow/treeflow/internal/types"
)

// Core types for working with worktrees and issues
type (
	WorktreeInfo     = types.WorktreeInfo
	WorktreeMetadata = types.WorktreeMetadata
	WorktreeType     = types.WorktreeType
	Status           = types.Status
	CreateRequest    = types.CreateRequest
	Issue            = types.Issue
	Commit           = types.Commit
)

// WorktreeType constants
const (
	TypeEpic     = types.TypeEpic
	TypeFeature  = types.TypeFeature
	TypeIssue    = types.TypeIssue
	TypeSubissue = types.TypeSubissue
	TypeCustom   = types.TypeCustom
)

// Status constants
const (
	StatusActive  = types.StatusActive
	StatusMerged  = types.StatusMerged
	StatusRemoved = types.StatusRemoved
)

// Manager coordinates worktree operations for one repository.
type Manager = manager.Manager

// Settings is the process-wide configuration.
type Settings = config.Settings

// Open builds a Manager over the repository at repoRoot using configuration
// loaded from configDir (empty for defaults plus environment).
func Open(repoRoot, configDir string) (*Manager, error) {
	settings, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	config.LoadLocalConfig(repoRoot).Apply(settings)
	return manager.New(repoRoot, settings), nil
}
