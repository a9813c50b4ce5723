package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfigName is the per-repository override file, read directly from the
// repo root rather than through the viper instance. This matters when the
// working directory changed after Load, or when a repo wants stricter
// guardrails than the user's global settings.
const LocalConfigName = ".worktree-flow.yaml"

// LocalConfig is the subset of settings a repository may override.
type LocalConfig struct {
	MaxHierarchyDepth *int  `yaml:"max_hierarchy_depth"`
	EnforceGuardrails *bool `yaml:"enforce_guardrails"`
}

// LoadLocalConfig reads and parses the repo-local override file.
// Returns an empty LocalConfig (not nil) if the file doesn't exist or can't
// be parsed.
func LoadLocalConfig(repoRoot string) *LocalConfig {
	data, err := os.ReadFile(filepath.Join(repoRoot, LocalConfigName)) // #nosec G304 - path from repo root
	if err != nil {
		return &LocalConfig{}
	}

	var lc LocalConfig
	if err := yaml.Unmarshal(data, &lc); err != nil {
		return &LocalConfig{}
	}
	return &lc
}

// Apply overlays the local overrides onto s.
func (lc *LocalConfig) Apply(s *Settings) {
	if lc.MaxHierarchyDepth != nil && *lc.MaxHierarchyDepth > 0 {
		s.MaxHierarchyDepth = *lc.MaxHierarchyDepth
	}
	if lc.EnforceGuardrails != nil {
		s.EnforceGuardrails = *lc.EnforceGuardrails
	}
}
