package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "github", s.DefaultIssueProvider)
	assert.Equal(t, DefaultMaxHierarchyDepth, s.MaxHierarchyDepth)
	assert.True(t, s.EnforceGuardrails)
	assert.Equal(t, "127.0.0.1", s.APIHost)
	assert.Equal(t, 8000, s.APIPort)
	assert.NotNil(t, s.Providers)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := `
default_issue_provider: linear
max_hierarchy_depth: 5
enforce_guardrails: false
api_port: 9000
providers:
  linear:
    team_id: team-1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o600))

	s, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "linear", s.DefaultIssueProvider)
	assert.Equal(t, 5, s.MaxHierarchyDepth)
	assert.False(t, s.EnforceGuardrails)
	assert.Equal(t, 9000, s.APIPort)
	assert.Equal(t, "team-1", s.Providers["linear"].TeamID)
}

func TestLoadMalformedConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0o600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvCredentialsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	providers := `
[linear]
api_key = "from-file"
team_id = "team-file"

[github]
api_key = "ghp_file"
repo = "owner/name"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers.toml"), []byte(providers), 0o600))
	t.Setenv("WORKTREE_LINEAR_API_KEY", "from-env")

	s, err := Load(dir)
	require.NoError(t, err)

	// Env wins for the key it sets; file fills the rest.
	assert.Equal(t, "from-env", s.Providers["linear"].APIKey)
	assert.Equal(t, "team-file", s.Providers["linear"].TeamID)
	assert.Equal(t, "ghp_file", s.Providers["github"].APIKey)
	assert.Equal(t, "owner/name", s.Providers["github"].Repo)
}

func TestProviderDefaults(t *testing.T) {
	s := &Settings{Providers: map[string]ProviderSettings{
		"linear": {APIKey: "k", RequestsPerMinute: 10},
	}}

	ps := s.Provider("linear")
	assert.Equal(t, 10, ps.RequestsPerMinute)
	assert.Equal(t, DefaultTimeoutSeconds, ps.TimeoutSeconds)

	unknown := s.Provider("missing")
	assert.Equal(t, DefaultRequestsPerMinute, unknown.RequestsPerMinute)
	assert.Equal(t, DefaultTimeoutSeconds, unknown.TimeoutSeconds)
}

func TestLocalConfigOverlay(t *testing.T) {
	repo := t.TempDir()
	local := `
max_hierarchy_depth: 2
enforce_guardrails: false
`
	require.NoError(t, os.WriteFile(filepath.Join(repo, LocalConfigName), []byte(local), 0o600))

	s := &Settings{MaxHierarchyDepth: 3, EnforceGuardrails: true}
	LoadLocalConfig(repo).Apply(s)

	assert.Equal(t, 2, s.MaxHierarchyDepth)
	assert.False(t, s.EnforceGuardrails)
}

func TestLocalConfigMissingIsEmpty(t *testing.T) {
	s := &Settings{MaxHierarchyDepth: 3, EnforceGuardrails: true}
	LoadLocalConfig(t.TempDir()).Apply(s)

	assert.Equal(t, 3, s.MaxHierarchyDepth)
	assert.True(t, s.EnforceGuardrails)
}
