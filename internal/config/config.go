// Package config loads treeflow settings from the environment and optional
// config files into an explicit Settings struct. The struct is constructed
// once at process start and passed by reference into the manager and each
// provider instance; nothing reads ambient global state after startup.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for all treeflow environment variables
// (e.g. WORKTREE_DEFAULT_REPO, WORKTREE_LINEAR_API_KEY).
const EnvPrefix = "WORKTREE"

// DefaultMaxHierarchyDepth bounds the worktree tree: a root is depth 0 and
// nothing may sit deeper than this below it.
const DefaultMaxHierarchyDepth = 3

// DefaultRequestsPerMinute is the provider rate-limiter window size.
const DefaultRequestsPerMinute = 50

// DefaultTimeoutSeconds is the per-call deadline for provider requests.
const DefaultTimeoutSeconds = 30

// ProviderSettings holds the per-provider-instance options.
type ProviderSettings struct {
	APIKey            string `mapstructure:"api_key" toml:"api_key"`
	TeamID            string `mapstructure:"team_id" toml:"team_id"`
	Repo              string `mapstructure:"repo" toml:"repo"` // owner/name, GitHub only
	RequestsPerMinute int    `mapstructure:"requests_per_minute" toml:"requests_per_minute"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" toml:"timeout_seconds"`
}

// Settings is the process-wide configuration.
type Settings struct {
	// DefaultRepo is the repository used when no --repo flag is given.
	DefaultRepo string `mapstructure:"default_repo"`

	// DefaultIssueProvider names the provider used when a create request
	// doesn't specify one.
	DefaultIssueProvider string `mapstructure:"default_issue_provider"`

	// Guardrail settings. Uniqueness is enforced regardless of
	// EnforceGuardrails; depth and type compatibility are policy.
	MaxHierarchyDepth int  `mapstructure:"max_hierarchy_depth"`
	EnforceGuardrails bool `mapstructure:"enforce_guardrails"`

	// API server settings.
	APIHost string `mapstructure:"api_host"`
	APIPort int    `mapstructure:"api_port"`

	// Providers maps provider name (linear, github, ...) to its settings.
	Providers map[string]ProviderSettings `mapstructure:"providers"`
}

// Provider returns the settings for the named provider, with rate and
// timeout defaults applied. Unknown providers get pure defaults.
func (s *Settings) Provider(name string) ProviderSettings {
	ps := s.Providers[name]
	if ps.RequestsPerMinute <= 0 {
		ps.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if ps.TimeoutSeconds <= 0 {
		ps.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return ps
}

// Load builds Settings from defaults, an optional config.yaml in configDir,
// WORKTREE_* environment variables, and an optional providers.toml next to
// the config file. Later sources win.
func Load(configDir string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("default_issue_provider", "github")
	v.SetDefault("max_hierarchy_depth", DefaultMaxHierarchyDepth)
	v.SetDefault("enforce_guardrails", true)
	v.SetDefault("api_host", "127.0.0.1")
	v.SetDefault("api_port", 8000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine; a malformed one is not.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if s.Providers == nil {
		s.Providers = make(map[string]ProviderSettings)
	}

	// Flat env vars for provider credentials, matching the .envrc layout
	// (WORKTREE_LINEAR_API_KEY etc.). These override file values.
	applyEnvCredentials(v, &s)

	if configDir != "" {
		if err := mergeProvidersFile(filepath.Join(configDir, "providers.toml"), &s); err != nil {
			return nil, err
		}
	}

	if s.MaxHierarchyDepth <= 0 {
		s.MaxHierarchyDepth = DefaultMaxHierarchyDepth
	}
	return &s, nil
}

// applyEnvCredentials maps the flat WORKTREE_<PROVIDER>_* variables onto the
// per-provider settings map.
func applyEnvCredentials(v *viper.Viper, s *Settings) {
	set := func(name, key, value string) {
		if value == "" {
			return
		}
		ps := s.Providers[name]
		switch key {
		case "api_key":
			ps.APIKey = value
		case "team_id":
			ps.TeamID = value
		case "repo":
			ps.Repo = value
		}
		s.Providers[name] = ps
	}

	set("linear", "api_key", v.GetString("linear_api_key"))
	set("linear", "team_id", v.GetString("linear_team_id"))
	set("github", "api_key", v.GetString("github_token"))
	set("github", "repo", v.GetString("github_repo"))

	if repo := v.GetString("default_repo"); repo != "" {
		s.DefaultRepo = repo
	}
	if p := v.GetString("default_issue_provider"); p != "" {
		s.DefaultIssueProvider = p
	}
}
