package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// providersFile is the on-disk shape of providers.toml:
//
//	[linear]
//	api_key = "lin_api_..."
//	team_id = "..."
//	requests_per_minute = 50
//
//	[github]
//	api_key = "ghp_..."
//	repo = "owner/name"
type providersFile map[string]ProviderSettings

// mergeProvidersFile overlays per-provider settings from a TOML credentials
// file. Values already present in s (from env) are not overwritten: the file
// is the lowest-precedence credential source.
func mergeProvidersFile(path string, s *Settings) error {
	data, err := os.ReadFile(path) // #nosec G304 - path derived from config dir
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading providers file: %w", err)
	}

	var pf providersFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for name, filePS := range pf {
		ps := s.Providers[name]
		if ps.APIKey == "" {
			ps.APIKey = filePS.APIKey
		}
		if ps.TeamID == "" {
			ps.TeamID = filePS.TeamID
		}
		if ps.Repo == "" {
			ps.Repo = filePS.Repo
		}
		if ps.RequestsPerMinute == 0 {
			ps.RequestsPerMinute = filePS.RequestsPerMinute
		}
		if ps.TimeoutSeconds == 0 {
			ps.TimeoutSeconds = filePS.TimeoutSeconds
		}
		s.Providers[name] = ps
	}
	return nil
}
