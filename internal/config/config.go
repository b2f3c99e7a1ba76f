// Package config resolves the <config-root> directory and loads the small
// set of option structs the rest of the module needs (safety-gate limits,
// session timeouts, provider credentials). Loading arbitrary nested CLI
// configuration is out of scope — this package exists only to hand
// already-typed option structs to the components that need them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/codepunk/cli/internal/jsonutil"
)

// Root resolves <config-root>:
// CODEPUNK_CONFIG_HOME if set; else $XDG_CONFIG_HOME/codepunk or
// ~/.config/codepunk on POSIX; %APPDATA%\CodePunk on Windows.
func Root() (string, error) {
	if v := os.Getenv("CODEPUNK_CONFIG_HOME"); v != "" {
		return v, nil
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "CodePunk"), nil
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codepunk"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "codepunk"), nil
}

// WorktreeBase returns the default base directory for AI session worktrees:
// system temp + "codepunk-sessions", unless overridden by settings.
func WorktreeBase(s *Settings) string {
	if s != nil && s.WorktreeBase != "" {
		return s.WorktreeBase
	}
	return filepath.Join(os.TempDir(), "codepunk-sessions")
}

// SafetyOptions mirrors the Plan Safety Gate's configurable limits.
type SafetyOptions struct {
	MaxFiles            int      `json:"maxFiles"`
	MaxPathLength       int      `json:"maxPathLength"`
	MaxPerFileBytes     int      `json:"maxPerFileBytes"`
	MaxTotalBytes       int      `json:"maxTotalBytes"`
	RetryInvalidOutput  int      `json:"retryInvalidOutput"`
	SecretPatterns      []string `json:"secretPatterns"`
	MaxModelOutputBytes int      `json:"maxModelOutputBytes"`
}

// DefaultSafetyOptions returns the Plan Safety Gate's default limits.
func DefaultSafetyOptions() SafetyOptions {
	return SafetyOptions{
		MaxFiles:            20,
		MaxPathLength:       260,
		MaxPerFileBytes:     16384,
		MaxTotalBytes:       131072,
		RetryInvalidOutput:  1,
		SecretPatterns:      []string{"API_KEY=", "SECRET=", "PASSWORD=", "-----BEGIN"},
		MaxModelOutputBytes: 262144,
	}
}

// Settings is the top-level settings.json schema under <config-root>.
type Settings struct {
	DefaultProvider               string        `json:"defaultProvider,omitempty"`
	DefaultModel                  string        `json:"defaultModel,omitempty"`
	WorktreeBase                  string        `json:"worktreeBase,omitempty"`
	SessionTimeoutMinutes         int           `json:"sessionTimeoutMinutes,omitempty"`
	AutoRevertOnTimeout           bool          `json:"autoRevertOnTimeout,omitempty"`
	KeepFailedSessionBranches     bool          `json:"keepFailedSessionBranches,omitempty"`
	EnableWebsiteScaffoldFallback bool          `json:"enableWebsiteScaffoldFallback,omitempty"`
	Safety                        SafetyOptions `json:"safety,omitempty"`
	ShellAllowlist                []string      `json:"shellAllowlist,omitempty"`
	ShellBlocklist                []string      `json:"shellBlocklist,omitempty"`
	Telemetry                     *bool         `json:"telemetry,omitempty"`
}

// DefaultSettings returns settings with the module's documented defaults
// applied.
func DefaultSettings() *Settings {
	return &Settings{
		SessionTimeoutMinutes: 30,
		AutoRevertOnTimeout:   false,
		Safety:                DefaultSafetyOptions(),
	}
}

// Load reads settings.json from <config-root>, returning defaults if the
// file does not exist.
func Load() (*Settings, error) {
	root, err := Root()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(root, "settings.json")
	data, err := os.ReadFile(path) //nolint:gosec // path derived from config root, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return settings, nil
}

// Save atomically writes settings.json via temp-file + rename.
func Save(s *Settings) error {
	root, err := Root()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating config root: %w", err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(s, "", "  ")
	if err != nil {
		return err
	}
	target := filepath.Join(root, "settings.json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp settings file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("renaming settings file: %w", err)
	}
	return nil
}

// AuthEntry is one provider's credential in auth.json.
type AuthEntry struct {
	APIKey string `json:"apiKey"`
}

// LoadAuth reads auth.json (provider name -> credential), returning an empty
// map if the file does not exist.
func LoadAuth() (map[string]AuthEntry, error) {
	root, err := Root()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(root, "auth.json")) //nolint:gosec // path derived from config root
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]AuthEntry{}, nil
		}
		return nil, fmt.Errorf("reading auth file: %w", err)
	}
	var auth map[string]AuthEntry
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("parsing auth file: %w", err)
	}
	return auth, nil
}
