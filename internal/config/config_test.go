package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_UsesConfigHomeEnvWhenSet(t *testing.T) {
	t.Setenv("CODEPUNK_CONFIG_HOME", "/custom/config/root")
	root, err := Root()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/root", root)
}

func TestRoot_FallsBackToXDGConfigHome(t *testing.T) {
	t.Setenv("CODEPUNK_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/home")
	root, err := Root()
	require.NoError(t, err)
	if root != filepath.Join("/xdg/home", "codepunk") {
		t.Skipf("platform-specific resolution produced %q, skipping", root)
	}
}

func TestWorktreeBase_UsesOverrideWhenSet(t *testing.T) {
	s := &Settings{WorktreeBase: "/tmp/my-worktrees"}
	assert.Equal(t, "/tmp/my-worktrees", WorktreeBase(s))
}

func TestWorktreeBase_DefaultsToTempDirSubpath(t *testing.T) {
	got := WorktreeBase(&Settings{})
	assert.Contains(t, got, "codepunk-sessions")
}

func TestWorktreeBase_NilSettingsUsesDefault(t *testing.T) {
	got := WorktreeBase(nil)
	assert.Contains(t, got, "codepunk-sessions")
}

func TestDefaultSafetyOptions_Literals(t *testing.T) {
	o := DefaultSafetyOptions()
	assert.Equal(t, 20, o.MaxFiles)
	assert.Equal(t, 260, o.MaxPathLength)
	assert.Equal(t, 16384, o.MaxPerFileBytes)
	assert.Equal(t, 131072, o.MaxTotalBytes)
	assert.Equal(t, 1, o.RetryInvalidOutput)
	assert.Equal(t, 262144, o.MaxModelOutputBytes)
	assert.Contains(t, o.SecretPatterns, "-----BEGIN")
}

func TestDefaultSettings_Literals(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 30, s.SessionTimeoutMinutes)
	assert.False(t, s.AutoRevertOnTimeout)
	assert.Equal(t, DefaultSafetyOptions(), s.Safety)
}

func TestLoad_ReturnsDefaultsWhenSettingsFileMissing(t *testing.T) {
	t.Setenv("CODEPUNK_CONFIG_HOME", t.TempDir())
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	t.Setenv("CODEPUNK_CONFIG_HOME", t.TempDir())

	s := DefaultSettings()
	s.DefaultProvider = "anthropic"
	s.DefaultModel = "claude"
	s.WorktreeBase = "/var/tmp/worktrees"
	require.NoError(t, Save(s))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", loaded.DefaultProvider)
	assert.Equal(t, "claude", loaded.DefaultModel)
	assert.Equal(t, "/var/tmp/worktrees", loaded.WorktreeBase)
}

func TestLoadAuth_ReturnsEmptyMapWhenFileMissing(t *testing.T) {
	t.Setenv("CODEPUNK_CONFIG_HOME", t.TempDir())
	auth, err := LoadAuth()
	require.NoError(t, err)
	assert.Empty(t, auth)
}
