// Package versioncheck performs an opportunistic, rate-limited check for a
// newer release and prints a notification when one is found. Every failure
// mode is silent: it must never interrupt a CLI invocation.
package versioncheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codepunk/cli/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

const (
	githubAPIURL  = "https://api.github.com/repos/codepunk/cli/releases/latest"
	cacheFileName = "version_check_cache.json"
	checkInterval = 24 * time.Hour
	httpTimeout   = 2 * time.Second
)

// VersionCache records the last time a version check ran, so the CLI
// doesn't hit GitHub's API on every invocation.
type VersionCache struct {
	LastCheckTime time.Time `json:"lastCheckTime"`
}

// GitHubRelease is the subset of GitHub's release API response used here.
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
}

// CheckAndNotify checks for a newer release at most once per checkInterval
// and prints a notification if the current version is outdated. configRoot
// is where the rate-limit cache is stored.
func CheckAndNotify(cmd *cobra.Command, currentVersion, configRoot string) {
	if cmd.Hidden {
		return
	}
	if currentVersion == "dev" || currentVersion == "" {
		return
	}
	if err := os.MkdirAll(configRoot, 0o755); err != nil {
		return
	}

	cachePath := filepath.Join(configRoot, cacheFileName)
	cache, err := loadCache(cachePath)
	if err != nil {
		cache = &VersionCache{}
	}
	if time.Since(cache.LastCheckTime) < checkInterval {
		return
	}

	latest, fetchErr := fetchLatestVersion()

	cache.LastCheckTime = time.Now()
	if saveErr := saveCache(cachePath, cache); saveErr != nil {
		logging.Debug(context.Background(), "version check: failed to save cache", "error", saveErr.Error())
	}

	if fetchErr != nil {
		logging.Debug(context.Background(), "version check: failed to fetch latest version", "error", fetchErr.Error())
		return
	}

	if isOutdated(currentVersion, latest) {
		printNotification(cmd, currentVersion, latest)
	}
}

func loadCache(path string) (*VersionCache, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path derived from config root
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var cache VersionCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing cache: %w", err)
	}
	return &cache, nil
}

func saveCache(path string, cache *VersionCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	return os.Rename(tmp, path)
}

func fetchLatestVersion() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubAPIURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "codepunk-cli")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return parseGitHubRelease(body)
}

func parseGitHubRelease(body []byte) (string, error) {
	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", fmt.Errorf("parsing JSON: %w", err)
	}
	if release.Prerelease {
		return "", errors.New("only prerelease versions available")
	}
	if release.TagName == "" {
		return "", errors.New("empty tag name")
	}
	return release.TagName, nil
}

func isOutdated(current, latest string) bool {
	if !strings.HasPrefix(current, "v") {
		current = "v" + current
	}
	if !strings.HasPrefix(latest, "v") {
		latest = "v" + latest
	}
	return semver.Compare(current, latest) < 0
}

func printNotification(cmd *cobra.Command, current, latest string) {
	msg := fmt.Sprintf("\nA newer version of codepunk is available: %s (current: %s)\nRun 'curl -fsSL https://codepunk.dev/install.sh | bash' to update.\n", latest, current)
	fmt.Fprint(cmd.OutOrStdout(), msg)
}
