// Package paths resolves the current git repository root, caching the
// result per working directory to avoid repeated subprocess calls.
package paths

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	cache    string
	cacheDir string
)

// RepoRoot returns the git repository root directory, using
// 'git rev-parse --show-toplevel' so it works from any subdirectory. The
// result is cached per working directory. Returns an error if not inside a
// git repository.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	mu.RLock()
	if cache != "" && cacheDir == cwd {
		root := cache
		mu.RUnlock()
		return root, nil
	}
	mu.RUnlock()

	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git repository root: %w", err)
	}
	root := strings.TrimSpace(string(output))

	mu.Lock()
	cache = root
	cacheDir = cwd
	mu.Unlock()

	return root, nil
}

// ClearRepoRootCache clears the cached repository root. Useful in tests that
// change the working directory between cases.
func ClearRepoRootCache() {
	mu.Lock()
	cache = ""
	cacheDir = ""
	mu.Unlock()
}

// RepoRootOr returns the repository root, or fallback if not inside a git
// repository.
func RepoRootOr(fallback string) string {
	root, err := RepoRoot()
	if err != nil {
		return fallback
	}
	return root
}
