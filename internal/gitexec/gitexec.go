// Package gitexec is the Git Command Executor (C8): it spawns `git` with an
// explicit working directory and returns a uniform result for every call.
// Errors are never returned for a non-zero exit — callers inspect Result and
// make their own policy decisions.
package gitexec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Result is the uniform outcome of one git invocation.
type Result struct {
	Success  bool
	Output   string
	Error    string
	ExitCode int
}

// Run executes `git <args...>` with cwd as its working directory.
func Run(ctx context.Context, cwd string, args ...string) Result {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Output: strings.TrimRight(stdout.String(), "\n"),
		Error:  strings.TrimRight(stderr.String(), "\n"),
	}
	if err == nil {
		res.Success = true
		res.ExitCode = 0
		return res
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
		if res.Error == "" {
			res.Error = err.Error()
		}
	}
	return res
}

// CurrentBranch returns the checked-out branch name in repoDir. Falls back to
// go-git's pure-Go ref read when the git binary itself can't be run (missing
// from PATH, sandboxed environment), since the CLI is otherwise preferred for
// its faithful behavior over the whole of git's feature surface.
func CurrentBranch(ctx context.Context, repoDir string) (string, bool) {
	res := Run(ctx, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
	if res.Success {
		return res.Output, true
	}
	if !execUnavailable(res) {
		return "", false
	}
	ref, err := goGitHead(repoDir)
	if err != nil || !ref.Name().IsBranch() {
		return "", false
	}
	return ref.Name().Short(), true
}

// IsGitRepo reports whether repoDir is inside a git working tree.
func IsGitRepo(ctx context.Context, dir string) bool {
	res := Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if res.Success {
		return strings.TrimSpace(res.Output) == "true"
	}
	if !execUnavailable(res) {
		return false
	}
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// RevParseHEAD returns the current commit hash in repoDir.
func RevParseHEAD(ctx context.Context, repoDir string) (string, bool) {
	res := Run(ctx, repoDir, "rev-parse", "HEAD")
	if res.Success {
		return res.Output, true
	}
	if !execUnavailable(res) {
		return "", false
	}
	ref, err := goGitHead(repoDir)
	if err != nil {
		return "", false
	}
	return ref.Hash().String(), true
}

// execUnavailable reports whether a Run failure looks like "couldn't spawn
// the git binary at all" rather than "git ran and rejected the command" —
// the former is when the go-git fallback is worth attempting.
func execUnavailable(res Result) bool {
	return res.ExitCode == -1
}

// goGitHead opens repoDir as a go-git repository and resolves its HEAD
// reference without shelling out.
func goGitHead(repoDir string) (*plumbing.Reference, error) {
	repo, err := git.PlainOpenWithOptions(repoDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	return repo.Head()
}

// WorktreeEntry is one record parsed from `git worktree list --porcelain`.
type WorktreeEntry struct {
	Path   string
	Head   string
	Branch string
}

// ParseWorktreeList parses porcelain output from `git worktree list
// --porcelain`: records separated by blank lines, each containing
// "worktree <path>", "HEAD <sha>", and "branch refs/heads/<name>" lines.
func ParseWorktreeList(output string) []WorktreeEntry {
	var entries []WorktreeEntry
	var cur *WorktreeEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			if cur != nil {
				entries = append(entries, *cur)
				cur = nil
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur != nil {
				entries = append(entries, *cur)
			}
			cur = &WorktreeEntry{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if cur != nil {
				cur.Head = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if cur != nil {
				cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
			}
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries
}

// ListWorktrees returns the parsed worktree list for repoDir.
func ListWorktrees(ctx context.Context, repoDir string) ([]WorktreeEntry, bool) {
	res := Run(ctx, repoDir, "worktree", "list", "--porcelain")
	if !res.Success {
		return nil, false
	}
	return ParseWorktreeList(res.Output), true
}

// HasUncommittedChanges reports whether repoDir has any tracked or
// untracked changes, via `git status --porcelain` — the CLI is preferred
// over go-git here since go-git does not honor the user's global
// gitignore.
func HasUncommittedChanges(ctx context.Context, repoDir string) (bool, bool) {
	res := Run(ctx, repoDir, "status", "--porcelain")
	if !res.Success {
		return false, false
	}
	return strings.TrimSpace(res.Output) != "", true
}
