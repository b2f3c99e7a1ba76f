package gitsession

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codepunk/cli/internal/gitexec"
	"github.com/codepunk/cli/internal/logging"
	"github.com/codepunk/cli/internal/workdir"
	"github.com/google/uuid"
)

// ShadowBranchPrefix names every shadow branch the service creates:
// "<prefix>-<sessionId[:8]>".
const ShadowBranchPrefix = "ai/session"

// Service is the Git Session Service (C11).
type Service struct {
	store               *Store
	workdir             *workdir.Provider
	worktreeBase        string
	keepFailedBranches  bool
}

// NewService returns a Service persisting state via store, overriding wd on
// Begin/Accept/Reject, creating worktrees under worktreeBase.
func NewService(store *Store, wd *workdir.Provider, worktreeBase string, keepFailedBranches bool) *Service {
	return &Service{store: store, workdir: wd, worktreeBase: worktreeBase, keepFailedBranches: keepFailedBranches}
}

func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// Begin creates a new session: a worktree off repoRoot's HEAD on a fresh
// shadow branch. It returns (nil, nil) if disabled or not inside a git
// repository — not an error, a no-op.
func (s *Service) Begin(ctx context.Context, enabled bool, originalDir string) (*State, error) {
	if !enabled {
		return nil, nil
	}
	if !gitexec.IsGitRepo(ctx, originalDir) {
		return nil, nil
	}

	if active, err := s.store.ActiveSession(ctx); err != nil {
		return nil, err
	} else if active != nil {
		if err := s.revert(ctx, active, "New session started", false); err != nil {
			logging.Warn(ctx, "auto-revert of stale session failed", "session_id", active.SessionID, "error", err)
		}
	}

	originalBranch, ok := gitexec.CurrentBranch(ctx, originalDir)
	if !ok {
		return nil, nil
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	shadowBranch := fmt.Sprintf("%s-%s", ShadowBranchPrefix, sessionID[:8])
	worktreePath := filepath.Join(s.worktreeBase, sessionID)

	if err := os.MkdirAll(s.worktreeBase, 0o755); err != nil {
		return nil, fmt.Errorf("creating worktree base directory: %w", err)
	}

	res := gitexec.Run(ctx, originalDir, "worktree", "add", worktreePath, "-b", shadowBranch)
	if !res.Success {
		logging.Warn(ctx, "git worktree add failed", "error", res.Error)
		return nil, nil
	}

	now := time.Now().UTC()
	state := &State{
		SessionID:      sessionID,
		ShadowBranch:   shadowBranch,
		OriginalBranch: originalBranch,
		WorktreePath:   worktreePath,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := s.store.Save(ctx, state); err != nil {
		return nil, err
	}
	s.workdir.Set(worktreePath)
	return state, nil
}

// CommitToolCall stages and commits every change a tool call made inside
// the worktree. It is a no-op (returns true, nil changes) if the tool call
// produced no diff.
func (s *Service) CommitToolCall(ctx context.Context, state *State, toolName, summary string) (bool, error) {
	addRes := gitexec.Run(ctx, state.WorktreePath, "add", "-A")
	if !addRes.Success {
		return false, fmt.Errorf("git add -A failed: %s", addRes.Error)
	}

	changed, ok := gitexec.HasUncommittedChanges(ctx, state.WorktreePath)
	if !ok {
		return false, fmt.Errorf("git status failed in worktree")
	}
	if !changed {
		s.UpdateActivity(state)
		if err := s.store.Save(ctx, state); err != nil {
			return false, err
		}
		return true, nil
	}

	msg := fmt.Sprintf("AI Tool: %s - %s", toolName, summary)
	commitRes := gitexec.Run(ctx, state.WorktreePath, "commit", "-m", msg)
	if !commitRes.Success {
		return false, fmt.Errorf("git commit failed: %s", commitRes.Error)
	}

	files := changedFiles(ctx, state.WorktreePath)

	hash, _ := gitexec.RevParseHEAD(ctx, state.WorktreePath)
	state.ToolCallCommits = append(state.ToolCallCommits, ToolCallCommit{
		ToolName:     toolName,
		CommitHash:   hash,
		CommittedAt:  time.Now().UTC(),
		FilesChanged: files,
	})
	s.UpdateActivity(state)
	if err := s.store.Save(ctx, state); err != nil {
		return false, err
	}
	return true, nil
}

func changedFiles(ctx context.Context, worktreePath string) []string {
	res := gitexec.Run(ctx, worktreePath, "diff", "--name-only", "HEAD~1", "HEAD")
	if !res.Success || res.Output == "" {
		return nil
	}
	return strings.Split(res.Output, "\n")
}

// UpdateActivity bumps lastActivityAt. Callers persist the state afterward;
// it is also called implicitly by CommitToolCall.
func (s *Service) UpdateActivity(state *State) {
	now := time.Now().UTC()
	if now.After(state.LastActivityAt) {
		state.LastActivityAt = now
	}
}

// Accept computes the session's aggregate diff, applies it into the
// original working directory as unstaged changes, then reclaims the
// worktree and shadow branch.
func (s *Service) Accept(ctx context.Context, state *State, originalDir string) (bool, error) {
	diffRes := gitexec.Run(ctx, state.WorktreePath, "diff", state.OriginalBranch, "--binary")
	if !diffRes.Success {
		return false, fmt.Errorf("computing diff against %s: %s", state.OriginalBranch, diffRes.Error)
	}

	if strings.TrimSpace(diffRes.Output) != "" {
		patchFile, err := os.CreateTemp("", "codepunk-session-*.patch")
		if err != nil {
			return false, fmt.Errorf("creating patch file: %w", err)
		}
		defer os.Remove(patchFile.Name())
		if _, err := patchFile.WriteString(diffRes.Output + "\n"); err != nil {
			patchFile.Close()
			return false, fmt.Errorf("writing patch file: %w", err)
		}
		patchFile.Close()

		applyRes := gitexec.Run(ctx, originalDir, "apply", patchFile.Name())
		if !applyRes.Success {
			// Worktree and branch are retained for inspection.
			return false, fmt.Errorf("git apply failed: %s", applyRes.Error)
		}
	}

	s.removeWorktree(ctx, originalDir, state.WorktreePath)
	gitexec.Run(ctx, originalDir, "branch", "-D", state.ShadowBranch)

	now := time.Now().UTC()
	state.AcceptedAt = &now
	_ = s.store.Save(ctx, state)
	_ = s.store.Delete(ctx, state.SessionID)
	s.workdir.Clear()
	return true, nil
}

// Reject discards the session's worktree and shadow branch without
// touching the original working directory.
func (s *Service) Reject(ctx context.Context, state *State) error {
	now := time.Now().UTC()
	state.RejectedAt = &now
	return s.revert(ctx, state, "", true)
}

// Fail persists a failure reason. The session remains in the store,
// Active-in-state, until the reaper or a new Begin evicts it.
func (s *Service) Fail(ctx context.Context, state *State, reason string) error {
	state.IsFailed = true
	state.FailureReason = reason
	return s.store.Save(ctx, state)
}

// revert is the shared cleanup path for Reject and for auto-revert on a new
// Begin / reaper sweep: it removes the worktree, conditionally keeps the
// shadow branch for failed sessions, deletes the state file, and clears the
// working-directory override.
func (s *Service) revert(ctx context.Context, state *State, failureReason string, alreadyMarkedRejected bool) error {
	if failureReason != "" {
		state.IsFailed = true
		state.FailureReason = failureReason
	}
	if !alreadyMarkedRejected && state.RejectedAt == nil {
		now := time.Now().UTC()
		state.RejectedAt = &now
	}

	originalDir := s.originalDirFor(ctx, state)
	s.removeWorktree(ctx, originalDir, state.WorktreePath)

	if s.keepFailedBranches && state.IsFailed {
		// Retain the shadow branch for inspection.
	} else {
		gitexec.Run(ctx, originalDir, "branch", "-D", state.ShadowBranch)
	}

	if err := s.store.Delete(ctx, state.SessionID); err != nil {
		return err
	}
	s.workdir.Clear()
	return nil
}

// originalDirFor resolves a directory to run "original branch" git commands
// in: the process's real cwd, since the worktree itself shares no working
// directory with it.
func (s *Service) originalDirFor(_ context.Context, state *State) string {
	return s.workdir.GetOriginal()
}

// removeWorktree force-removes the worktree via git, falling back to a
// recursive filesystem delete if git itself can't (e.g. the worktree
// directory was already partially removed by a crash).
func (s *Service) removeWorktree(ctx context.Context, originalDir, worktreePath string) {
	res := gitexec.Run(ctx, originalDir, "worktree", "remove", worktreePath, "--force")
	if res.Success {
		return
	}
	if err := os.RemoveAll(worktreePath); err != nil {
		logging.Warn(ctx, "failed to remove worktree directory", "path", worktreePath, "error", err)
	}
	gitexec.Run(ctx, originalDir, "worktree", "prune")
}
