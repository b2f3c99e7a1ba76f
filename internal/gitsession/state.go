// Package gitsession implements the Git Session State & Store (C10), the
// Git Session Service (C11), and the Orphaned Session Reaper (C12): a
// git-worktree-isolated sandbox in which a model's tool calls are committed
// incrementally on a shadow branch, reconciled into the user's working tree
// only on explicit acceptance.
package gitsession

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codepunk/cli/internal/jsonutil"
	"github.com/codepunk/cli/internal/validation"
)

// ToolCallCommit is one append-only entry recording a tool call's effect on
// the shadow branch.
type ToolCallCommit struct {
	ToolName     string    `json:"toolName"`
	CommitHash   string    `json:"commitHash"`
	CommittedAt  time.Time `json:"committedAt"`
	FilesChanged []string  `json:"filesChanged"`
}

// State is the persisted GitSessionState.
type State struct {
	SessionID        string           `json:"sessionId"`
	ShadowBranch     string           `json:"shadowBranch"`
	OriginalBranch   string           `json:"originalBranch"`
	WorktreePath     string           `json:"worktreePath"`
	ToolCallCommits  []ToolCallCommit `json:"toolCallCommits"`
	StartedAt        time.Time        `json:"startedAt"`
	LastActivityAt   time.Time        `json:"lastActivityAt"`
	AcceptedAt       *time.Time       `json:"acceptedAt,omitempty"`
	RejectedAt       *time.Time       `json:"rejectedAt,omitempty"`
	IsFailed         bool             `json:"isFailed"`
	FailureReason    string           `json:"failureReason,omitempty"`
}

// Store persists State under <config-root>/git-sessions/<sessionId>.json.
type Store struct {
	root string
}

// NewStore returns a Store rooted at <configRoot>/git-sessions.
func NewStore(configRoot string) *Store {
	return &Store{root: filepath.Join(configRoot, "git-sessions")}
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.root, sessionID+".json")
}

// Save atomically persists state via temp-file + rename.
func (s *Store) Save(_ context.Context, state *State) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("creating git-sessions directory: %w", err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(state, "", "  ")
	if err != nil {
		return err
	}
	target := s.path(state.SessionID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp session state: %w", err)
	}
	return os.Rename(tmp, target)
}

// Load reads a State by session id. Returns (nil, nil) if it doesn't exist
// or if sessionID is malformed (callers typically surface this as "session
// not found" rather than a distinct validation error).
func (s *Store) Load(_ context.Context, sessionID string) (*State, error) {
	if err := validation.ValidateSessionID(sessionID); err != nil {
		return nil, nil
	}
	data, err := os.ReadFile(s.path(sessionID)) //nolint:gosec // path validated by ValidateSessionID above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state %s: %w", sessionID, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing session state %s: %w", sessionID, err)
	}
	return &state, nil
}

// List returns all persisted session states, skipping files that fail to
// parse.
func (s *Store) List(_ context.Context) ([]*State, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning git-sessions directory: %w", err)
	}
	var states []*State
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name())) //nolint:gosec
		if err != nil {
			continue
		}
		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, nil
}

// Delete removes the persisted state file for sessionID, if present.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	if err := validation.ValidateSessionID(sessionID); err != nil {
		return nil
	}
	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting session state %s: %w", sessionID, err)
	}
	return nil
}

// ActiveSession returns the sole state that is not yet accepted or
// rejected, if any. The service's contract is one active session at a
// time; Begin auto-reverts a stale active session before starting anew.
func (s *Store) ActiveSession(ctx context.Context) (*State, error) {
	states, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		if st.AcceptedAt == nil && st.RejectedAt == nil {
			return st, nil
		}
	}
	return nil, nil
}
