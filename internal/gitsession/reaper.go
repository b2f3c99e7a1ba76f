package gitsession

import (
	"context"
	"os"
	"time"

	"github.com/codepunk/cli/internal/logging"
)

// Reaper is the Orphaned Session Reaper (C12): a startup scan that
// auto-reverts abandoned sessions. It never touches a session marked
// accepted.
type Reaper struct {
	service *Service
	store   *Store
}

// NewReaper returns a Reaper operating over the same store/service as a
// Service instance.
func NewReaper(service *Service, store *Store) *Reaper {
	return &Reaper{service: service, store: store}
}

// Sweep loads all persisted states and auto-reverts any that are rejected,
// failed, past sessionTimeout since lastActivityAt, or whose worktree
// directory is missing.
func (r *Reaper) Sweep(ctx context.Context, sessionTimeout time.Duration) error {
	states, err := r.store.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, st := range states {
		if st.AcceptedAt != nil {
			continue
		}

		worktreeMissing := false
		if _, err := os.Stat(st.WorktreePath); os.IsNotExist(err) {
			worktreeMissing = true
		}

		timedOut := sessionTimeout > 0 && now.Sub(st.LastActivityAt) > sessionTimeout

		if st.RejectedAt == nil && !st.IsFailed && !timedOut && !worktreeMissing {
			continue
		}

		reason := "orphaned session reclaimed at startup"
		if err := r.service.revert(ctx, st, reason, st.RejectedAt != nil); err != nil {
			logging.Warn(ctx, "reaper failed to revert session", "session_id", st.SessionID, "error", err)
		}
	}
	return nil
}
