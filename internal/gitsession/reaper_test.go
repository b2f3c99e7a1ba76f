package gitsession

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_IgnoresAcceptedSessions(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	svc, _ := newTestService(t, t.TempDir(), false)
	reaper := NewReaper(svc, svc.store)
	ctx := context.Background()

	acceptedAt := time.Now().UTC()
	require.NoError(t, svc.store.Save(ctx, &State{
		SessionID:      "done",
		WorktreePath:   t.TempDir(),
		AcceptedAt:     &acceptedAt,
		LastActivityAt: time.Now().UTC(),
	}))

	require.NoError(t, reaper.Sweep(ctx, time.Hour))

	loaded, err := svc.store.Load(ctx, "done")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Nil(t, loaded.RejectedAt)
}

func TestSweep_RevertsSessionWithMissingWorktree(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	svc, _ := newTestService(t, t.TempDir(), false)
	reaper := NewReaper(svc, svc.store)
	ctx := context.Background()

	missingDir := t.TempDir() + "/never-created"
	require.NoError(t, svc.store.Save(ctx, &State{
		SessionID:      "orphan",
		ShadowBranch:   "ai/session-orphan",
		WorktreePath:   missingDir,
		LastActivityAt: time.Now().UTC(),
	}))

	require.NoError(t, reaper.Sweep(ctx, time.Hour))

	loaded, err := svc.store.Load(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSweep_RevertsTimedOutSession(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	worktreeBase := t.TempDir()
	svc, _ := newTestService(t, worktreeBase, false)
	reaper := NewReaper(svc, svc.store)
	ctx := context.Background()

	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	st.LastActivityAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, svc.store.Save(ctx, st))

	require.NoError(t, reaper.Sweep(ctx, time.Hour))

	loaded, err := svc.store.Load(ctx, st.SessionID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	_, statErr := os.Stat(st.WorktreePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweep_LeavesFreshActiveSessionAlone(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	worktreeBase := t.TempDir()
	svc, _ := newTestService(t, worktreeBase, false)
	reaper := NewReaper(svc, svc.store)
	ctx := context.Background()

	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	require.NoError(t, reaper.Sweep(ctx, time.Hour))

	loaded, err := svc.store.Load(ctx, st.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Nil(t, loaded.RejectedAt)
}

func TestSweep_ZeroTimeoutMeansNoTimeoutRevert(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	svc, _ := newTestService(t, t.TempDir(), false)
	reaper := NewReaper(svc, svc.store)
	ctx := context.Background()

	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	st.LastActivityAt = time.Now().UTC().Add(-1000 * time.Hour)
	require.NoError(t, svc.store.Save(ctx, st))

	require.NoError(t, reaper.Sweep(ctx, 0))

	loaded, err := svc.store.Load(ctx, st.SessionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Nil(t, loaded.RejectedAt)
}
