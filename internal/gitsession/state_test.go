package gitsession

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	st := &State{SessionID: "abc123", ShadowBranch: "ai/session-abc123", StartedAt: time.Now().UTC()}
	require.NoError(t, s.Save(ctx, st))

	loaded, err := s.Load(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, st.ShadowBranch, loaded.ShadowBranch)
}

func TestLoad_MissingSessionReturnsNilNil(t *testing.T) {
	s := NewStore(t.TempDir())
	loaded, err := s.Load(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestList_SkipsUnparsableFilesAndNonJSON(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &State{SessionID: "one"}))
	require.NoError(t, s.Save(ctx, &State{SessionID: "two"}))
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "broken.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "notes.txt"), []byte("not a state file"), 0o600))

	states, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestList_EmptyDirReturnsNilNotError(t *testing.T) {
	s := NewStore(t.TempDir())
	states, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestDelete_MissingFileIsNotAnError(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.NoError(t, s.Delete(context.Background(), "never-existed"))
}

func TestDelete_RemovesPersistedState(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &State{SessionID: "gone"}))
	require.NoError(t, s.Delete(ctx, "gone"))

	loaded, err := s.Load(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestActiveSession_FindsOnlyUnresolvedSession(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	acceptedAt := time.Now().UTC()
	require.NoError(t, s.Save(ctx, &State{SessionID: "done", AcceptedAt: &acceptedAt}))
	require.NoError(t, s.Save(ctx, &State{SessionID: "live"}))

	active, err := s.ActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "live", active.SessionID)
}

func TestActiveSession_NoneWhenAllResolved(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	acceptedAt := time.Now().UTC()
	require.NoError(t, s.Save(ctx, &State{SessionID: "done", AcceptedAt: &acceptedAt}))

	active, err := s.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}
