package gitsession

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/codepunk/cli/internal/workdir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "a@b.c")
	run("config", "user.name", "a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "init")
	return dir
}

func newTestService(t *testing.T, worktreeBase string, keepFailedBranches bool) (*Service, *workdir.Provider) {
	t.Helper()
	wd, err := workdir.New()
	require.NoError(t, err)
	store := NewStore(t.TempDir())
	return NewService(store, wd, worktreeBase, keepFailedBranches), wd
}

func TestBegin_DisabledIsNoOp(t *testing.T) {
	repo := initRepo(t)
	svc, _ := newTestService(t, t.TempDir(), false)
	st, err := svc.Begin(context.Background(), false, repo)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestBegin_NonGitDirIsNoOp(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir(), false)
	st, err := svc.Begin(context.Background(), true, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestBegin_CreatesWorktreeAndShadowBranch(t *testing.T) {
	repo := initRepo(t)
	worktreeBase := t.TempDir()
	svc, wd := newTestService(t, worktreeBase, false)

	st, err := svc.Begin(context.Background(), true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "main", st.OriginalBranch)
	assert.Contains(t, st.ShadowBranch, ShadowBranchPrefix)

	info, err := os.Stat(st.WorktreePath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	got, err := wd.Get()
	require.NoError(t, err)
	assert.Equal(t, st.WorktreePath, got)
}

func TestBegin_AutoRevertsStaleActiveSession(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	worktreeBase := t.TempDir()
	svc, _ := newTestService(t, worktreeBase, false)
	ctx := context.Background()

	first, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	_, err = os.Stat(first.WorktreePath)
	assert.True(t, os.IsNotExist(err))
}

func TestCommitToolCall_NoOpWhenNothingChanged(t *testing.T) {
	repo := initRepo(t)
	svc, _ := newTestService(t, t.TempDir(), false)
	st, err := svc.Begin(context.Background(), true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	changed, err := svc.CommitToolCall(context.Background(), st, "tool", "no changes made")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, st.ToolCallCommits)
}

func TestCommitToolCall_CommitsChangesAndRecordsFiles(t *testing.T) {
	repo := initRepo(t)
	svc, _ := newTestService(t, t.TempDir(), false)
	ctx := context.Background()
	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	require.NoError(t, os.WriteFile(filepath.Join(st.WorktreePath, "new.txt"), []byte("content\n"), 0o644))

	changed, err := svc.CommitToolCall(ctx, st, "writeFile", "created new.txt")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, st.ToolCallCommits, 1)
	assert.Equal(t, "writeFile", st.ToolCallCommits[0].ToolName)
	assert.Contains(t, st.ToolCallCommits[0].FilesChanged, "new.txt")
}

func TestAccept_AppliesDiffIntoOriginalDirectory(t *testing.T) {
	repo := initRepo(t)
	svc, wd := newTestService(t, t.TempDir(), false)
	ctx := context.Background()
	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	require.NoError(t, os.WriteFile(filepath.Join(st.WorktreePath, "new.txt"), []byte("content\n"), 0o644))
	changed, err := svc.CommitToolCall(ctx, st, "writeFile", "created new.txt")
	require.NoError(t, err)
	require.True(t, changed)

	ok, err := svc.Accept(ctx, st, repo)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(repo, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content\n", string(data))

	_, err = os.Stat(st.WorktreePath)
	assert.True(t, os.IsNotExist(err))

	got, err := wd.Get()
	require.NoError(t, err)
	assert.Equal(t, wd.GetOriginal(), got)
}

func TestReject_DiscardsWorktreeWithoutTouchingOriginal(t *testing.T) {
	repo := initRepo(t)
	t.Chdir(repo)
	svc, wd := newTestService(t, t.TempDir(), false)
	ctx := context.Background()
	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	require.NoError(t, os.WriteFile(filepath.Join(st.WorktreePath, "new.txt"), []byte("content\n"), 0o644))
	_, err = svc.CommitToolCall(ctx, st, "writeFile", "created new.txt")
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, st))

	_, err = os.Stat(filepath.Join(repo, "new.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(st.WorktreePath)
	assert.True(t, os.IsNotExist(err))

	got, err := wd.Get()
	require.NoError(t, err)
	assert.Equal(t, wd.GetOriginal(), got)
}

func TestFail_PersistsFailureReason(t *testing.T) {
	repo := initRepo(t)
	svc, _ := newTestService(t, t.TempDir(), false)
	ctx := context.Background()
	st, err := svc.Begin(ctx, true, repo)
	require.NoError(t, err)
	require.NotNil(t, st)

	require.NoError(t, svc.Fail(ctx, st, "tool call panicked"))
	assert.True(t, st.IsFailed)
	assert.Equal(t, "tool call panicked", st.FailureReason)
}
