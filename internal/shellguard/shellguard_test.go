package shellguard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_CommandSubstitution(t *testing.T) {
	cases := []string{
		"echo $(whoami)",
		"echo `whoami`",
		"cat <(ls /etc)",
		`echo "$(whoami)"`,
	}
	for _, c := range cases {
		err := Validate(c, Options{})
		require.ErrorIs(t, err, ErrCommandSubstitution, c)
	}
}

func TestValidate_EscapedAndQuotedDollarIsSafe(t *testing.T) {
	assert.NoError(t, Validate(`echo '$(whoami)'`, Options{}))
	assert.NoError(t, Validate(`echo \$(whoami)`, Options{}))
}

func TestValidate_Blocklist(t *testing.T) {
	err := Validate("git status && rm -rf /", Options{Blocklist: []string{"rm"}})
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "rm", blocked.Command)
}

func TestValidate_AllowlistRejectsUnlisted(t *testing.T) {
	err := Validate("git status; curl example.com", Options{Allowlist: []string{"git"}})
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "curl", blocked.Command)
}

func TestValidate_AllowlistAcceptsListedChain(t *testing.T) {
	assert.NoError(t, Validate("git status && git diff", Options{Allowlist: []string{"git"}}))
}

func TestCommandRoot_StripsPathAndQuoting(t *testing.T) {
	assert.Equal(t, "git", commandRoot("/usr/bin/git status"))
	assert.Equal(t, "git", commandRoot(`"git" status`))
}

func TestSplitSegments_RespectsQuoting(t *testing.T) {
	segs := splitSegments(`echo "a && b"; echo c`)
	require.Len(t, segs, 2)
	assert.Contains(t, segs[0], `"a && b"`)
}
