package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_LeavesOrdinaryTextUnchanged(t *testing.T) {
	s := "the quick brown fox jumps over the lazy dog"
	assert.Equal(t, s, String(s))
}

func TestString_RedactsHighEntropyToken(t *testing.T) {
	s := "auth header: Bearer aZ9kLp3qR7xT2mN8vB4cD6fG1hJ5sW0yE"
	got := String(s)
	assert.Contains(t, got, "REDACTED")
	assert.NotContains(t, got, "aZ9kLp3qR7xT2mN8vB4cD6fG1hJ5sW0yE")
}

func TestString_RedactsMultipleDistinctSecrets(t *testing.T) {
	s := "first aZ9kLp3qR7xT2mN8vB4cD6fG1hJ5sW0yE then plain words then Q7wE3rT9yU1iO5pA8sD2fG6hJ4kL0zX"
	got := String(s)
	assert.Equal(t, 2, strings.Count(got, "REDACTED"))
	assert.Contains(t, got, "then plain words then")
}

func TestString_LeavesGitCommitAndContentHashesUnredacted(t *testing.T) {
	s := "reverts commit a1b2c3d4e5f67890abcdef1234567890abcdef12, content hash " +
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	assert.Equal(t, s, String(s))
}

func TestBytes_ReturnsSameSliceWhenNothingRedacted(t *testing.T) {
	b := []byte("nothing secret here")
	got := Bytes(b)
	assert.Equal(t, b, got)
}

func TestBytes_RedactsLikeString(t *testing.T) {
	b := []byte("token: aZ9kLp3qR7xT2mN8vB4cD6fG1hJ5sW0yE")
	got := Bytes(b)
	assert.Contains(t, string(got), "REDACTED")
}
