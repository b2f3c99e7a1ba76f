package contenthash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA256Hex_DeterministicAndUppercase(t *testing.T) {
	h1 := SHA256Hex("hello world")
	h2 := SHA256Hex("hello world")
	assert.Equal(t, h1, h2)
	assert.Equal(t, strings.ToUpper(h1), h1)
	assert.Len(t, h1, 64)
}

func TestSHA256Hex_DifferentInputsDiffer(t *testing.T) {
	assert.NotEqual(t, SHA256Hex("a"), SHA256Hex("b"))
}

func TestSHA256Hex_EmptyString(t *testing.T) {
	assert.Equal(t, "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", SHA256Hex(""))
}
