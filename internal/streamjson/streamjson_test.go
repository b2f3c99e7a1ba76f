package streamjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryGetNext_CompleteObjectInOneAppend(t *testing.T) {
	a := New(0)
	a.Append([]byte(`{"files":[{"path":"a.go"}]}`))

	v, raw, diag, ok := a.TryGetNext()
	require.True(t, ok, diag)
	assert.Equal(t, `{"files":[{"path":"a.go"}]}`, raw)
	m, isMap := v.(map[string]any)
	require.True(t, isMap)
	assert.Contains(t, m, "files")
}

func TestTryGetNext_IncompleteObjectWaitsForMore(t *testing.T) {
	a := New(0)
	a.Append([]byte(`{"files":[`))
	_, _, diag, ok := a.TryGetNext()
	assert.False(t, ok)
	assert.Equal(t, DiagIncomplete, diag)

	a.Append([]byte(`]}`))
	_, _, _, ok = a.TryGetNext()
	assert.True(t, ok)
}

func TestTryGetNext_SkipsLeadingJunkBeforeRealValue(t *testing.T) {
	a := New(0)
	a.Append([]byte(`here is your plan: {"files":[]}`))
	v, _, diag, ok := a.TryGetNext()
	require.True(t, ok, diag)
	assert.Equal(t, map[string]any{"files": []any{}}, v)
}

func TestTryGetNext_NoJSONStartFound(t *testing.T) {
	a := New(0)
	a.Append([]byte(`no json here at all`))
	_, _, diag, ok := a.TryGetNext()
	assert.False(t, ok)
	assert.Equal(t, DiagNoJSONStart, diag)
}

func TestTryGetNext_SSEFraming(t *testing.T) {
	a := New(0)
	a.Append([]byte("data: {\"files\""))
	a.Append([]byte(":[]}\n\n"))

	v, raw, diag, ok := a.TryGetNext()
	require.True(t, ok, diag)
	assert.Equal(t, `{"files":[]}`, raw)
	assert.Equal(t, map[string]any{"files": []any{}}, v)
}

func TestTryGetNext_SSEMalformedEventIsConsumedNotRetried(t *testing.T) {
	a := New(0)
	a.Append([]byte("data: {not json}\n\n"))
	_, _, diag, ok := a.TryGetNext()
	assert.False(t, ok)
	assert.Contains(t, diag, "sse-json-parse-failed")

	// the malformed event was consumed; a fresh append starts clean
	a.Append([]byte(`{"files":[]}`))
	_, _, _, ok = a.TryGetNext()
	assert.True(t, ok)
}

func TestAppend_OverflowStopsAcceptingData(t *testing.T) {
	a := New(4)
	a.Append([]byte("12345"))
	assert.True(t, a.HasOverflowed())

	a.Append([]byte("more"))
	_, _, diag, ok := a.TryGetNext()
	assert.False(t, ok)
	assert.Equal(t, DiagNoJSONStart, diag)
}

func TestTryGetNext_NoValidJSONAmongCandidates(t *testing.T) {
	// '0' is a start byte but "0xFF" never decodes as valid JSON.
	a := New(0)
	a.Append([]byte("0xFF"))
	_, _, diag, ok := a.TryGetNext()
	assert.False(t, ok)
	assert.Equal(t, DiagNoValidJSONFound, diag)
}
