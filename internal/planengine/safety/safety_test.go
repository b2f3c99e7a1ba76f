package safety

import (
	"errors"
	"strings"
	"testing"

	"github.com/codepunk/cli/internal/config"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opts() config.SafetyOptions {
	return config.SafetyOptions{
		MaxFiles:        10,
		MaxPathLength:   260,
		MaxPerFileBytes: 40,
		MaxTotalBytes:   80,
		SecretPatterns:  []string{"sk-live-"},
	}
}

func TestApply_FlagsUnsafePath(t *testing.T) {
	files := []planstore.PlanFileChange{{Path: "/etc/passwd"}, {Path: "../outside"}, {Path: "ok/path.go"}}
	flags, err := Apply(files, opts())
	require.NoError(t, err)
	assert.Contains(t, flags, DiagnosticUnsafePath)
	assert.Contains(t, files[0].Diagnostics, DiagnosticUnsafePath)
	assert.Contains(t, files[1].Diagnostics, DiagnosticUnsafePath)
	assert.Empty(t, files[2].Diagnostics)
}

func TestApply_RedactsConfiguredSecretPatterns(t *testing.T) {
	files := []planstore.PlanFileChange{{Path: "a.go", Rationale: "uses key SK-LIVE-abc123 for billing"}}
	flags, err := Apply(files, opts())
	require.NoError(t, err)
	assert.Contains(t, flags, DiagnosticSecretRedacted)
	assert.True(t, strings.Contains(files[0].Rationale, "<REDACTED>"))
	assert.False(t, strings.Contains(strings.ToLower(files[0].Rationale), "sk-live-abc123"))
}

func TestApply_TruncatesPerFileRationale(t *testing.T) {
	long := strings.Repeat("x", 100)
	files := []planstore.PlanFileChange{{Path: "a.go", Rationale: long}}
	o := opts()
	o.MaxTotalBytes = 0 // isolate per-file truncation
	flags, err := Apply(files, o)
	require.NoError(t, err)
	assert.Contains(t, flags, DiagnosticTruncatedContent)
	assert.LessOrEqual(t, len(files[0].Rationale), o.MaxPerFileBytes+3)
}

func TestApply_TruncatesAggregateAndDropsLaterEntries(t *testing.T) {
	files := []planstore.PlanFileChange{
		{Path: "a.go", Rationale: strings.Repeat("a", 40)},
		{Path: "b.go", Rationale: strings.Repeat("b", 40)},
		{Path: "c.go", Rationale: strings.Repeat("c", 40)},
	}
	flags, err := Apply(files, opts())
	require.NoError(t, err)
	assert.Contains(t, flags, DiagnosticTruncatedAggregate)
	assert.Empty(t, files[2].Rationale)
}

func TestApply_TooManyFilesAborts(t *testing.T) {
	files := make([]planstore.PlanFileChange, 3)
	for i := range files {
		files[i].Path = "f.go"
	}
	o := opts()
	o.MaxFiles = 2
	_, err := Apply(files, o)
	var tooMany *ErrTooManyFiles
	require.True(t, errors.As(err, &tooMany))
	assert.Equal(t, 3, tooMany.Count)
	assert.Equal(t, 2, tooMany.Max)
}

func TestCheckFileCount_ZeroMaxMeansUnlimited(t *testing.T) {
	assert.NoError(t, CheckFileCount(1000, config.SafetyOptions{MaxFiles: 0}))
}
