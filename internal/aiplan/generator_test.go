package aiplan

import (
	"context"
	"testing"

	"github.com/codepunk/cli/internal/config"
	"github.com/codepunk/cli/internal/planengine"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendProvider struct {
	name     string
	models   []Model
	response Response
	err      error
}

func (p *sendProvider) Name() string    { return p.name }
func (p *sendProvider) Models() []Model { return p.models }
func (p *sendProvider) Send(_ context.Context, _ Request) (Response, error) {
	return p.response, p.err
}
func (p *sendProvider) Stream(_ context.Context, _ Request) (<-chan StreamChunk, error) {
	return nil, errNoStream
}
func (p *sendProvider) FetchModels(_ context.Context) ([]Model, error) { return p.models, nil }

var errNoStream = assertErr("no streaming in this fake")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestEngine(t *testing.T) *planengine.Engine {
	t.Helper()
	return planengine.New(planstore.New(t.TempDir()), t.TempDir())
}

func TestGenerate_NoModelAvailable(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{name: "anthropic"}
	_, err = Generate(ctx, engine, planID, "add a readme", p, Options{})
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeModelUnavailable, genErr.Code)
}

func TestGenerate_ParsesValidJSONFilesDocument(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{
		name:     "anthropic",
		models:   []Model{{Model: "claude-sonnet-4"}},
		response: Response{Content: `{"files":[{"path":"a.go","action":"modify","rationale":"fix it"}]}`},
	}

	gen, err := Generate(ctx, engine, planID, "fix a.go", p, Options{Safety: config.DefaultSafetyOptions()})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", gen.Provider)
	assert.Equal(t, 1, gen.Iterations)

	diffs, err := engine.Diff(ctx, planID)
	require.NoError(t, err)
	assert.Contains(t, diffs, "a.go")
}

func TestGenerate_FallsBackToHeuristicFileExtraction(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{
		name:     "anthropic",
		models:   []Model{{Model: "claude-sonnet-4"}},
		response: Response{Content: "not json, but mentions index.html and styles.css directly"},
	}

	gen, err := Generate(ctx, engine, planID, "scaffold a page", p, Options{Safety: config.DefaultSafetyOptions()})
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Iterations)

	diffs, err := engine.Diff(ctx, planID)
	require.NoError(t, err)
	assert.Contains(t, diffs, "index.html")
	assert.Contains(t, diffs, "styles.css")
}

func TestGenerate_PlaceholderWhenParsedDocumentHasNoFiles(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{
		name:     "anthropic",
		models:   []Model{{Model: "claude-sonnet-4"}},
		response: Response{Content: `{"files":[]}`},
	}

	gen, err := Generate(ctx, engine, planID, "do something vague", p, Options{Safety: config.DefaultSafetyOptions(), RetryInvalidOutput: 0})
	require.NoError(t, err)
	_ = gen

	diffs, err := engine.Diff(ctx, planID)
	require.NoError(t, err)
	assert.Contains(t, diffs, "README.md")
}

func TestGenerate_RetriesThenFailsOnPersistentInvalidOutput(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{
		name:     "anthropic",
		models:   []Model{{Model: "claude-sonnet-4"}},
		response: Response{Content: "nothing useful here at all"},
	}

	_, err = Generate(ctx, engine, planID, "do something vague", p, Options{Safety: config.DefaultSafetyOptions(), RetryInvalidOutput: 1})
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeModelOutputInvalid, genErr.Code)
}

func TestGenerate_WebsiteScaffoldFallback(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{
		name:     "anthropic",
		models:   []Model{{Model: "claude-sonnet-4"}},
		response: Response{Content: "I can help build a static site for you."},
	}

	_, err = Generate(ctx, engine, planID, "build a website", p, Options{
		Safety:                        config.DefaultSafetyOptions(),
		EnableWebsiteScaffoldFallback: true,
	})
	require.NoError(t, err)

	diffs, err := engine.Diff(ctx, planID)
	require.NoError(t, err)
	assert.Contains(t, diffs, "public/index.html")
	assert.Contains(t, diffs, "public/styles.css")
}

func TestGenerate_TooManyFilesAborts(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	planID, err := engine.Create(ctx, "goal")
	require.NoError(t, err)

	p := &sendProvider{
		name:     "anthropic",
		models:   []Model{{Model: "claude-sonnet-4"}},
		response: Response{Content: `{"files":[{"path":"a.go"},{"path":"b.go"},{"path":"c.go"}]}`},
	}

	opts := Options{Safety: config.DefaultSafetyOptions()}
	opts.Safety.MaxFiles = 2

	_, err = Generate(ctx, engine, planID, "touch three files", p, opts)
	var genErr *Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeTooManyFiles, genErr.Code)
}
