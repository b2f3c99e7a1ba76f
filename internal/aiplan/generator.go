package aiplan

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/codepunk/cli/internal/config"
	"github.com/codepunk/cli/internal/planengine"
	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/planengine/safety"
	"github.com/codepunk/cli/internal/redact"
	"github.com/codepunk/cli/internal/streamjson"
)

// Error codes returned (never thrown/panicked) by Generate.
const (
	CodeModelUnavailable   = "ModelUnavailable"
	CodeModelOutputInvalid = "ModelOutputInvalid"
	CodeTooManyFiles       = "TooManyFiles"
)

// Error is a typed generator error carrying one of the codes above.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

const systemPrompt = `You are a coding assistant that proposes file changes as a single JSON object.
Respond with exactly one JSON object of the form:
{"files": [{"path": "relative/path", "action": "modify"|"delete", "rationale": "optional explanation"}]}
Do not include any text outside the JSON object.`

var fileTokenPattern = regexp.MustCompile(`[A-Za-z0-9_./\\-]+\.(?:html|css|js|md|json|yml|yaml|toml)`)

var websiteHintPattern = regexp.MustCompile(`(?i)\b(website|static site|landing page)\b`)

const retryDelay = 50 * time.Millisecond

// Options configures one Generate call.
type Options struct {
	ModelID                       string
	RetryInvalidOutput            int
	EnableWebsiteScaffoldFallback bool
	Safety                        config.SafetyOptions
}

// rawFileEntry is the wire shape the fixed system prompt asks the model for.
type rawFileEntry struct {
	Path      string `json:"path"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

type rawFilesDoc struct {
	Files []rawFileEntry `json:"files"`
}

// Generate runs one plan-file generation end-to-end: stream (or send),
// parse, fall back to heuristics, retry, run the safety gate, and persist.
func Generate(ctx context.Context, engine *planengine.Engine, planID, goal string, provider Provider, opts Options) (*planstore.PlanGeneration, error) {
	model, ok := ResolveModel(provider, opts.ModelID)
	if !ok {
		return nil, &Error{Code: CodeModelUnavailable, Message: "no model available for provider " + provider.Name()}
	}

	retryMax := opts.RetryInvalidOutput
	if retryMax < 0 {
		retryMax = 0
	}

	req := Request{Model: model.Model, SystemPrompt: systemPrompt, UserPrompt: goal}

	var files []planstore.PlanFileChange
	var iterations int

	for attempt := 0; ; attempt++ {
		iterations++
		content, err := fetchContent(ctx, provider, model, req)
		if err != nil {
			return nil, &Error{Code: CodeModelUnavailable, Message: err.Error()}
		}

		if doc, ok := tryParseJSON(content); ok {
			// A syntactically valid files document, even if its files array
			// is empty, is not a retry condition — step 8 injects a
			// placeholder for that case instead.
			files = mapFiles(doc)
			break
		}

		files = heuristicFiles(goal, content, opts.EnableWebsiteScaffoldFallback)
		if len(files) > 0 {
			break
		}

		if attempt >= retryMax {
			preview := content
			if len(preview) > 500 {
				preview = preview[:500]
			}
			return nil, &Error{Code: CodeModelOutputInvalid, Message: "model output could not be parsed: " + redact.String(preview)}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	if len(files) == 0 {
		files = []planstore.PlanFileChange{PlaceholderFile()}
	}

	safetyFlags, err := safety.Apply(files, opts.Safety)
	if err != nil {
		return nil, &Error{Code: CodeTooManyFiles, Message: err.Error()}
	}

	generation := &planstore.PlanGeneration{
		Provider:    provider.Name(),
		Model:       model.Model,
		Iterations:  iterations,
		SafetyFlags: safetyFlags,
		CreatedUtc:  time.Now().UTC().Format(time.RFC3339),
	}

	if err := engine.AttachFiles(ctx, planID, files, generation); err != nil {
		return nil, err
	}
	return generation, nil
}

// fetchContent streams when the model supports it, feeding chunks into the
// streaming JSON assembler and stopping at the first complete value; it
// falls back to a single non-streaming send if streaming yields nothing or
// fails.
func fetchContent(ctx context.Context, provider Provider, model Model, req Request) (string, error) {
	if model.SupportsStreaming {
		if content, ok := streamContent(ctx, provider, req); ok {
			return content, nil
		}
	}
	resp, err := provider.Send(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func streamContent(ctx context.Context, provider Provider, req Request) (string, bool) {
	ch, err := provider.Stream(ctx, req)
	if err != nil {
		return "", false
	}

	assembler := streamjson.New(streamjson.DefaultMaxBytes)
	for {
		select {
		case <-ctx.Done():
			return "", false
		case chunk, open := <-ch:
			if !open {
				return "", false
			}
			if chunk.Content != "" {
				assembler.Append([]byte(chunk.Content))
				if _, rawText, _, ok := assembler.TryGetNext(); ok {
					return rawText, true
				}
			}
			if chunk.Done {
				return "", false
			}
		}
	}
}

// tryParseJSON reports whether content is a syntactically valid JSON object
// matching the files-document shape the system prompt demands.
func tryParseJSON(content string) (rawFilesDoc, bool) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &root); err != nil {
		return rawFilesDoc{}, false
	}
	rawFiles, ok := root["files"]
	if !ok || strings.TrimSpace(string(rawFiles)) == "null" {
		return rawFilesDoc{}, false
	}
	var doc rawFilesDoc
	if err := json.Unmarshal(rawFiles, &doc.Files); err != nil {
		return rawFilesDoc{}, false
	}
	return doc, true
}

// mapFiles maps each parsed entry to a generated PlanFileChange.
func mapFiles(doc rawFilesDoc) []planstore.PlanFileChange {
	out := make([]planstore.PlanFileChange, 0, len(doc.Files))
	for _, f := range doc.Files {
		if f.Path == "" {
			continue
		}
		out = append(out, planstore.PlanFileChange{
			Path:      f.Path,
			Rationale: f.Rationale,
			IsDelete:  f.Action == "delete",
			Generated: true,
		})
	}
	return out
}

// heuristicFiles is the fallback when the model's output isn't valid JSON:
// regex-extract file-like tokens, capped at 10, deduplicated
// case-insensitively. If nothing matches and EnableWebsiteScaffoldFallback
// is set and the goal/content hints at a website, emit a two-file scaffold.
func heuristicFiles(goal, content string, enableWebsiteScaffold bool) []planstore.PlanFileChange {
	combined := goal + "\n" + content
	matches := fileTokenPattern.FindAllString(combined, -1)

	seen := make(map[string]bool)
	var out []planstore.PlanFileChange
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, planstore.PlanFileChange{Path: m, Generated: true})
		if len(out) == 10 {
			break
		}
	}

	if len(out) == 0 && enableWebsiteScaffold && websiteHintPattern.MatchString(combined) {
		out = append(out,
			planstore.PlanFileChange{Path: "public/index.html", Generated: true, Rationale: "scaffolded entry point"},
			planstore.PlanFileChange{Path: "public/styles.css", Generated: true, Rationale: "scaffolded stylesheet"},
		)
	}

	return out
}

// PlaceholderFile is injected when no files could be parsed or inferred at
// all, so a generation attempt always yields a reviewable plan entry.
func PlaceholderFile() planstore.PlanFileChange {
	return planstore.PlanFileChange{
		Path:      "README.md",
		Rationale: "No files parsed; placeholder",
		Generated: true,
	}
}
