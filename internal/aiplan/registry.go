package aiplan

import (
	"context"
	"errors"

	"github.com/codepunk/cli/internal/config"
)

// catalog lists the model metadata for each known provider. Provider HTTP
// transports themselves are out of scope — see the package doc — so every
// provider built from this catalog answers Send/Stream with
// ErrTransportUnavailable rather than making a real network call.
var catalog = map[string][]Model{
	"anthropic": {
		{Provider: "anthropic", Model: "claude-opus-4", SupportsTools: true, SupportsStreaming: true, MaxTokens: 8192, ContextWindow: 200000},
		{Provider: "anthropic", Model: "claude-sonnet-4", SupportsTools: true, SupportsStreaming: true, MaxTokens: 8192, ContextWindow: 200000},
	},
	"openai": {
		{Provider: "openai", Model: "gpt-4.1", SupportsTools: true, SupportsStreaming: true, MaxTokens: 16384, ContextWindow: 128000},
		{Provider: "openai", Model: "gpt-4.1-mini", SupportsTools: true, SupportsStreaming: true, MaxTokens: 16384, ContextWindow: 128000},
	},
	"google": {
		{Provider: "google", Model: "gemini-2.5-pro", SupportsTools: true, SupportsStreaming: true, MaxTokens: 8192, ContextWindow: 1000000},
	},
}

// ErrTransportUnavailable is returned by stubProvider's Send/Stream: the
// catalog above describes what models exist, not how to reach them.
var ErrTransportUnavailable = errors.New("provider transport not configured")

// stubProvider satisfies Provider using only the static catalog; it is a
// placeholder for a real HTTP-backed implementation, intentionally out of
// scope here.
type stubProvider struct {
	name   string
	models []Model
}

func (p *stubProvider) Name() string      { return p.name }
func (p *stubProvider) Models() []Model   { return p.models }
func (p *stubProvider) Send(_ context.Context, _ Request) (Response, error) {
	return Response{}, ErrTransportUnavailable
}
func (p *stubProvider) Stream(_ context.Context, _ Request) (<-chan StreamChunk, error) {
	return nil, ErrTransportUnavailable
}
func (p *stubProvider) FetchModels(_ context.Context) ([]Model, error) {
	return p.models, nil
}

// Registry resolves provider names to Provider instances, annotating each
// model's HasKey from auth.json.
type Registry struct {
	auth map[string]config.AuthEntry
}

// NewRegistry loads auth.json via config.LoadAuth and builds a Registry over
// the static catalog above.
func NewRegistry() (*Registry, error) {
	auth, err := config.LoadAuth()
	if err != nil {
		return nil, err
	}
	return &Registry{auth: auth}, nil
}

// Names returns every known provider name in a fixed order, for stable output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	// insertion order from a map isn't stable; a fixed, documented order
	// keeps `models list` output deterministic.
	order := []string{"anthropic", "openai", "google"}
	out := make([]string, 0, len(order))
	for _, n := range order {
		for _, have := range names {
			if have == n {
				out = append(out, n)
			}
		}
	}
	return out
}

// Get returns the named provider, with HasKey filled in from auth.json, or
// false if the provider name isn't in the catalog.
func (r *Registry) Get(name string) (Provider, bool) {
	models, ok := catalog[name]
	if !ok {
		return nil, false
	}
	_, hasKey := r.auth[name]
	annotated := make([]Model, len(models))
	for i, m := range models {
		m.HasKey = hasKey
		annotated[i] = m
	}
	return &stubProvider{name: name, models: annotated}, true
}

// AllModels returns every model across every provider, annotated with
// HasKey, for `models list`.
func (r *Registry) AllModels() []Model {
	var out []Model
	for _, name := range r.Names() {
		p, _ := r.Get(name)
		out = append(out, p.Models()...)
	}
	return out
}
