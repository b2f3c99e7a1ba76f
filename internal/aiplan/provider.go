// Package aiplan implements the AI Plan Generator (C7): it builds a fixed
// prompt, streams the model's response through the streaming JSON
// assembler, validates and maps the result into staged plan changes, and
// feeds them through the Plan Safety Gate before persistence.
//
// Providers (OpenAI/Anthropic/etc.) are out of scope beyond their streaming
// contract; Provider below is that contract, modeled as an interface rather
// than a class hierarchy.
package aiplan

import "context"

// Model describes one model a Provider supports.
type Model struct {
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	HasKey            bool   `json:"hasKey"`
	SupportsTools     bool   `json:"supportsTools"`
	SupportsStreaming bool   `json:"supportsStreaming"`
	MaxTokens         int    `json:"maxTokens"`
	ContextWindow     int    `json:"contextWindow"`
}

// Request is one generation request sent to a Provider.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Response is a non-streaming Provider reply.
type Response struct {
	Content          string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
}

// StreamChunk is one delta from a streaming Provider reply.
type StreamChunk struct {
	Content string
	Done    bool
}

// Provider is the external collaborator contract: name, supported models,
// and the send/stream/fetch-models operations the generator drives.
type Provider interface {
	Name() string
	Models() []Model
	Send(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
	FetchModels(ctx context.Context) ([]Model, error)
}

// ResolveModel picks modelID from provider's models, or the provider's first
// model if modelID is empty. It reports false if modelID is not among the
// provider's models or the provider has no models.
func ResolveModel(provider Provider, modelID string) (Model, bool) {
	models := provider.Models()
	if modelID != "" {
		for _, m := range models {
			if m.Model == modelID {
				return m, true
			}
		}
		return Model{}, false
	}
	if len(models) == 0 {
		return Model{}, false
	}
	return models[0], true
}
