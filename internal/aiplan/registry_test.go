package aiplan

import (
	"context"
	"testing"

	"github.com/codepunk/cli/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NamesAreInFixedOrder(t *testing.T) {
	r := &Registry{}
	assert.Equal(t, []string{"anthropic", "openai", "google"}, r.Names())
}

func TestRegistry_GetUnknownProvider(t *testing.T) {
	r := &Registry{}
	_, ok := r.Get("not-a-provider")
	assert.False(t, ok)
}

func TestRegistry_GetAnnotatesHasKeyFromAuth(t *testing.T) {
	r := &Registry{auth: map[string]config.AuthEntry{"anthropic": {APIKey: "sk-test"}}}
	p, ok := r.Get("anthropic")
	require.True(t, ok)
	for _, m := range p.Models() {
		assert.True(t, m.HasKey)
	}

	openai, ok := r.Get("openai")
	require.True(t, ok)
	for _, m := range openai.Models() {
		assert.False(t, m.HasKey)
	}
}

func TestRegistry_AllModelsCoversEveryProvider(t *testing.T) {
	r := &Registry{}
	all := r.AllModels()
	assert.Greater(t, len(all), len(r.Names()))
}

func TestStubProvider_SendAndStreamReturnTransportUnavailable(t *testing.T) {
	r := &Registry{}
	p, ok := r.Get("anthropic")
	require.True(t, ok)

	ctx := context.Background()
	_, err := p.Send(ctx, Request{})
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	_, err = p.Stream(ctx, Request{})
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}
