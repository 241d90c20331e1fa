package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lamp "github.com/AppleLamps/gpt-lamp"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Completion(context.Context, *lamp.CompletionRequest) (*lamp.CompletionResponse, error) {
	return nil, nil
}
func (f *fakeProvider) CompletionStream(context.Context, *lamp.CompletionRequest) (lamp.Stream, error) {
	return nil, nil
}
func (f *fakeProvider) ImageGeneration(context.Context, *lamp.ImageGenerationRequest) (*lamp.ImageGenerationResponse, error) {
	return nil, nil
}
func (f *fakeProvider) Supports() interface{} { return Capabilities{Completion: true} }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&fakeProvider{name: "openrouter"}))
	require.NoError(t, r.Register(&fakeProvider{name: "openai"}))

	t.Run("get", func(t *testing.T) {
		p, err := r.GetProvider("openrouter")
		require.NoError(t, err)
		assert.Equal(t, "openrouter", p.Name())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := r.GetProvider("ghost")
		assert.Error(t, err)
	})

	t.Run("has", func(t *testing.T) {
		assert.True(t, r.Has("openai"))
		assert.False(t, r.Has("ghost"))
	})

	t.Run("list sorted", func(t *testing.T) {
		assert.Equal(t, []string{"openai", "openrouter"}, r.List())
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		err := r.Register(&fakeProvider{name: "openai"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
	})

	t.Run("nil rejected", func(t *testing.T) {
		assert.Error(t, r.Register(nil))
	})

	t.Run("empty name rejected", func(t *testing.T) {
		assert.Error(t, r.Register(&fakeProvider{name: ""}))
	})

	t.Run("unregister", func(t *testing.T) {
		require.NoError(t, r.Unregister("openai"))
		assert.False(t, r.Has("openai"))
		assert.Error(t, r.Unregister("openai"))
	})
}
