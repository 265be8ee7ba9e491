package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/voice-agent/internal/llm"
)

type fakeProvider struct {
	name       string
	configured bool
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) AvailableModels() []string { return []string{f.name + "-model"} }
func (f *fakeProvider) DefaultModel() string      { return f.name + "-model" }
func (f *fakeProvider) IsConfigured() bool        { return f.configured }
func (f *fakeProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: "ok"}, nil
}

func TestRouter_GetProvider(t *testing.T) {
	r := llm.NewRouter("openai")
	r.RegisterProvider(&fakeProvider{name: "openai", configured: true})
	r.RegisterProvider(&fakeProvider{name: "anthropic", configured: false})

	p, err := r.GetProvider("")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = r.GetProvider("anthropic")
	assert.ErrorContains(t, err, "not configured")

	_, err = r.GetProvider("gemini")
	assert.ErrorContains(t, err, "not found")
}

func TestRouter_ProvidersInfo(t *testing.T) {
	r := llm.NewRouter("openai")
	r.RegisterProvider(&fakeProvider{name: "openai", configured: true})
	r.RegisterProvider(&fakeProvider{name: "ollama", configured: true})
	r.RegisterProvider(&fakeProvider{name: "anthropic", configured: false})

	assert.Equal(t, []string{"ollama", "openai"}, r.ListProviders())

	infos := r.GetProvidersInfo()
	require.Len(t, infos, 3)
	assert.Equal(t, "anthropic", infos[0].Name)
	assert.False(t, infos[0].Configured)
	assert.True(t, infos[2].Default)
}
