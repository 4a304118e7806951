package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
)

func TestCatalogHandler_GetCatalog(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var catalog CatalogResponse
	require.NoError(t, json.Unmarshal(data, &catalog))

	require.Len(t, catalog.Providers, 2)
	groq, hf := catalog.Providers[0], catalog.Providers[1]

	assert.Equal(t, "groq", groq.ID)
	assert.Equal(t, "GROQ", groq.Name)
	assert.True(t, groq.Configured)
	assert.Equal(t, "llama-3.1-8b-instant", groq.DefaultModel)
	require.NotEmpty(t, groq.Models)
	assert.Equal(t, []string{"chat"}, groq.Models[0].Capabilities)

	assert.Equal(t, "huggingface", hf.ID)
	assert.Equal(t, "Hugging Face", hf.Name)
	assert.False(t, hf.Configured)
	assert.Equal(t, []string{"chat", "text_generation"}, hf.Models[0].Capabilities)

	require.Len(t, catalog.Tasks, 3)
	assert.Equal(t, "Summarize in 3 key points", catalog.Tasks[0].ID)

	assert.Equal(t, "groq", catalog.DefaultProvider)
	assert.Equal(t, Range{Min: 0, Max: 1, Step: 0.1, Default: 0.7}, catalog.Temperature)
	assert.Equal(t, Range{Min: 50, Max: 2000, Step: 50, Default: 500}, catalog.MaxTokens)
}

func TestCapabilityNames(t *testing.T) {
	tests := []struct {
		name string
		caps ai.Capability
		want []string
	}{
		{"none", 0, []string{}},
		{"chat", ai.CapabilityChat, []string{"chat"}},
		{"text generation", ai.CapabilityTextGeneration, []string{"text_generation"}},
		{"both", ai.CapabilityChat | ai.CapabilityTextGeneration, []string{"chat", "text_generation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capabilityNames(tt.caps))
		})
	}
}
