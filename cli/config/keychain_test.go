package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	appconfig "github.com/fluxbase-eu/ocrlens/internal/config"
)

func TestKeyStore_SaveLoadDelete(t *testing.T) {
	keyring.MockInit()
	store := NewKeyStore()

	key, err := store.Load(ai.ProviderTypeGroq)
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, store.Save(ai.ProviderTypeGroq, "gsk_test"))

	key, err = store.Load(ai.ProviderTypeGroq)
	require.NoError(t, err)
	assert.Equal(t, "gsk_test", key)

	require.NoError(t, store.Delete(ai.ProviderTypeGroq))
	key, err = store.Load(ai.ProviderTypeGroq)
	require.NoError(t, err)
	assert.Empty(t, key)

	// Deleting a missing key is not an error
	assert.NoError(t, store.Delete(ai.ProviderTypeGroq))
}

func TestKeyStore_SaveRejectsEmptyKey(t *testing.T) {
	keyring.MockInit()
	err := NewKeyStore().Save(ai.ProviderTypeHuggingFace, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hugging Face")
}

func TestKeyStore_Fill(t *testing.T) {
	keyring.MockInit()
	store := NewKeyStore()
	require.NoError(t, store.Save(ai.ProviderTypeGroq, "from-keychain"))
	require.NoError(t, store.Save(ai.ProviderTypeHuggingFace, "ignored"))

	cfg := appconfig.ProvidersConfig{}
	cfg.HuggingFace.APIKey = "from-env"

	sources := store.Fill(&cfg)

	assert.Equal(t, "from-keychain", cfg.Groq.APIKey)
	assert.Equal(t, "from-env", cfg.HuggingFace.APIKey)
	assert.Equal(t, KeySourceKeychain, sources[ai.ProviderTypeGroq])
	assert.Equal(t, KeySourceConfig, sources[ai.ProviderTypeHuggingFace])
}

func TestKeyStore_FillWithoutKeys(t *testing.T) {
	keyring.MockInit()
	cfg := appconfig.ProvidersConfig{}

	sources := NewKeyStore().Fill(&cfg)

	assert.Empty(t, cfg.Groq.APIKey)
	assert.Equal(t, KeySourceNone, sources[ai.ProviderTypeGroq])
	assert.Equal(t, KeySourceNone, sources[ai.ProviderTypeHuggingFace])
}

func TestSet(t *testing.T) {
	cfg := appconfig.ProvidersConfig{}
	Set(&cfg, ai.ProviderTypeHuggingFace, "hf_key")
	Set(&cfg, ai.ProviderTypeGroq, "gsk_key")

	assert.Equal(t, "hf_key", cfg.HuggingFace.APIKey)
	assert.Equal(t, "gsk_key", cfg.Groq.APIKey)
}
