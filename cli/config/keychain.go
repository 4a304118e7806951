// Package config resolves provider API keys for the CLI. Keys come from the
// server configuration (file or environment) first and from the system
// keychain second.
package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/zalando/go-keyring"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	appconfig "github.com/fluxbase-eu/ocrlens/internal/config"
)

const (
	// ServiceName is the keychain service identifier
	ServiceName = "ocrlens"
)

// KeySource tells where a provider key was found
type KeySource string

const (
	KeySourceConfig   KeySource = "config"
	KeySourceKeychain KeySource = "keychain"
	KeySourceNone     KeySource = "none"
)

// KeyStore stores provider API keys in the system keychain
type KeyStore struct {
	serviceName string
}

// NewKeyStore creates a new keychain store
func NewKeyStore() *KeyStore {
	return &KeyStore{
		serviceName: ServiceName,
	}
}

// IsAvailable checks if keychain is available on this system
func (k *KeyStore) IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		// Linux requires a secret service (like gnome-keyring)
		err := keyring.Set(k.serviceName, "__test__", "test")
		if err != nil {
			return false
		}
		_ = keyring.Delete(k.serviceName, "__test__")
		return true
	default:
		return false
	}
}

// Save stores the key of a provider
func (k *KeyStore) Save(provider ai.ProviderType, key string) error {
	if key == "" {
		return fmt.Errorf("refusing to store an empty key for %s", provider.DisplayName())
	}
	if err := keyring.Set(k.serviceName, string(provider), key); err != nil {
		return fmt.Errorf("failed to save to keychain: %w", err)
	}
	return nil
}

// Load returns the stored key of a provider, or "" if there is none
func (k *KeyStore) Load(provider ai.ProviderType) (string, error) {
	key, err := keyring.Get(k.serviceName, string(provider))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load from keychain: %w", err)
	}
	return key, nil
}

// Delete removes the stored key of a provider
func (k *KeyStore) Delete(provider ai.ProviderType) error {
	err := keyring.Delete(k.serviceName, string(provider))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return nil
}

// Fill sets the keys missing from cfg from the keychain and reports where
// each provider's key came from. Keychain failures leave the key empty.
func (k *KeyStore) Fill(cfg *appconfig.ProvidersConfig) map[ai.ProviderType]KeySource {
	sources := make(map[ai.ProviderType]KeySource, len(ai.ProviderTypes))
	for _, p := range ai.ProviderTypes {
		slot := keySlot(cfg, p)
		if *slot != "" {
			sources[p] = KeySourceConfig
			continue
		}
		key, err := k.Load(p)
		if err != nil || key == "" {
			sources[p] = KeySourceNone
			continue
		}
		*slot = key
		sources[p] = KeySourceKeychain
	}
	return sources
}

// Set stores key in cfg for the provider
func Set(cfg *appconfig.ProvidersConfig, provider ai.ProviderType, key string) {
	*keySlot(cfg, provider) = key
}

func keySlot(cfg *appconfig.ProvidersConfig, provider ai.ProviderType) *string {
	if provider == ai.ProviderTypeHuggingFace {
		return &cfg.HuggingFace.APIKey
	}
	return &cfg.Groq.APIKey
}
