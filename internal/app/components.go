// Package app assembles the OCR, provider and dispatch components from
// configuration. The HTTP server and the CLI share it.
package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/config"
	"github.com/fluxbase-eu/ocrlens/internal/observability"
	"github.com/fluxbase-eu/ocrlens/internal/ocr"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

// Components are the long-lived collaborators behind one process
type Components struct {
	OCR        *ocr.Service
	Catalog    *ai.Catalog
	Providers  []ai.Provider
	Dispatcher *analysis.Dispatcher
	APIKeys    map[ai.ProviderType]string
	Metrics    *observability.Metrics

	// DefaultModels is the preselected model per provider
	DefaultModels map[ai.ProviderType]string
}

// Build creates the components. metrics may be nil.
func Build(cfg *config.Config, metrics *observability.Metrics) (*Components, error) {
	ocrService, err := ocr.NewService(ocr.ServiceConfig{
		Enabled:          cfg.OCR.Enabled,
		ProviderType:     ocr.ProviderType(cfg.OCR.Provider),
		DefaultLanguages: cfg.OCR.Languages,
		MinDimension:     cfg.OCR.MinDimension,
		MaxPixels:        cfg.OCR.MaxPixels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR: %w", err)
	}

	catalog := NewCatalog(cfg.Providers)

	keys := map[ai.ProviderType]string{
		ai.ProviderTypeGroq:        cfg.Providers.Groq.APIKey,
		ai.ProviderTypeHuggingFace: cfg.Providers.HuggingFace.APIKey,
	}

	providers, err := NewProviders(cfg.Providers)
	if err != nil {
		_ = ocrService.Close()
		return nil, err
	}

	for _, p := range providers {
		if err := p.ValidateConfig(); err != nil {
			// Calls will fail with a provider error; the other provider stays usable
			log.Warn().Str("provider", p.Name()).Err(err).Msg("Provider is not configured")
		}
	}

	secrets := make([]string, 0, len(keys))
	for _, k := range keys {
		secrets = append(secrets, k)
	}

	dispatcher := analysis.NewDispatcher(analysis.DispatcherConfig{
		Providers: providers,
		Catalog:   catalog,
		Sanitizer: analysis.NewSanitizer(cfg.Analysis.ExposeProviderErrors, secrets...),
		Metrics:   metrics,
	})

	return &Components{
		OCR:        ocrService,
		Catalog:    catalog,
		Providers:  providers,
		Dispatcher: dispatcher,
		APIKeys:    keys,
		Metrics:    metrics,
		DefaultModels: map[ai.ProviderType]string{
			ai.ProviderTypeGroq:        defaultModel(catalog, ai.ProviderTypeGroq, cfg.Providers.Groq.DefaultModel),
			ai.ProviderTypeHuggingFace: defaultModel(catalog, ai.ProviderTypeHuggingFace, cfg.Providers.HuggingFace.DefaultModel),
		},
	}, nil
}

// NewCatalog returns the built-in catalog extended with configured models
func NewCatalog(cfg config.ProvidersConfig) *ai.Catalog {
	catalog := ai.NewCatalog()
	for _, id := range cfg.HuggingFace.TextOnlyModels {
		catalog.Register(ai.Model{
			ID:           id,
			Provider:     ai.ProviderTypeHuggingFace,
			Capabilities: ai.CapabilityTextGeneration,
		})
	}
	register := func(p ai.ProviderType, id string) {
		if id == "" {
			return
		}
		if _, ok := catalog.Lookup(p, id); !ok {
			catalog.Register(ai.Model{ID: id, Provider: p, Capabilities: catalog.Capabilities(p, id)})
		}
	}
	register(ai.ProviderTypeGroq, cfg.Groq.DefaultModel)
	register(ai.ProviderTypeHuggingFace, cfg.HuggingFace.DefaultModel)
	return catalog
}

// NewProviders creates one client per supported provider
func NewProviders(cfg config.ProvidersConfig) ([]ai.Provider, error) {
	groq, err := ai.NewProvider(ai.ProviderConfig{
		Type:    ai.ProviderTypeGroq,
		Model:   cfg.Groq.DefaultModel,
		Timeout: cfg.Groq.Timeout,
		Config: map[string]string{
			"api_key":  cfg.Groq.APIKey,
			"base_url": cfg.Groq.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Groq provider: %w", err)
	}

	hf, err := ai.NewProvider(ai.ProviderConfig{
		Type:    ai.ProviderTypeHuggingFace,
		Model:   cfg.HuggingFace.DefaultModel,
		Timeout: cfg.HuggingFace.Timeout,
		Config: map[string]string{
			"api_key":       cfg.HuggingFace.APIKey,
			"router_url":    cfg.HuggingFace.RouterURL,
			"inference_url": cfg.HuggingFace.InferenceURL,
		},
	})
	if err != nil {
		_ = groq.Close()
		return nil, fmt.Errorf("failed to create Hugging Face provider: %w", err)
	}

	return []ai.Provider{groq, hf}, nil
}

// ResolveModel returns the model to use for a provider. An empty or unknown
// id falls back to the provider's preselected model.
func (c *Components) ResolveModel(p ai.ProviderType, id string) string {
	if id != "" {
		if _, ok := c.Catalog.Lookup(p, id); ok {
			return id
		}
		log.Debug().Str("provider", string(p)).Str("model", id).Msg("Unknown model, using provider default")
	}
	return c.DefaultModels[p]
}

// SessionManager creates the session registry over these components
func (c *Components) SessionManager(cfg config.SessionConfig) *session.Manager {
	return session.NewManager(session.ManagerConfig{
		Extractor:     c.OCR,
		Analyzer:      c.Dispatcher,
		APIKeys:       c.APIKeys,
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
		MaxSessions:   cfg.MaxSessions,
		AnalyzeRate:   cfg.AnalyzeRate,
		AnalyzeBurst:  cfg.AnalyzeBurst,
		MemoTTL:       cfg.MemoTTL,
		Metrics:       c.Metrics,
	})
}

// Close releases the OCR engine and provider clients
func (c *Components) Close() error {
	var errs []error
	if c.OCR != nil {
		errs = append(errs, c.OCR.Close())
	}
	for _, p := range c.Providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

func defaultModel(catalog *ai.Catalog, p ai.ProviderType, configured string) string {
	if configured != "" {
		return configured
	}
	return catalog.DefaultModel(p)
}
