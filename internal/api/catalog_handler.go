package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/app"
	"github.com/fluxbase-eu/ocrlens/internal/config"
)

// Slider ranges offered by the analysis form. The request validator accepts
// a wider token range.
const (
	temperatureStep = 0.1
	formMinTokens   = 50
	formMaxTokens   = 2000
	formTokensStep  = 50
)

// CatalogHandler describes what the analysis form can offer
type CatalogHandler struct {
	components *app.Components
	defaults   config.AnalysisConfig
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(components *app.Components, defaults config.AnalysisConfig) *CatalogHandler {
	return &CatalogHandler{components: components, defaults: defaults}
}

// ModelInfo is one selectable model
type ModelInfo struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// ProviderInfo is one selectable provider
type ProviderInfo struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Configured   bool        `json:"configured"`
	DefaultModel string      `json:"default_model"`
	Models       []ModelInfo `json:"models"`
}

// TaskInfo is one selectable task
type TaskInfo struct {
	ID          string `json:"id"`
	Instruction string `json:"instruction"`
}

// Range describes a numeric slider
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

// CatalogResponse is returned by GET /api/v1/catalog
type CatalogResponse struct {
	Providers       []ProviderInfo `json:"providers"`
	Tasks           []TaskInfo     `json:"tasks"`
	DefaultProvider string         `json:"default_provider"`
	DefaultTask     string         `json:"default_task"`
	Temperature     Range          `json:"temperature"`
	MaxTokens       Range          `json:"max_tokens"`
}

// GetCatalog handles GET /api/v1/catalog
func (h *CatalogHandler) GetCatalog(c *fiber.Ctx) error {
	return c.JSON(h.build())
}

func (h *CatalogHandler) build() CatalogResponse {
	resp := CatalogResponse{
		DefaultProvider: h.defaults.DefaultProvider,
		DefaultTask:     h.defaults.DefaultTask,
		Temperature: Range{
			Min:     analysis.MinTemperature,
			Max:     analysis.MaxTemperature,
			Step:    temperatureStep,
			Default: h.defaults.Temperature,
		},
		MaxTokens: Range{
			Min:     formMinTokens,
			Max:     formMaxTokens,
			Step:    formTokensStep,
			Default: float64(h.defaults.MaxTokens),
		},
	}

	for _, p := range ai.ProviderTypes {
		info := ProviderInfo{
			ID:           string(p),
			Name:         p.DisplayName(),
			Configured:   h.components.APIKeys[p] != "",
			DefaultModel: h.components.DefaultModels[p],
		}
		for _, m := range h.components.Catalog.Models(p) {
			info.Models = append(info.Models, ModelInfo{ID: m.ID, Capabilities: capabilityNames(m.Capabilities)})
		}
		resp.Providers = append(resp.Providers, info)
	}

	for _, t := range analysis.Tasks {
		resp.Tasks = append(resp.Tasks, TaskInfo{ID: string(t), Instruction: t.Instruction()})
	}

	return resp
}

func capabilityNames(c ai.Capability) []string {
	names := []string{}
	if c.Has(ai.CapabilityChat) {
		names = append(names, "chat")
	}
	if c.Has(ai.CapabilityTextGeneration) {
		names = append(names, "text_generation")
	}
	return names
}
