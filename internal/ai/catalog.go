package ai

import (
	"sync"
)

// Capability is a bit set of the call shapes a model is served with
type Capability uint8

const (
	CapabilityChat Capability = 1 << iota
	CapabilityTextGeneration
)

// Has reports whether all bits of c are set
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	switch c {
	case CapabilityChat:
		return "chat"
	case CapabilityTextGeneration:
		return "text_generation"
	case CapabilityChat | CapabilityTextGeneration:
		return "chat,text_generation"
	default:
		return "none"
	}
}

// Model is a catalog entry
type Model struct {
	ID           string       `json:"id"`
	Provider     ProviderType `json:"provider"`
	Capabilities Capability   `json:"-"`
}

// Catalog is the static registry of models offered per provider. The first
// registered model of a provider is its default.
type Catalog struct {
	mu     sync.RWMutex
	models map[ProviderType][]Model
}

// DefaultCatalog carries the models offered out of the box
var DefaultCatalog = NewCatalog()

// NewCatalog returns a catalog seeded with the built-in models
func NewCatalog() *Catalog {
	c := &Catalog{models: make(map[ProviderType][]Model)}
	for _, id := range []string{
		"llama-3.1-8b-instant",
		"openai/gpt-oss-20b",
		"openai/gpt-oss-120b",
		"meta-llama/llama-4-scout-17b-16e-instruct",
	} {
		c.Register(Model{ID: id, Provider: ProviderTypeGroq, Capabilities: CapabilityChat})
	}
	for _, id := range []string{
		"meta-llama/Meta-Llama-3-8B-Instruct",
		"meta-llama/Llama-3.1-8B-Instruct",
		"Qwen/Qwen2.5-7B-Instruct",
	} {
		c.Register(Model{ID: id, Provider: ProviderTypeHuggingFace, Capabilities: CapabilityChat | CapabilityTextGeneration})
	}
	return c
}

// Register adds a model or replaces the capabilities of a known one
func (c *Catalog) Register(m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.models[m.Provider]
	for i := range list {
		if list[i].ID == m.ID {
			list[i].Capabilities = m.Capabilities
			return
		}
	}
	c.models[m.Provider] = append(list, m)
}

// Models returns a copy of the models offered by a provider
func (c *Catalog) Models(p ProviderType) []Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Model, len(c.models[p]))
	copy(out, c.models[p])
	return out
}

// Lookup finds a model by id
func (c *Catalog) Lookup(p ProviderType, id string) (Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.models[p] {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// DefaultModel returns the first model of a provider, or "" if none is registered
func (c *Catalog) DefaultModel(p ProviderType) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if list := c.models[p]; len(list) > 0 {
		return list[0].ID
	}
	return ""
}

// Capabilities returns the declared call shapes of a model. Models missing
// from the catalog get the provider's general capabilities.
func (c *Catalog) Capabilities(p ProviderType, id string) Capability {
	if m, ok := c.Lookup(p, id); ok {
		return m.Capabilities
	}
	switch p {
	case ProviderTypeGroq:
		return CapabilityChat
	case ProviderTypeHuggingFace:
		return CapabilityChat | CapabilityTextGeneration
	default:
		return 0
	}
}
