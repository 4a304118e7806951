// Package ai holds the clients for the hosted LLM providers. Every client
// speaks the chat shape through Provider; clients that can also complete a
// flattened prompt implement TextGenerator.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderType represents the type of AI provider
type ProviderType string

const (
	ProviderTypeGroq        ProviderType = "groq"
	ProviderTypeHuggingFace ProviderType = "huggingface"
)

// ProviderTypes lists the supported providers in display order
var ProviderTypes = []ProviderType{ProviderTypeGroq, ProviderTypeHuggingFace}

// ParseProviderType accepts the canonical tag as well as the display names
// ("GROQ", "Hugging Face") and the short form "hf".
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "groq":
		return ProviderTypeGroq, nil
	case "huggingface", "hugging face", "hugging_face", "hf":
		return ProviderTypeHuggingFace, nil
	default:
		return "", fmt.Errorf("unsupported provider type: %q", s)
	}
}

// DisplayName returns the label used in user-facing text
func (t ProviderType) DisplayName() string {
	switch t {
	case ProviderTypeGroq:
		return "GROQ"
	case ProviderTypeHuggingFace:
		return "Hugging Face"
	default:
		return string(t)
	}
}

// Role represents the role of a message in a conversation
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a message in a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the AI provider
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a non-streaming response from the AI provider
type ChatResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []Choice    `json:"choices"`
	Usage   *UsageStats `json:"usage,omitempty"`
}

// Content returns the text of the first choice, or "" when there is none
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a single completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// UsageStats represents token usage statistics
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TextGenerationRequest is a completion over a single flattened prompt
type TextGenerationRequest struct {
	Model          string
	Prompt         string
	MaxNewTokens   int
	Temperature    float64
	TopP           float64
	DoSample       bool
	ReturnFullText bool
}

// Provider defines the interface for AI providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Type returns the provider type
	Type() ProviderType

	// Chat sends a non-streaming chat request
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ValidateConfig validates the provider configuration
	ValidateConfig() error

	// Close cleans up any resources
	Close() error
}

// TextGenerator is implemented by providers that can complete a plain prompt
type TextGenerator interface {
	GenerateText(ctx context.Context, req *TextGenerationRequest) (string, error)
}

// ProviderConfig represents the base configuration for all providers
type ProviderConfig struct {
	Name    string            `json:"name"`
	Type    ProviderType      `json:"type"`
	Model   string            `json:"model"`
	Timeout time.Duration     `json:"timeout"`
	Config  map[string]string `json:"config"` // Provider-specific config (api_key, base_url, etc.)
}

// GroqConfig represents Groq-specific configuration
type GroqConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Timeout time.Duration
}

// HuggingFaceConfig represents Hugging Face-specific configuration
type HuggingFaceConfig struct {
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	RouterURL    string `json:"router_url,omitempty"`
	InferenceURL string `json:"inference_url,omitempty"`
	Timeout      time.Duration
}

// NewProvider creates a new AI provider based on the configuration
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeGroq:
		return NewGroqProvider(config)
	case ProviderTypeHuggingFace:
		return NewHuggingFaceProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// NewGroqProvider creates a Groq provider. A missing api_key is not an error
// here: the provider is built and every call fails with ErrMissingAPIKey.
func NewGroqProvider(config ProviderConfig) (Provider, error) {
	groqConfig := GroqConfig{
		APIKey:  config.Config["api_key"],
		Model:   config.Model,
		BaseURL: config.Config["base_url"],
		Timeout: config.Timeout,
	}

	if groqConfig.Model == "" {
		groqConfig.Model = DefaultCatalog.DefaultModel(ProviderTypeGroq)
	}

	return newGroqProviderInternal(nameOr(config.Name, ProviderTypeGroq), groqConfig), nil
}

// NewHuggingFaceProvider creates a Hugging Face provider with chat and text
// generation support
func NewHuggingFaceProvider(config ProviderConfig) (Provider, error) {
	hfConfig := HuggingFaceConfig{
		APIKey:       config.Config["api_key"],
		Model:        config.Model,
		RouterURL:    config.Config["router_url"],
		InferenceURL: config.Config["inference_url"],
		Timeout:      config.Timeout,
	}

	if hfConfig.Model == "" {
		hfConfig.Model = DefaultCatalog.DefaultModel(ProviderTypeHuggingFace)
	}

	return newHuggingFaceProviderInternal(nameOr(config.Name, ProviderTypeHuggingFace), hfConfig), nil
}

func nameOr(name string, t ProviderType) string {
	if name != "" {
		return name
	}
	return string(t)
}
