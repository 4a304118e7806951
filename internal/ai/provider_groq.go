package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// groqProvider implements the Provider interface for Groq's OpenAI-compatible API
type groqProvider struct {
	name       string
	config     GroqConfig
	httpClient *http.Client
}

// newGroqProviderInternal creates a new Groq provider instance
func newGroqProviderInternal(name string, config GroqConfig) *groqProvider {
	if config.BaseURL == "" {
		config.BaseURL = defaultGroqBaseURL
	}

	// Remove trailing slash from base URL
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	return &groqProvider{
		name:       name,
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
	}
}

// Name returns the provider name
func (p *groqProvider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *groqProvider) Type() ProviderType {
	return ProviderTypeGroq
}

// ValidateConfig validates the provider configuration
func (p *groqProvider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("groq: %w", ErrMissingAPIKey)
	}
	if p.config.Model == "" {
		return fmt.Errorf("groq: model is required")
	}
	return nil
}

// Close cleans up resources
func (p *groqProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// groqRequest represents the chat completions request format
type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// groqResponse represents the chat completions response format
type groqResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []groqChoice `json:"choices"`
	Usage   *UsageStats  `json:"usage,omitempty"`
}

type groqChoice struct {
	Index        int         `json:"index"`
	Message      groqMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Chat sends a non-streaming chat request to Groq
func (p *groqProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, &ProviderError{Provider: ProviderTypeGroq, Operation: OperationChat, Err: ErrMissingAPIKey}
	}

	groqReq := p.buildRequest(req)

	status, body, err := postJSON(ctx, p.httpClient, p.config.BaseURL+"/chat/completions", p.config.APIKey, groqReq)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderTypeGroq, Operation: OperationChat, StatusCode: status, Err: err}
	}

	if status != http.StatusOK {
		log.Debug().Int("status", status).Str("model", groqReq.Model).Msg("Groq chat request rejected")
		return nil, &ProviderError{
			Provider:   ProviderTypeGroq,
			Operation:  OperationChat,
			StatusCode: status,
			Message:    errorMessage(body),
		}
	}

	var groqResp groqResponse
	if err := json.Unmarshal(body, &groqResp); err != nil {
		return nil, &ProviderError{
			Provider:   ProviderTypeGroq,
			Operation:  OperationChat,
			StatusCode: status,
			Err:        fmt.Errorf("failed to parse response: %w", err),
		}
	}

	if len(groqResp.Choices) == 0 {
		return nil, &ProviderError{Provider: ProviderTypeGroq, Operation: OperationChat, StatusCode: status, Err: ErrEmptyResponse}
	}

	return p.convertResponse(&groqResp), nil
}

// buildRequest converts our ChatRequest to the wire format
func (p *groqProvider) buildRequest(req *ChatRequest) groqRequest {
	// Use request model or fall back to provider default
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	messages := make([]groqMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = groqMessage{Role: string(msg.Role), Content: msg.Content}
	}

	return groqRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

// convertResponse converts the wire response to our format
func (p *groqProvider) convertResponse(resp *groqResponse) *ChatResponse {
	choices := make([]Choice, len(resp.Choices))
	for i, c := range resp.Choices {
		choices[i] = Choice{
			Index:        c.Index,
			Message:      Message{Role: Role(c.Message.Role), Content: c.Message.Content},
			FinishReason: c.FinishReason,
		}
	}

	return &ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: choices,
		Usage:   resp.Usage,
	}
}
