package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	defaultHuggingFaceRouterURL    = "https://router.huggingface.co"
	defaultHuggingFaceInferenceURL = "https://api-inference.huggingface.co"
)

// huggingFaceProvider implements Provider over the router chat endpoint and
// TextGenerator over the serverless inference endpoint
type huggingFaceProvider struct {
	name       string
	config     HuggingFaceConfig
	httpClient *http.Client
}

func newHuggingFaceProviderInternal(name string, config HuggingFaceConfig) *huggingFaceProvider {
	if config.RouterURL == "" {
		config.RouterURL = defaultHuggingFaceRouterURL
	}
	if config.InferenceURL == "" {
		config.InferenceURL = defaultHuggingFaceInferenceURL
	}
	config.RouterURL = strings.TrimSuffix(config.RouterURL, "/")
	config.InferenceURL = strings.TrimSuffix(config.InferenceURL, "/")

	return &huggingFaceProvider{
		name:       name,
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
	}
}

func (p *huggingFaceProvider) Name() string {
	return p.name
}

func (p *huggingFaceProvider) Type() ProviderType {
	return ProviderTypeHuggingFace
}

func (p *huggingFaceProvider) ValidateConfig() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("huggingface: %w", ErrMissingAPIKey)
	}
	if p.config.Model == "" {
		return fmt.Errorf("huggingface: model is required")
	}
	return nil
}

func (p *huggingFaceProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *huggingFaceProvider) model(requested string) string {
	if requested != "" {
		return requested
	}
	return p.config.Model
}

func (p *huggingFaceProvider) fail(op string, status int, err error, msg string) *ProviderError {
	return &ProviderError{
		Provider:   ProviderTypeHuggingFace,
		Operation:  op,
		StatusCode: status,
		Message:    msg,
		Err:        err,
	}
}

// Chat uses the OpenAI-compatible router endpoint, which shares the Groq wire format
func (p *huggingFaceProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, p.fail(OperationChat, 0, ErrMissingAPIKey, "")
	}

	messages := make([]groqMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = groqMessage{Role: string(msg.Role), Content: msg.Content}
	}
	wireReq := groqRequest{
		Model:       p.model(req.Model),
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	status, body, err := postJSON(ctx, p.httpClient, p.config.RouterURL+"/v1/chat/completions", p.config.APIKey, wireReq)
	if err != nil {
		return nil, p.fail(OperationChat, status, err, "")
	}
	if status != http.StatusOK {
		return nil, p.fail(OperationChat, status, nil, errorMessage(body))
	}

	var wireResp groqResponse
	if err := json.Unmarshal(body, &wireResp); err != nil {
		return nil, p.fail(OperationChat, status, fmt.Errorf("failed to parse response: %w", err), "")
	}
	if len(wireResp.Choices) == 0 {
		return nil, p.fail(OperationChat, status, ErrEmptyResponse, "")
	}

	choices := make([]Choice, len(wireResp.Choices))
	for i, c := range wireResp.Choices {
		choices[i] = Choice{
			Index:        c.Index,
			Message:      Message{Role: Role(c.Message.Role), Content: c.Message.Content},
			FinishReason: c.FinishReason,
		}
	}
	return &ChatResponse{ID: wireResp.ID, Model: wireResp.Model, Choices: choices, Usage: wireResp.Usage}, nil
}

type textGenerationPayload struct {
	Inputs     string               `json:"inputs"`
	Parameters textGenerationParams `json:"parameters"`
}

type textGenerationParams struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature"`
	TopP           float64 `json:"top_p,omitempty"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

// GenerateText completes a flattened prompt. The endpoint answers either with
// a list of generations or with a single object.
func (p *huggingFaceProvider) GenerateText(ctx context.Context, req *TextGenerationRequest) (string, error) {
	if p.config.APIKey == "" {
		return "", p.fail(OperationTextGeneration, 0, ErrMissingAPIKey, "")
	}

	model := p.model(req.Model)
	payload := textGenerationPayload{
		Inputs: req.Prompt,
		Parameters: textGenerationParams{
			MaxNewTokens:   req.MaxNewTokens,
			Temperature:    req.Temperature,
			TopP:           req.TopP,
			DoSample:       req.DoSample,
			ReturnFullText: req.ReturnFullText,
		},
	}

	status, body, err := postJSON(ctx, p.httpClient, p.config.InferenceURL+"/models/"+model, p.config.APIKey, payload)
	if err != nil {
		return "", p.fail(OperationTextGeneration, status, err, "")
	}
	if status != http.StatusOK {
		log.Debug().Int("status", status).Str("model", model).Msg("Hugging Face text generation rejected")
		return "", p.fail(OperationTextGeneration, status, nil, errorMessage(body))
	}

	var list []generatedText
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", p.fail(OperationTextGeneration, status, ErrEmptyResponse, "")
		}
		return list[0].GeneratedText, nil
	}

	var single generatedText
	if err := json.Unmarshal(body, &single); err != nil {
		return "", p.fail(OperationTextGeneration, status, fmt.Errorf("failed to parse response: %w", err), "")
	}
	return single.GeneratedText, nil
}
