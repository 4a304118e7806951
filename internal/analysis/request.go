package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
)

// Parameter bounds accepted by Validate
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 1
	MaxMaxTokens   = 4096

	// Form defaults
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// NoResponseText replaces an empty provider answer
const NoResponseText = "No response was generated."

// Request is one analysis action
type Request struct {
	Provider    ai.ProviderType `json:"provider"`
	Model       string          `json:"model"`
	Task        Task            `json:"task"`
	Text        string          `json:"text"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// ValidationError is returned for requests that must not reach a provider
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the request before any network call
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return &ValidationError{Field: "text", Message: "there is no text to analyze"}
	}
	switch r.Provider {
	case ai.ProviderTypeGroq, ai.ProviderTypeHuggingFace:
	default:
		return &ValidationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q", r.Provider)}
	}
	if strings.TrimSpace(r.Model) == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return &ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("must be between %.1f and %.1f", MinTemperature, MaxTemperature),
		}
	}
	if r.MaxTokens < MinMaxTokens || r.MaxTokens > MaxMaxTokens {
		return &ValidationError{
			Field:   "max_tokens",
			Message: fmt.Sprintf("must be between %d and %d", MinMaxTokens, MaxMaxTokens),
		}
	}
	return nil
}

// Tier names the call shape that produced a result
type Tier string

const (
	TierChat     Tier = "chat"
	TierFallback Tier = "fallback"
	TierMemo     Tier = "memo"
)

// Result carries either the analysis text or a provider error message, never both
type Result struct {
	Provider ai.ProviderType `json:"provider"`
	Model    string          `json:"model"`
	Text     string          `json:"text,omitempty"`
	Error    string          `json:"error,omitempty"`
	Tier     Tier            `json:"tier,omitempty"`
	Duration time.Duration   `json:"duration"`

	// Cause is the provider failure behind Error
	Cause error `json:"-"`
}

// OK reports whether the result holds analysis text
func (r Result) OK() bool {
	return r.Error == ""
}

// Display returns what the user sees: the analysis or the error message
func (r Result) Display() string {
	if r.OK() {
		return r.Text
	}
	return r.Error
}
