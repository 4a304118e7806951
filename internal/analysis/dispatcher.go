package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/observability"
)

// Fixed text generation parameters for the fallback tier
const (
	fallbackTopP     = 0.9
	fallbackDoSample = true
)

// DispatcherConfig wires the dispatcher
type DispatcherConfig struct {
	Providers []ai.Provider
	Catalog   *ai.Catalog
	Sanitizer *Sanitizer
	Metrics   *observability.Metrics
}

// Dispatcher routes analysis requests to the selected provider. Provider
// failures become Result data; only validation failures are Go errors.
type Dispatcher struct {
	providers map[ai.ProviderType]ai.Provider
	catalog   *ai.Catalog
	sanitizer *Sanitizer
	metrics   *observability.Metrics
}

// NewDispatcher creates a dispatcher over the given providers
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[ai.ProviderType]ai.Provider, len(cfg.Providers)),
		catalog:   cfg.Catalog,
		sanitizer: cfg.Sanitizer,
		metrics:   cfg.Metrics,
	}
	if d.catalog == nil {
		d.catalog = ai.DefaultCatalog
	}
	if d.sanitizer == nil {
		d.sanitizer = NewSanitizer(false)
	}
	for _, p := range cfg.Providers {
		d.providers[p.Type()] = p
	}
	return d
}

// Catalog returns the model catalog used for capability lookups
func (d *Dispatcher) Catalog() *ai.Catalog {
	return d.catalog
}

// callPlan is the ordered list of tiers tried for a model
func (d *Dispatcher) callPlan(provider ai.Provider, model string) []Tier {
	caps := d.catalog.Capabilities(provider.Type(), model)

	var plan []Tier
	if caps.Has(ai.CapabilityChat) {
		plan = append(plan, TierChat)
	}
	if _, ok := provider.(ai.TextGenerator); ok && caps.Has(ai.CapabilityTextGeneration) {
		plan = append(plan, TierFallback)
	}
	return plan
}

// Analyze validates req and runs the provider's call plan: a chat call, then
// for providers that support it a text generation call over the flattened
// prompt. The last failure is reported when every tier fails.
func (d *Dispatcher) Analyze(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		d.metrics.RecordAnalysis(string(req.Provider), "none", "validation_error", 0)
		return Result{}, err
	}

	start := time.Now()
	result := Result{Provider: req.Provider, Model: req.Model}

	provider, ok := d.providers[req.Provider]
	if !ok {
		err := &ai.ProviderError{Provider: req.Provider, Operation: ai.OperationChat, Err: errors.New("provider is not configured")}
		return d.fail(result, err, start), nil
	}

	prompt := BuildPrompt(req.Task, req.Text)
	plan := d.callPlan(provider, req.Model)
	if len(plan) == 0 {
		err := &ai.ProviderError{Provider: req.Provider, Operation: ai.OperationChat, Err: ai.ErrUnsupportedOperation}
		return d.fail(result, err, start), nil
	}

	var lastErr error
	for i, tier := range plan {
		if tier == TierFallback {
			reason := "chat_failed"
			if i == 0 {
				reason = "chat_unsupported"
			}
			log.Warn().
				Str("provider", string(req.Provider)).
				Str("model", req.Model).
				Str("tier", string(TierFallback)).
				Str("reason", reason).
				AnErr("chat_error", lastErr).
				Msg("Falling back to text generation")
			d.metrics.RecordFallback(string(req.Provider), reason)
		}

		tierStart := time.Now()
		text, err := d.call(ctx, provider, tier, req, prompt)
		if err != nil {
			lastErr = err
			d.metrics.RecordAnalysis(string(req.Provider), string(tier), "provider_error", time.Since(tierStart))
			log.Debug().
				Err(err).
				Str("provider", string(req.Provider)).
				Str("tier", string(tier)).
				Msg("Provider call failed")
			continue
		}

		d.metrics.RecordAnalysis(string(req.Provider), string(tier), "success", time.Since(tierStart))
		result.Text = strings.TrimSpace(text)
		if result.Text == "" {
			result.Text = NoResponseText
		}
		result.Tier = tier
		result.Duration = time.Since(start)

		log.Info().
			Str("provider", string(req.Provider)).
			Str("model", req.Model).
			Str("tier", string(tier)).
			Int("output_length", len(result.Text)).
			Dur("duration", result.Duration).
			Msg("Analysis completed")
		return result, nil
	}

	return d.fail(result, lastErr, start), nil
}

func (d *Dispatcher) fail(result Result, err error, start time.Time) Result {
	result.Cause = err
	result.Error = errorText(result.Provider, d.sanitizer.Message(err))
	result.Duration = time.Since(start)

	event := log.Warn().Err(err).Str("provider", string(result.Provider)).Str("model", result.Model)
	var provErr *ai.ProviderError
	if errors.As(err, &provErr) {
		event = event.Int("status", provErr.StatusCode).Bool("temporary", provErr.Temporary())
	}
	event.Msg("Analysis failed")
	return result
}

func (d *Dispatcher) call(ctx context.Context, provider ai.Provider, tier Tier, req Request, prompt Prompt) (string, error) {
	switch tier {
	case TierChat:
		ctx, span := observability.StartProviderSpan(ctx, string(req.Provider), ai.OperationChat, req.Model)
		resp, err := provider.Chat(ctx, &ai.ChatRequest{
			Model:       req.Model,
			Messages:    prompt.Messages(),
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		observability.EndSpan(span, err)
		if err != nil {
			return "", err
		}
		return resp.Content(), nil

	case TierFallback:
		gen, ok := provider.(ai.TextGenerator)
		if !ok {
			return "", &ai.ProviderError{Provider: req.Provider, Operation: ai.OperationTextGeneration, Err: ai.ErrUnsupportedOperation}
		}
		ctx, span := observability.StartProviderSpan(ctx, string(req.Provider), ai.OperationTextGeneration, req.Model)
		text, err := gen.GenerateText(ctx, &ai.TextGenerationRequest{
			Model:          req.Model,
			Prompt:         prompt.Flatten(),
			MaxNewTokens:   req.MaxTokens,
			Temperature:    req.Temperature,
			TopP:           fallbackTopP,
			DoSample:       fallbackDoSample,
			ReturnFullText: false,
		})
		observability.EndSpan(span, err)
		return text, err

	default:
		return "", fmt.Errorf("unknown tier %q", tier)
	}
}
