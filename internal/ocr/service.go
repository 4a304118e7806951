package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/ocrlens/internal/observability"
)

// Service manages the OCR provider and image preparation
type Service struct {
	provider         Provider
	defaultLanguages []string
	minDimension     int
	maxPixels        int
	mu               sync.RWMutex
	enabled          bool
}

// ServiceConfig contains configuration for the OCR service
type ServiceConfig struct {
	Enabled          bool
	ProviderType     ProviderType
	DefaultLanguages []string
	// MinDimension is the shorter image side below which images are upscaled. Zero disables upscaling.
	MinDimension int
	// MaxPixels caps the declared width*height of an upload. Zero means DefaultMaxPixels.
	MaxPixels int
}

// NewService creates a new OCR service
func NewService(cfg ServiceConfig) (*Service, error) {
	if !cfg.Enabled {
		log.Info().Msg("OCR service disabled")
		return &Service{enabled: false}, nil
	}

	languages := cfg.DefaultLanguages
	if len(languages) == 0 {
		languages = []string{"spa", "eng"}
	}

	provider, err := NewProvider(ProviderConfig{
		Type:      cfg.ProviderType,
		Languages: languages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR provider: %w", err)
	}

	if !provider.IsAvailable() {
		log.Warn().Str("provider", provider.Name()).Msg("OCR provider not available, OCR will be disabled")
		return &Service{enabled: false}, nil
	}

	log.Info().
		Str("provider", provider.Name()).
		Strs("languages", languages).
		Msg("OCR service initialized")

	svc := NewServiceWithProvider(provider, languages, cfg.MinDimension)
	svc.maxPixels = cfg.MaxPixels
	return svc, nil
}

// NewServiceWithProvider wraps an existing provider
func NewServiceWithProvider(provider Provider, languages []string, minDimension int) *Service {
	return &Service{
		provider:         provider,
		defaultLanguages: languages,
		minDimension:     minDimension,
		enabled:          provider != nil,
	}
}

// ExtractText decodes the image, converts it for the engine and returns the
// recognized text with fragments joined by single spaces. An image without
// text yields an empty string. Unreadable images yield a *DecodeError.
func (s *Service) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	result, err := s.Extract(ctx, imageData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// Extract is ExtractText with recognition details
func (s *Service) Extract(ctx context.Context, imageData []byte) (*Result, error) {
	prepared, err := Prepare(imageData, s.minDimension, s.maxPixels)
	if err != nil {
		return nil, err
	}

	if !s.enabled {
		return nil, ErrUnavailable
	}

	s.mu.RLock()
	provider := s.provider
	languages := s.defaultLanguages
	s.mu.RUnlock()

	start := time.Now()
	ctx, span := observability.StartOCRSpan(ctx, provider.Name(), len(prepared.PNG))
	result, err := provider.ExtractText(ctx, prepared.PNG, languages)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("OCR extraction failed: %w", err)
	}
	if result == nil {
		result = &Result{}
	}
	result.Text = joinFragments([]string{result.Text})

	log.Debug().
		Str("format", prepared.SourceFormat).
		Int("width", prepared.Width).
		Int("height", prepared.Height).
		Int("fragments", result.Fragments).
		Float64("confidence", result.Confidence).
		Int("text_length", len(result.Text)).
		Dur("duration", time.Since(start)).
		Msg("OCR extraction completed")

	return result, nil
}

// IsEnabled returns whether OCR is enabled and available
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// GetDefaultLanguages returns the configured default languages
func (s *Service) GetDefaultLanguages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultLanguages
}

// Close cleans up the OCR service resources
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider.Close()
	}
	return nil
}
