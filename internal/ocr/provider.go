// Package ocr turns uploaded images into plain text. Engines sit behind the
// Provider interface; the Service prepares images and applies defaults.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProviderType represents the type of OCR provider
type ProviderType string

const (
	ProviderTypeTesseract ProviderType = "tesseract"
)

// ErrUnavailable is returned when no OCR engine can serve the request
var ErrUnavailable = errors.New("OCR engine is not available")

// Result represents the result of OCR processing
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Fragments  int     `json:"fragments"`
	Language   string  `json:"language,omitempty"`
}

// Provider defines the interface for OCR providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Type returns the provider type
	Type() ProviderType

	// ExtractText recognizes text in a prepared (RGBA, PNG encoded) image.
	// Missing text is not an error: an empty Result is returned instead.
	ExtractText(ctx context.Context, image []byte, languages []string) (*Result, error)

	// IsAvailable checks if the provider is properly configured and available
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// ProviderConfig represents OCR provider configuration
type ProviderConfig struct {
	Type      ProviderType `json:"type"`
	Languages []string     `json:"languages"` // e.g., ["spa", "eng"]
}

// NewProvider creates an OCR provider based on configuration
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeTesseract, "":
		return NewTesseractProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported OCR provider type: %s", cfg.Type)
	}
}

// joinFragments joins recognized fragments with single spaces. Whitespace
// inside fragments collapses too, so line breaks never leak into the output.
func joinFragments(fragments []string) string {
	words := make([]string, 0, len(fragments))
	for _, f := range fragments {
		words = append(words, strings.Fields(f)...)
	}
	return strings.Join(words, " ")
}
