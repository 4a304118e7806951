//go:build !cgo || !ocr

package ocr

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// stubReason explains why this binary cannot run OCR
const stubReason = "binary built without the ocr tag or without cgo"

// TesseractProvider stands in for the gosseract engine in builds that do not
// link libtesseract. Every extraction fails with ErrUnavailable.
type TesseractProvider struct {
	languages []string
}

func NewTesseractProvider(cfg ProviderConfig) (*TesseractProvider, error) {
	log.Warn().Str("reason", stubReason).Msg("Tesseract OCR disabled")
	return &TesseractProvider{languages: cfg.Languages}, nil
}

func (p *TesseractProvider) Name() string       { return "tesseract (unavailable)" }
func (p *TesseractProvider) Type() ProviderType { return ProviderTypeTesseract }
func (p *TesseractProvider) IsAvailable() bool  { return false }
func (p *TesseractProvider) Close() error       { return nil }

func (p *TesseractProvider) ExtractText(_ context.Context, _ []byte, _ []string) (*Result, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, stubReason)
}
