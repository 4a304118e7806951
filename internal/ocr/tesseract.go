//go:build cgo && ocr

package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// TesseractProvider implements OCR using Tesseract
type TesseractProvider struct {
	name             string
	defaultLanguages []string
	available        bool
}

// NewTesseractProvider creates a new Tesseract OCR provider
func NewTesseractProvider(cfg ProviderConfig) (*TesseractProvider, error) {
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}

	// The binary is only a proxy for installed trained data; gosseract links libtesseract directly.
	tesseractPath, err := exec.LookPath("tesseract")
	available := err == nil

	if !available {
		log.Warn().Msg("Tesseract not found in PATH, OCR will be unavailable")
	} else {
		log.Debug().
			Str("tesseract_path", tesseractPath).
			Strs("languages", languages).
			Msg("Tesseract provider initialized")
	}

	return &TesseractProvider{
		name:             "tesseract",
		defaultLanguages: languages,
		available:        available,
	}, nil
}

func (p *TesseractProvider) Name() string {
	return p.name
}

func (p *TesseractProvider) Type() ProviderType {
	return ProviderTypeTesseract
}

func (p *TesseractProvider) IsAvailable() bool {
	return p.available
}

func (p *TesseractProvider) ExtractText(ctx context.Context, image []byte, languages []string) (*Result, error) {
	if !p.available {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(languages) == 0 {
		languages = p.defaultLanguages
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	fragments, confidence, err := p.recognizeWords(client)
	if err != nil {
		// Word boxes are unavailable for some page layouts; the plain text is still usable.
		log.Debug().Err(err).Msg("Word-level recognition failed, using plain text")
		text, textErr := client.Text()
		if textErr != nil {
			return nil, fmt.Errorf("OCR failed: %w", textErr)
		}
		fragments = []string{text}
	}

	text := joinFragments(fragments)
	return &Result{
		Text:       text,
		Confidence: confidence,
		Fragments:  len(fragments),
		Language:   strings.Join(languages, "+"),
	}, nil
}

func (p *TesseractProvider) Close() error {
	return nil
}

// recognizeWords returns the recognized words in reading order and their mean confidence (0..1)
func (p *TesseractProvider) recognizeWords(client *gosseract.Client) ([]string, float64, error) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, 0, err
	}

	words := make([]string, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, b.Word)
		sum += b.Confidence / 100.0
	}
	if len(words) == 0 {
		return words, 0, nil
	}
	return words, sum / float64(len(words)), nil
}
