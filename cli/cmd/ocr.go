package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/ocrlens/internal/app"
	"github.com/fluxbase-eu/ocrlens/internal/ocr"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Extract the text of an image",
	Long: `Extract the text of a PNG or JPEG image with the configured OCR engine.

Examples:
  ocrlens ocr receipt.png
  ocrlens ocr scan.jpg -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCRResult is the structured output of the ocr command
type OCRResult struct {
	Image       string `json:"image" yaml:"image"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Text        string `json:"text" yaml:"text"`
}

func runOCR(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	components, err := app.Build(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()

	s := newSession(components)
	defer func() { _ = s.Close() }()

	outcome, err := extract(cmd.Context(), s, args[0])
	if err != nil {
		return err
	}

	f := GetFormatter()
	if f.Structured() {
		return f.Print(OCRResult{Image: args[0], Fingerprint: outcome.Fingerprint.String(), Text: outcome.Text})
	}
	f.PrintKeyValue("Fingerprint", outcome.Fingerprint.String())
	f.PrintBlock("Extracted text", displayText(outcome.Text))
	return nil
}

// newSession opens a single-use session over the components. The CLI runs
// one upload per process, so no manager or limiter is involved.
func newSession(components *app.Components) *session.Session {
	return session.New(session.Config{
		ID:        "cli",
		Extractor: components.OCR,
		Analyzer:  components.Dispatcher,
		APIKeys:   components.APIKeys,
	})
}

// extract runs OCR over the image file at path
func extract(ctx context.Context, s *session.Session, path string) (session.UploadOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return session.UploadOutcome{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	outcome, err := s.UploadFrom(ctx, f)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) {
			return session.UploadOutcome{}, fmt.Errorf("%w: build with -tags ocr and install Tesseract", err)
		}
		return session.UploadOutcome{}, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	return outcome, nil
}

func displayText(text string) string {
	if text == "" {
		return "(no text found)"
	}
	return text
}
