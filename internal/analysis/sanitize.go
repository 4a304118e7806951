package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
)

const maxExposedError = 300

// tokenPattern matches the shapes of Groq and Hugging Face keys
var tokenPattern = regexp.MustCompile(`\b(gsk|hf)_[A-Za-z0-9]{8,}\b`)

// Sanitizer turns provider failures into user-facing text. By default only a
// category and the HTTP status are shown; with expose set the raw provider
// message is kept, minus anything that looks like a key.
type Sanitizer struct {
	expose  bool
	secrets []string
}

// NewSanitizer creates a sanitizer. Secrets are redacted from exposed messages.
func NewSanitizer(expose bool, secrets ...string) *Sanitizer {
	s := &Sanitizer{expose: expose}
	for _, secret := range secrets {
		if len(secret) >= 4 {
			s.secrets = append(s.secrets, secret)
		}
	}
	return s
}

// Message renders err for display
func (s *Sanitizer) Message(err error) string {
	if err == nil {
		return ""
	}
	if s != nil && s.expose {
		return s.redact(err.Error())
	}
	return describe(err)
}

func (s *Sanitizer) redact(msg string) string {
	for _, secret := range s.secrets {
		msg = strings.ReplaceAll(msg, secret, "[REDACTED]")
	}
	msg = tokenPattern.ReplaceAllString(msg, "[REDACTED]")
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxExposedError {
		msg = ai.TruncateUTF8(msg, maxExposedError) + "..."
	}
	return msg
}

func describe(err error) string {
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		return "API key is not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	case errors.Is(err, ai.ErrUnsupportedOperation):
		return "the model does not support this request"
	case errors.Is(err, ai.ErrEmptyResponse):
		return "the provider returned no choices"
	}

	var provErr *ai.ProviderError
	if errors.As(err, &provErr) && provErr.StatusCode != 0 {
		var category string
		switch code := provErr.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			category = "authentication failed"
		case code == http.StatusNotFound:
			category = "model not found"
		case code == http.StatusTooManyRequests:
			category = "rate limit exceeded"
		case code >= 500:
			category = "the service is unavailable"
		case code >= 400:
			category = "the request was rejected"
		default:
			category = "unexpected response"
		}
		return fmt.Sprintf("%s (status %d)", category, provErr.StatusCode)
	}

	if errors.As(err, &provErr) {
		return "the provider could not be reached"
	}
	return "the request could not be completed"
}

// errorText prefixes a failure with the provider display name
func errorText(provider ai.ProviderType, msg string) string {
	return fmt.Sprintf("Error analyzing with %s: %s", provider.DisplayName(), msg)
}
