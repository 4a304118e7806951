package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned by calls made without a configured key
	ErrMissingAPIKey = errors.New("api key is not configured")

	// ErrEmptyResponse is returned when the provider answered without any choice
	ErrEmptyResponse = errors.New("provider returned no choices")

	// ErrUnsupportedOperation is returned for call shapes a model is not served with
	ErrUnsupportedOperation = errors.New("operation not supported by model")
)

// Provider operations, used in ProviderError and metrics labels
const (
	OperationChat           = "chat"
	OperationTextGeneration = "text_generation"
)

// ProviderError describes any failed provider call: authentication, rate
// limiting, an unsupported operation or a transport failure.
type ProviderError struct {
	Provider   ProviderType
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Provider, e.Operation, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the status hints at a transient condition
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode == 503 || e.StatusCode == 504
}
