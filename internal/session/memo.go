package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/storage/memory/v2"

	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/fingerprint"
)

// MemoStore keeps successful analysis results of one session, keyed by the
// full argument tuple of the call
type MemoStore struct {
	storage *memory.Storage
	ttl     time.Duration
}

// NewMemoStore creates a memo store. A zero ttl keeps entries until Reset.
func NewMemoStore(gcInterval, ttl time.Duration) *MemoStore {
	if gcInterval <= 0 {
		gcInterval = 10 * time.Minute
	}
	return &MemoStore{
		storage: memory.New(memory.Config{GCInterval: gcInterval}),
		ttl:     ttl,
	}
}

// MemoKey digests the request arguments together with the provider key, so
// that a key change never serves a result obtained with another credential
func MemoKey(req analysis.Request, apiKey string) string {
	return fingerprint.KeyOf(
		string(req.Provider),
		req.Model,
		string(req.Task),
		req.Text,
		strconv.FormatFloat(req.Temperature, 'g', -1, 64),
		strconv.Itoa(req.MaxTokens),
		apiKey,
	)
}

// Get returns the memoized result for key
func (m *MemoStore) Get(key string) (analysis.Result, bool, error) {
	raw, err := m.storage.Get(key)
	if err != nil {
		return analysis.Result{}, false, fmt.Errorf("failed to read memo: %w", err)
	}
	if raw == nil {
		return analysis.Result{}, false, nil
	}

	var result analysis.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return analysis.Result{}, false, fmt.Errorf("failed to decode memo: %w", err)
	}
	return result, true, nil
}

// Set stores a successful result. Failed results are ignored.
func (m *MemoStore) Set(key string, result analysis.Result) error {
	if !result.OK() {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode memo: %w", err)
	}
	return m.storage.Set(key, raw, m.ttl)
}

// Reset drops every memoized result
func (m *MemoStore) Reset() error {
	return m.storage.Reset()
}

// Close releases the store
func (m *MemoStore) Close() error {
	return m.storage.Close()
}
