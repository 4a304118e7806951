// Package session holds the per-user cache: the text extracted from the last
// uploaded image and the analysis results computed from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/fingerprint"
	"github.com/fluxbase-eu/ocrlens/internal/ocr"
	"github.com/fluxbase-eu/ocrlens/internal/observability"
)

// ErrRateLimited is returned by Analyze when the session exceeded its analyze rate
var ErrRateLimited = errors.New("analyze rate limit exceeded")

// State is the cache state of a session
type State int

const (
	StateEmpty State = iota
	StateCached
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCached:
		return "cached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Extractor is the OCR collaborator; *ocr.Service implements it
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Analyzer is the dispatch collaborator; *analysis.Dispatcher implements it
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// Config wires a session
type Config struct {
	ID        string
	Extractor Extractor
	Analyzer  Analyzer
	// APIKeys feed the memo key only; they never leave the process
	APIKeys        map[ai.ProviderType]string
	MemoTTL        time.Duration
	MemoGCInterval time.Duration
	// Limiter bounds Analyze calls. Nil means unlimited.
	Limiter *rate.Limiter
	Metrics *observability.Metrics
}

// UploadOutcome describes what Upload did with an artifact
type UploadOutcome struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Text        string                  `json:"text"`
	Reused      bool                    `json:"reused"`
}

// AnalyzeParams are the form fields of an analysis; the text comes from the cache
type AnalyzeParams struct {
	Provider    ai.ProviderType `json:"provider"`
	Model       string          `json:"model"`
	Task        analysis.Task   `json:"task"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// Session caches OCR output per artifact fingerprint. Uploads are serialized;
// provider calls run outside the lock so readers are never held up by them.
type Session struct {
	id        string
	extractor Extractor
	analyzer  Analyzer
	apiKeys   map[ai.ProviderType]string
	memo      *MemoStore
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	createdAt time.Time
	lastUsed  atomic.Int64

	mu    sync.Mutex
	state State
	fp    fingerprint.Fingerprint
	text  string
}

// New creates an empty session
func New(cfg Config) *Session {
	now := time.Now()
	s := &Session{
		id:        cfg.ID,
		extractor: cfg.Extractor,
		analyzer:  cfg.Analyzer,
		apiKeys:   cfg.APIKeys,
		memo:      NewMemoStore(cfg.MemoGCInterval, cfg.MemoTTL),
		limiter:   cfg.Limiter,
		metrics:   cfg.Metrics,
		createdAt: now,
		state:     StateEmpty,
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the creation time
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastUsed returns the time of the last upload or analysis
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// State returns the cache state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the cached text, or "" for an empty session
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Fingerprint returns the fingerprint of the cached artifact
func (s *Session) Fingerprint() (fingerprint.Fingerprint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fp, s.state == StateCached
}

// Upload extracts the text of artifact unless it is the artifact already
// cached. A decode failure leaves the cached state untouched.
func (s *Session) Upload(ctx context.Context, artifact []byte) (UploadOutcome, error) {
	fp := fingerprint.Of(artifact)
	return s.upload(ctx, fp, func() ([]byte, error) { return artifact, nil })
}

// UploadFrom is Upload over a seekable reader. The artifact bytes are only
// loaded when OCR has to run.
func (s *Session) UploadFrom(ctx context.Context, r io.ReadSeeker) (UploadOutcome, error) {
	fp, err := fingerprint.FromReader(r)
	if err != nil {
		return UploadOutcome{}, err
	}
	return s.upload(ctx, fp, func() ([]byte, error) { return io.ReadAll(r) })
}

func (s *Session) upload(ctx context.Context, fp fingerprint.Fingerprint, load func() ([]byte, error)) (UploadOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state == StateCached && s.fp.Equal(fp) {
		log.Debug().Str("session", s.id).Str("fingerprint", fp.String()).Msg("Reusing cached OCR text")
		observability.AddSpanEvent(ctx, "ocr.reused", attribute.String("fingerprint", fp.String()))
		s.metrics.RecordUpload(true)
		return UploadOutcome{Fingerprint: fp, Text: s.text, Reused: true}, nil
	}

	artifact, err := load()
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("failed to read artifact: %w", err)
	}

	start := time.Now()
	text, err := s.extractor.ExtractText(ctx, artifact)
	if err != nil {
		outcome := "error"
		var decodeErr *ocr.DecodeError
		if errors.As(err, &decodeErr) {
			outcome = "decode_error"
		}
		s.metrics.RecordOCR(outcome, time.Since(start))
		return UploadOutcome{}, err
	}
	s.metrics.RecordOCR("success", time.Since(start))
	s.metrics.RecordUpload(false)

	previous := s.fp
	s.state, s.fp, s.text = StateCached, fp, text
	if err := s.memo.Reset(); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("Failed to reset analysis memo")
	}

	log.Info().
		Str("session", s.id).
		Str("fingerprint", fp.String()).
		Bool("replaced", !previous.IsZero()).
		Int("text_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("OCR text recomputed")

	return UploadOutcome{Fingerprint: fp, Text: text}, nil
}

// Analyze runs an analysis over the cached text. Identical calls over the
// same text are answered from the session memo. The error is either a
// *analysis.ValidationError or ErrRateLimited; provider failures are
// reported inside the Result.
//
// The text is read under the session lock, the provider is called without
// it. A result is memoized only if the text was not replaced meanwhile.
func (s *Session) Analyze(ctx context.Context, params AnalyzeParams) (analysis.Result, error) {
	s.touch()

	s.mu.Lock()
	text, fp := s.text, s.fp
	s.mu.Unlock()

	req := analysis.Request{
		Provider:    params.Provider,
		Model:       params.Model,
		Task:        params.Task,
		Text:        text,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	if err := req.Validate(); err != nil {
		return analysis.Result{}, err
	}

	key := MemoKey(req, s.apiKeys[req.Provider])
	if cached, ok, err := s.memo.Get(key); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("Ignoring unreadable memo entry")
	} else if ok {
		cached.Tier = analysis.TierMemo
		s.metrics.RecordAnalysis(string(req.Provider), string(analysis.TierMemo), "success", 0)
		log.Debug().Str("session", s.id).Str("provider", string(req.Provider)).Msg("Reusing memoized analysis")
		observability.AddSpanEvent(ctx, "analysis.memo_hit", attribute.String("ai.provider", string(req.Provider)))
		return cached, nil
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.RecordRateLimitHit("analyze")
		return analysis.Result{}, ErrRateLimited
	}

	result, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return analysis.Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fp.Equal(fp) {
		log.Debug().Str("session", s.id).Msg("Text replaced during analysis, result not memoized")
		return result, nil
	}
	if err := s.memo.Set(key, result); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("Failed to memoize analysis")
	}
	return result, nil
}

// Close releases the session memo
func (s *Session) Close() error {
	return s.memo.Close()
}
