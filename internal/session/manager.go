package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/observability"
)

var (
	// ErrNotFound is returned for unknown or expired session ids
	ErrNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when MaxSessions live sessions exist
	ErrTooManySessions = errors.New("too many sessions")
)

// ManagerConfig configures the session registry
type ManagerConfig struct {
	Extractor Extractor
	Analyzer  Analyzer
	APIKeys   map[ai.ProviderType]string

	IdleTimeout   time.Duration
	SweepInterval time.Duration
	MaxSessions   int

	// AnalyzeRate is the sustained number of analyze calls per second per
	// session; zero disables limiting
	AnalyzeRate  float64
	AnalyzeBurst int

	MemoTTL time.Duration
	Metrics *observability.Metrics
}

// Manager owns the live sessions and expires idle ones
type Manager struct {
	cfg      ManagerConfig
	sessions map[string]*Session
	mu       sync.RWMutex
	cron     *cron.Cron
	now      func() time.Time
}

// NewManager creates a session manager. Call Start to enable the idle sweep.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.AnalyzeBurst <= 0 {
		cfg.AnalyzeBurst = 1
	}

	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules the idle sweep
func (m *Manager) Start() error {
	spec := fmt.Sprintf("@every %s", m.cfg.SweepInterval)
	if _, err := m.cron.AddFunc(spec, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	m.cron.Start()

	log.Info().
		Dur("idle_timeout", m.cfg.IdleTimeout).
		Dur("sweep_interval", m.cfg.SweepInterval).
		Msg("Session manager started")
	return nil
}

// Stop halts the sweep, waits for a running sweep and closes all sessions
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("Failed to close session")
		}
		delete(m.sessions, id)
	}
	m.cfg.Metrics.SetActiveSessions(0)
	log.Info().Msg("Session manager stopped")
}

// Create registers a new empty session
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	var limiter *rate.Limiter
	if m.cfg.AnalyzeRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.cfg.AnalyzeRate), m.cfg.AnalyzeBurst)
	}

	s := New(Config{
		ID:        uuid.NewString(),
		Extractor: m.cfg.Extractor,
		Analyzer:  m.cfg.Analyzer,
		APIKeys:   m.cfg.APIKeys,
		MemoTTL:   m.cfg.MemoTTL,
		Limiter:   limiter,
		Metrics:   m.cfg.Metrics,
	})
	m.sessions[s.ID()] = s
	m.cfg.Metrics.SetActiveSessions(len(m.sessions))

	log.Debug().Str("session", s.ID()).Msg("Session created")
	return s, nil
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and removes a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	m.cfg.Metrics.SetActiveSessions(count)
	return s.Close()
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the idle timeout and returns
// how many were removed
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("session", s.ID()).Msg("Failed to close expired session")
		}
	}

	if len(expired) > 0 {
		m.cfg.Metrics.RecordSessionsExpired(len(expired))
		m.cfg.Metrics.SetActiveSessions(count)
		log.Info().Int("expired", len(expired)).Int("active", count).Msg("Expired idle sessions")
	}
	return len(expired)
}
