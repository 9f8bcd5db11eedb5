package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/rng"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// Manager handles game session lifecycle. Sessions live in memory only.
type Manager struct {
	sessions  map[string]*service.Session
	newSource func() rng.Source
	mu        sync.RWMutex
}

// Option customises a Manager
type Option func(*Manager)

// WithSourceFactory sets how each new engine gets its random source
func WithSourceFactory(f func() rng.Source) Option {
	return func(m *Manager) { m.newSource = f }
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:  make(map[string]*service.Session),
		newSource: func() rng.Source { return rng.NewTimeSeeded() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates a session of the given kind. An empty id is generated.
func (m *Manager) Create(id string, kind service.Kind, presetID string, preset *config.Preset) (*service.Session, error) {
	if preset == nil {
		preset = config.ClassicPreset()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateSessionID()
	} else if _, exists := m.sessions[strings.ToLower(id)]; exists {
		return nil, ErrSessionAlreadyExists
	}

	sess := &service.Session{
		ID:             id,
		Kind:           kind,
		PresetID:       presetID,
		Preset:         preset,
		Events:         &event.Recorder{},
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}

	var err error
	switch kind {
	case service.KindMatch:
		sess.Match, err = match.NewEngine(preset.MatchRules(),
			match.WithSource(m.newSource()), match.WithSink(sess.Events))
	case service.KindRouting:
		sess.Routing, err = routing.NewEngine(preset.RoutingRules(),
			routing.WithSource(m.newSource()), routing.WithSink(sess.Events))
	default:
		err = fmt.Errorf("%w: %q", service.ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	m.sessions[strings.ToLower(id)] = sess
	return sess, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sess, ok := m.sessions[strings.ToLower(id)]; ok {
		return sess, nil
	}
	return nil, ErrSessionNotFound
}

// List returns all live sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	return result
}

// Delete removes a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, ok := m.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, key)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[strings.ToLower(id)]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastAccessedAt = time.Now()
	return nil
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the given duration
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, key)
			removed++
		}
	}
	return removed
}

// RunJanitor drops idle sessions every interval until ctx is done
func (m *Manager) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupExpiredSessions(maxAge); n > 0 {
				log.Info().Int("removed", n).Int("remaining", m.Count()).Msg("idle sessions cleaned up")
			}
		}
	}
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID returns an unused 4-character hex id. Caller holds m.mu.
func (m *Manager) generateSessionID() string {
	bytes := make([]byte, 2)
	for {
		if _, err := rand.Read(bytes); err != nil {
			log.Error().Err(err).Msg("session id entropy")
		}
		id := hex.EncodeToString(bytes)
		if _, exists := m.sessions[id]; !exists {
			return id
		}
	}
}
