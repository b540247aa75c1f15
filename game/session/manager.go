package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/wricardo/grid-explorer/game/engine"
	"github.com/wricardo/grid-explorer/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// WorldFactory builds the world owned by a new session
type WorldFactory func(sessionID string, config *engine.GameConfig) (*engine.World, error)

// HeadlessWorlds builds worlds with no renderer, a logging UI and a latched
// input source. Each world gets its own clock when clk is nil.
func HeadlessWorlds(logger zerolog.Logger, clk clock.Clock) WorldFactory {
	return func(sessionID string, config *engine.GameConfig) (*engine.World, error) {
		l := logger.With().Str("session", sessionID).Logger()
		return engine.NewWorld(config, engine.Dependencies{
			Renderer: engine.NopRenderer{},
			UI:       engine.LogUI{Logger: l},
			Input:    engine.NewLatchedInput(),
			Clock:    clk,
			Logger:   &l,
		})
	}
}

// ConfigLoader resolves the config a persisted session was created with
type ConfigLoader interface {
	LoadConfig(name string) (*engine.GameConfig, error)
}

// Manager handles session lifecycle. Every session owns a world; removing a
// session from memory closes it.
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	configs     ConfigLoader
	newWorld    WorldFactory
	clock       clock.Clock
	logger      zerolog.Logger
	mu          sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithPersistence stores sessions in p. configs is used to rebuild the world
// of a session loaded from storage.
func WithPersistence(p SessionPersistence, configs ConfigLoader) Option {
	return func(m *Manager) {
		m.persistence = p
		m.configs = configs
	}
}

// WithWorldFactory replaces the headless world factory
func WithWorldFactory(f WorldFactory) Option {
	return func(m *Manager) { m.newWorld = f }
}

// WithClock sets the clock used for access times and expiry
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clock = clk }
}

// WithLogger sets the manager logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*service.Session),
		clock:    clock.New(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.newWorld == nil {
		m.newWorld = HeadlessWorlds(m.logger, nil)
	}
	return m
}

// Create creates a new session with the given ID and configuration
func (m *Manager) Create(id, configName string, config *engine.GameConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		for attempt := 0; attempt < 8; attempt++ {
			id = m.generateSessionID()
			if !m.sessionExists(id) {
				break
			}
		}
	}
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	world, err := m.newWorld(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}

	now := m.clock.Now()
	session := &service.Session{
		ID:             id,
		ConfigName:     configName,
		World:          world,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	m.sessions[strings.ToLower(id)] = session

	if m.persistence != nil {
		if err := m.persistence.Save(snapshot(session)); err != nil {
			// the session is usable without storage
			m.logger.Warn().Err(err).Str("session", id).Msg("failed to persist session")
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive), loading it from storage
// when it is not in memory
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		m.mu.Lock()
		defer m.mu.Unlock()

		// another caller may have loaded it meanwhile
		if session, exists := m.sessions[strings.ToLower(id)]; exists {
			return session, nil
		}

		session, err := m.restore(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}
		m.sessions[strings.ToLower(id)] = session
		return session, nil
	}

	return nil, ErrSessionNotFound
}

// restore rebuilds a stored session's world and replays its progress
func (m *Manager) restore(id string) (*service.Session, error) {
	data, err := m.persistence.Load(id)
	if err != nil {
		return nil, err
	}
	if m.configs == nil {
		return nil, fmt.Errorf("no config loader to rebuild session %s", id)
	}

	config, err := m.configs.LoadConfig(data.ConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
	}

	world, err := m.newWorld(data.ID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}
	if err := world.RestoreProgress(data.Progress); err != nil {
		world.Close()
		return nil, fmt.Errorf("failed to restore progress: %w", err)
	}
	world.PlaceVehicle(data.Position.Vec3(), data.Heading)

	return &service.Session{
		ID:             data.ID,
		ConfigName:     data.ConfigName,
		World:          world,
		Config:         config,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and storage and closes its world
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	session, inMemory := m.sessions[lowerID]
	if inMemory {
		delete(m.sessions, lowerID)
		session.World.Close()
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory closes a session's world but keeps it in storage
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	session, exists := m.sessions[lowerID]
	if !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, lowerID)
	session.World.Close()
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}

	session.LastAccessedAt = m.clock.Now()
	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		m.mu.RUnlock()
		return ErrSessionNotFound
	}
	data := snapshot(session)
	m.mu.RUnlock()

	return m.persistence.Save(data)
}

// CleanupExpiredSessions closes and unloads sessions that haven't been
// accessed in maxAge. Stored copies are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			if m.persistence != nil {
				if err := m.persistence.Save(snapshot(session)); err != nil {
					m.logger.Warn().Err(err).Str("session", session.ID).Msg("failed to persist expiring session")
				}
			}
			delete(m.sessions, id)
			session.World.Close()
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("expired sessions unloaded")
	}
	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks memory and storage (case-insensitive in memory)
func (m *Manager) sessionExists(id string) bool {
	if _, exists := m.sessions[strings.ToLower(id)]; exists {
		return true
	}
	return m.persistence != nil && m.persistence.Exists(id)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if _, exists := m.sessions[strings.ToLower(id)]; exists {
			continue
		}

		session, err := m.restore(id)
		if err != nil {
			m.logger.Warn().Err(err).Str("session", id).Msg("failed to load persisted session")
			continue
		}

		m.sessions[strings.ToLower(id)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		m.logger.Info().Int("count", loadedCount).Msg("loaded persisted sessions")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	pending := make([]*PersistedSessionData, 0, len(m.sessions))
	for _, session := range m.sessions {
		pending = append(pending, snapshot(session))
	}
	m.mu.RUnlock()

	errorCount := 0
	for _, data := range pending {
		if err := m.persistence.Save(data); err != nil {
			m.logger.Warn().Err(err).Str("session", data.ID).Msg("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}

// Close saves every session and closes all worlds
func (m *Manager) Close() error {
	err := m.SaveAllSessions()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		session.World.Close()
		delete(m.sessions, id)
	}
	return err
}

// snapshot captures the persisted form of a session
func snapshot(s *service.Session) *PersistedSessionData {
	pose := s.World.Pose()
	return &PersistedSessionData{
		ID:             s.ID,
		ConfigName:     s.ConfigName,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		Progress:       s.World.Progress(),
		Position:       engine.PointFrom(pose.Position),
		Heading:        pose.Heading,
	}
}
