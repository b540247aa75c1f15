package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wricardo/grid-explorer/game/engine"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	keys     engine.KeyMap
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *gameServiceImpl) { s.logger = logger }
}

// WithKeyMap replaces the key bindings used for AdvanceRequest.Keys
func WithKeyMap(keys engine.KeyMap) Option {
	return func(s *gameServiceImpl) { s.keys = keys }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		keys:     engine.DefaultKeyMap(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a display name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName || cfg.ConfigID == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	state := sess.World.State()
	configID := sess.ConfigName
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		Realtime:       state.Running,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          &state,
	}
}

// session looks up a live session and records the access
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	_ = s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// persist saves the session; failures are logged, never returned
func (s *gameServiceImpl) persist(sessionID string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session", sessionID).Msg("failed to persist session")
	}
}

// CreateSession creates a new session with its own world
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string, opts SessionOptions) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.GameConfig
	var err error
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: config '%s' not found. Available configs: %v", ErrInvalidRequest, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: config '%s' not found. Use /api/configs to list available configurations", ErrInvalidRequest, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configName = s.getConfigID(config.Name)
	}

	sess, err := s.sessions.Create(opts.ID, strings.TrimSuffix(configName, ".json"), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if opts.Realtime {
		if err := sess.World.Start(); err != nil {
			return nil, fmt.Errorf("failed to start world: %w", err)
		}
	}

	s.logger.Info().
		Str("session", sess.ID).
		Str("config", sess.ConfigName).
		Bool("realtime", opts.Realtime).
		Msg("session created")

	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session and closes its world
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Delete(sessionID)
}

// SetInput replaces the buttons held in a session's world
func (s *gameServiceImpl) SetInput(ctx context.Context, sessionID string, input engine.InputSnapshot) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	return sess.World.SetInput(input)
}

// Advance holds the requested input and runs fixed-step frames until the
// count is reached or the world pauses
func (s *gameServiceImpl) Advance(ctx context.Context, sessionID string, req AdvanceRequest) (*AdvanceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Frames < 1 {
		return nil, fmt.Errorf("%w: frames must be at least 1, got %d", ErrInvalidRequest, req.Frames)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	world := sess.World

	switch {
	case req.Input != nil:
		err = world.SetInput(*req.Input)
	case len(req.Keys) > 0:
		err = world.SetInput(s.keys.Snapshot(req.Keys))
	}
	if err != nil {
		return nil, err
	}

	frames := req.Frames
	truncated := frames > engine.MaxAdvanceFrames
	if truncated {
		frames = engine.MaxAdvanceFrames
	}

	startPos := engine.PointFrom(world.Pose().Position)
	startXP := world.Progress().XP
	seq := world.EventSeq()

	n, err := world.Advance(frames)
	if err != nil {
		return nil, err
	}

	events, _ := world.EventsSince(seq)
	state := world.State()

	result := &AdvanceResult{
		FramesRequested: req.Frames,
		FramesRun:       n,
		Events:          toGameEvents(events),
		XPDelta:         state.Progress.XP - startXP,
		StartPos:        startPos,
		EndPos:          state.Pose.Position,
		State:           &state,
	}

	switch {
	case state.Progress.Completed && result.XPDelta > 0:
		result.StopReason = StopCompleted
		result.Message = sess.Config.Messages.CompleteMessage
		if state.Paused {
			result.Message += fmt.Sprintf(" (overlay %q is open, close it to continue)", state.OpenOverlay)
		}
	case state.Paused && state.OpenOverlay != "":
		result.StopReason = StopPaused
		result.Message = fmt.Sprintf("Overlay %q is open; close it to continue", state.OpenOverlay)
	case state.Paused:
		result.StopReason = StopPaused
		result.Message = "World is paused; resume it to continue"
	case truncated:
		result.StopReason = StopTruncated
		result.Message = fmt.Sprintf("Advance is limited to %d frames per call", engine.MaxAdvanceFrames)
	}

	s.persist(sess.ID)
	return result, nil
}

func toGameEvents(events []engine.ZoneEvent) []GameEvent {
	out := make([]GameEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, GameEvent{
			Type:       "zone_" + string(ev.Type),
			ZoneID:     ev.Zone.ID,
			ZoneName:   ev.Zone.Name,
			OverlayID:  ev.Zone.OverlayID,
			FirstVisit: ev.FirstVisit,
			XPAwarded:  ev.XPAwarded,
			Position:   engine.PointFrom(ev.Zone.Position),
			Timestamp:  ev.At,
		})
	}
	return out
}

// CloseOverlay dismisses an overlay and resumes the world
func (s *gameServiceImpl) CloseOverlay(ctx context.Context, sessionID, overlayID string) (*engine.WorldState, error) {
	return s.command(sessionID, func(w *engine.World) error {
		return w.CloseOverlay(overlayID)
	})
}

// Pause freezes a session's update phase
func (s *gameServiceImpl) Pause(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	return s.command(sessionID, func(w *engine.World) error {
		w.Pause()
		return nil
	})
}

// Resume unfreezes a session, closing any open overlay
func (s *gameServiceImpl) Resume(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	return s.command(sessionID, func(w *engine.World) error {
		w.Resume()
		return nil
	})
}

// Reset starts the session's world over
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	return s.command(sessionID, func(w *engine.World) error {
		return w.Reset()
	})
}

func (s *gameServiceImpl) command(sessionID string, fn func(*engine.World) error) (*engine.WorldState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess.World); err != nil {
		return nil, err
	}
	s.persist(sess.ID)

	state := sess.World.State()
	return &state, nil
}

// GetWorldState returns the full state of a session's world
func (s *gameServiceImpl) GetWorldState(ctx context.Context, sessionID string) (*engine.WorldState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.World.State()
	return &state, nil
}

// ListZones reports every zone of a session with its runtime state
func (s *gameServiceImpl) ListZones(ctx context.Context, sessionID string) ([]engine.ZoneView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.World.Zones(), nil
}

// ListConfigs returns available configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a configuration by name
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a configuration
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}
