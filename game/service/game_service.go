package service

import (
	"context"
	"time"

	"github.com/wricardo/grid-explorer/game/engine"
)

// GameService defines all session and simulation operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string, opts SessionOptions) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	SetInput(ctx context.Context, sessionID string, input engine.InputSnapshot) error
	Advance(ctx context.Context, sessionID string, req AdvanceRequest) (*AdvanceResult, error)
	CloseOverlay(ctx context.Context, sessionID, overlayID string) (*engine.WorldState, error)
	Pause(ctx context.Context, sessionID string) (*engine.WorldState, error)
	Resume(ctx context.Context, sessionID string) (*engine.WorldState, error)
	Reset(ctx context.Context, sessionID string) (*engine.WorldState, error)

	// World State
	GetWorldState(ctx context.Context, sessionID string) (*engine.WorldState, error)
	ListZones(ctx context.Context, sessionID string) ([]engine.ZoneView, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configName string, config *engine.GameConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles world configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Session represents a live world owned by one player
type Session struct {
	ID             string
	ConfigName     string
	World          *engine.World
	Config         *engine.GameConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
