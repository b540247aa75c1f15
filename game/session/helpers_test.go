package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wricardo/grid-explorer/game/engine"
	"github.com/wricardo/grid-explorer/game/service"
)

func createTestConfig() *engine.GameConfig {
	cfg := engine.DefaultGameConfig()
	cfg.Name = "Test Config"
	cfg.Description = "Test configuration"
	return cfg
}

// staticConfigs serves a fixed set of configs by name
type staticConfigs map[string]*engine.GameConfig

func (c staticConfigs) LoadConfig(name string) (*engine.GameConfig, error) {
	cfg, ok := c[name]
	if !ok {
		return nil, service.ErrInvalidRequest
	}
	return cfg, nil
}

// driveIntoFirstZone holds forward until the world pauses on the zone north
// of the start
func driveIntoFirstZone(t *testing.T, s *service.Session) {
	t.Helper()
	require.NoError(t, s.World.SetInput(engine.InputSnapshot{Forward: true}))
	_, err := s.World.Advance(engine.MaxAdvanceFrames)
	require.NoError(t, err)
	require.Equal(t, 25, s.World.Progress().XP)
	require.NoError(t, s.World.SetInput(engine.InputSnapshot{}))
}
