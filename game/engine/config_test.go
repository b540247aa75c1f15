package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGameConfig_ValidConfig(t *testing.T) {
	require.NoError(t, ValidateGameConfig(createTestConfig()))
	require.NoError(t, ValidateGameConfig(DefaultGameConfig()))
}

func TestValidateGameConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *GameConfig)
		message string
	}{
		{"missing name", func(c *GameConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *GameConfig) { c.Description = "" }, "description is required"},
		{"boundary too small", func(c *GameConfig) { c.World.BoundaryLimit = 1 }, "boundary_limit"},
		{"boundary too large", func(c *GameConfig) { c.World.BoundaryLimit = 5000 }, "boundary_limit"},
		{"zero speed", func(c *GameConfig) { c.Bike.Speed = 0 }, "bike.speed"},
		{"sprint slower than base", func(c *GameConfig) { c.Bike.SprintSpeed = 0.1 }, "sprint_speed"},
		{"zero rotation", func(c *GameConfig) { c.Bike.RotationSpeed = 0 }, "rotation_speed"},
		{"acceleration above one", func(c *GameConfig) { c.Bike.Acceleration = 1.5 }, "acceleration"},
		{"zero deceleration", func(c *GameConfig) { c.Bike.Deceleration = 0 }, "deceleration"},
		{"start outside boundary", func(c *GameConfig) { c.Bike.StartPosition.X = 200 }, "start_position"},
		{"zero trigger distance", func(c *GameConfig) { c.ZoneSettings.TriggerDistance = 0 }, "trigger_distance"},
		{"negative cooldown", func(c *GameConfig) { c.ZoneSettings.CooldownMS = -1 }, "cooldown_ms"},
		{"zero xp per zone", func(c *GameConfig) { c.Game.XPPerZone = 0 }, "xp_per_zone"},
		{"negative total zones", func(c *GameConfig) { c.Game.TotalZones = -1 }, "total_zones"},
		{"no zones", func(c *GameConfig) { c.Zones = nil }, "at least one zone"},
		{"negative toast duration", func(c *GameConfig) { c.UI.ToastDurationMS = -5 }, "toast_duration_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createTestConfig()
			tt.mutate(cfg)
			err := ValidateGameConfig(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidateGameConfig_GodModeAllowsOutsideStart(t *testing.T) {
	cfg := createTestConfig()
	cfg.Bike.StartPosition.X = 500
	cfg.Debug.GodMode = true
	assert.NoError(t, ValidateGameConfig(cfg))
}

func TestValidateGameConfig_Nil(t *testing.T) {
	assert.ErrorIs(t, ValidateGameConfig(nil), ErrInvalidConfig)
}

func TestParseGameConfig_KeepsDefaults(t *testing.T) {
	data := []byte(`{
		"name": "tiny",
		"description": "one zone",
		"world": {"boundary_limit": 50},
		"zones": [{"id": "only", "name": "Only", "position": {"x": 10, "y": 0, "z": 0}, "xp_reward": 25}]
	}`)

	cfg, err := ParseGameConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "tiny", cfg.Name)
	assert.Equal(t, 50.0, cfg.World.BoundaryLimit)
	assert.Equal(t, 0.5, cfg.Bike.Speed)
	assert.Equal(t, 10.0, cfg.ZoneSettings.TriggerDistance)
	assert.Equal(t, "WELCOME TO THE GRID", cfg.Messages.WelcomeTitle)
	require.Len(t, cfg.Zones, 1)
	assert.Equal(t, "only", cfg.Zones[0].ID)
}

func TestParseGameConfig_BadJSON(t *testing.T) {
	_, err := ParseGameConfig([]byte(`{"name":`))
	assert.Error(t, err)
}

func TestLoadGameConfig_ConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"name":"override","description":"from CONFIG_DIR","zones":[{"id":"z","position":{"x":1,"y":0,"z":1},"xp_reward":5}]}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "override.json"), data, 0644))

	t.Setenv("CONFIG_DIR", dir)
	cfg, err := LoadGameConfig("configs/override.json")
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Name)
}

func TestLoadGameConfig_Missing(t *testing.T) {
	_, err := LoadGameConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestZoneSettingsCooldownDefault(t *testing.T) {
	assert.Equal(t, DefaultCooldown, ZoneSettings{}.Cooldown())
	assert.Equal(t, DefaultToastDuration, UISettings{}.ToastDuration())
}
