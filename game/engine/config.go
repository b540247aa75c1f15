package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid game config")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ValidateGameConfig validates a world configuration for correctness and
// playability. Individual zones are not rejected here; malformed zones are
// skipped by the ZoneRegistry.
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return invalid("config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return invalid("name is required")
	}
	if config.Description == "" {
		return invalid("description is required")
	}

	// Validate world
	if config.World.BoundaryLimit < MinBoundary || config.World.BoundaryLimit > MaxBoundary {
		return invalid("world.boundary_limit must be between %.0f and %.0f, got %g",
			MinBoundary, MaxBoundary, config.World.BoundaryLimit)
	}

	// Validate bike tuning
	bike := config.Bike
	if bike.Speed <= 0 {
		return invalid("bike.speed must be positive, got %g", bike.Speed)
	}
	if bike.SprintSpeed < bike.Speed {
		return invalid("bike.sprint_speed (%g) must be at least bike.speed (%g)", bike.SprintSpeed, bike.Speed)
	}
	if bike.RotationSpeed <= 0 || bike.RotationSpeed > math.Pi {
		return invalid("bike.rotation_speed must be in (0, pi], got %g", bike.RotationSpeed)
	}
	if bike.Acceleration <= 0 || bike.Acceleration > 1 {
		return invalid("bike.acceleration must be in (0, 1], got %g", bike.Acceleration)
	}
	if bike.Deceleration <= 0 || bike.Deceleration > 1 {
		return invalid("bike.deceleration must be in (0, 1], got %g", bike.Deceleration)
	}
	if !config.Debug.GodMode {
		limit := config.World.BoundaryLimit
		if math.Abs(bike.StartPosition.X) > limit || math.Abs(bike.StartPosition.Z) > limit {
			return invalid("bike.start_position (%g, %g) lies outside the boundary %g",
				bike.StartPosition.X, bike.StartPosition.Z, limit)
		}
	}

	// Validate zone settings
	if config.ZoneSettings.TriggerDistance <= 0 {
		return invalid("zone_settings.trigger_distance must be positive, got %g", config.ZoneSettings.TriggerDistance)
	}
	if config.ZoneSettings.CooldownMS < 0 {
		return invalid("zone_settings.cooldown_ms must not be negative, got %d", config.ZoneSettings.CooldownMS)
	}

	// Validate progression
	if config.Game.XPPerZone <= 0 || config.Game.XPPerZone > MaxXPPerZone {
		return invalid("game.xp_per_zone must be between 1 and %d, got %d", MaxXPPerZone, config.Game.XPPerZone)
	}
	if config.Game.TotalZones < 0 || config.Game.TotalZones > MaxZones {
		return invalid("game.total_zones must be between 0 and %d, got %d", MaxZones, config.Game.TotalZones)
	}
	if config.Game.TargetFPS < 0 || config.Game.TargetFPS > 240 {
		return invalid("game.target_fps must be between 0 and 240, got %d", config.Game.TargetFPS)
	}
	if len(config.Zones) == 0 {
		return invalid("at least one zone is required")
	}
	if len(config.Zones) > MaxZones {
		return invalid("at most %d zones are allowed, got %d", MaxZones, len(config.Zones))
	}

	if config.UI.ToastDurationMS < 0 {
		return invalid("ui.toast_duration_ms must not be negative, got %d", config.UI.ToastDurationMS)
	}

	return nil
}

// LoadGameConfig loads a world configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return ParseGameConfig(data)
}

// ParseGameConfig decodes JSON on top of DefaultGameConfig, so omitted tuning
// fields keep their defaults, then validates the result.
func ParseGameConfig(data []byte) (*GameConfig, error) {
	config := DefaultGameConfig()
	config.Zones = nil
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse game config: %w", err)
	}

	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultGameConfig returns the built-in five zone world
func DefaultGameConfig() *GameConfig {
	reward := func(n int) *int { return &n }
	at := func(x, z float64) *Point { return &Point{X: x, Y: 0, Z: z} }

	return &GameConfig{
		Name:        "classic",
		Description: "Five zones around the origin of a 180x180 grid",
		World: WorldSettings{
			BoundaryLimit: 90,
			GridSize:      200,
		},
		Bike: BikeSettings{
			Speed:         0.5,
			SprintSpeed:   1.0,
			RotationSpeed: 0.05,
			Acceleration:  0.1,
			Deceleration:  0.05,
			StartPosition: Point{X: 0, Y: 0.5, Z: 0},
		},
		ZoneSettings: ZoneSettings{
			TriggerDistance: 10,
			CooldownMS:      2000,
		},
		Game: GameSettings{
			TotalZones: 5,
			XPPerZone:  25,
			TargetFPS:  DefaultTargetFPS,
		},
		UI: UISettings{
			ToastDurationMS: 3000,
		},
		Messages: Messages{
			WelcomeTitle:    "WELCOME TO THE GRID",
			WelcomeMessage:  "Use WASD or Arrow keys to navigate",
			CompleteTitle:   "EXPLORATION COMPLETE!",
			CompleteMessage: "You have discovered every zone",
		},
		Zones: []ZoneSpec{
			{ID: "about", Name: "About", Subtitle: "Who is riding", Position: at(0, -40), OverlayID: "about-overlay", XPReward: reward(25), Color: "#00ffff"},
			{ID: "projects", Name: "Projects", Subtitle: "Things that got built", Position: at(50, -20), OverlayID: "projects-overlay", XPReward: reward(25), Color: "#ff00ff"},
			{ID: "experience", Name: "Experience", Subtitle: "Where the miles came from", Position: at(-50, -20), OverlayID: "experience-overlay", XPReward: reward(25), Color: "#ffff00"},
			{ID: "skills", Name: "Skills", Subtitle: "The toolbox", Position: at(30, 40), OverlayID: "skills-overlay", XPReward: reward(25), Color: "#00ff66"},
			{ID: "contact", Name: "Contact", Subtitle: "Signal the rider", Position: at(-30, 40), OverlayID: "contact-overlay", XPReward: reward(25), Color: "#ff6600"},
		},
	}
}
