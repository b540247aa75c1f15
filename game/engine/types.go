package engine

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// ToastKind selects how a toast is styled by the UI
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
	ToastError   ToastKind = "error"

	// Validation constants
	MinBoundary      = 10.0
	MaxBoundary      = 1000.0
	MaxZones         = 64
	MaxXPPerZone     = 10000
	MaxAdvanceFrames = 600

	// Scheduler constants
	DefaultTargetFPS = 60
	FPSSampleWindow  = 60

	// Timing defaults
	DefaultCooldown      = 2 * time.Second
	DefaultToastDuration = 3 * time.Second
	WelcomeToastDuration = 4 * time.Second

	// Labels reported when the bike is not inside any zone
	ExplorationLabel    = "EXPLORATION MODE"
	ExplorationSubtitle = "Navigate to zones to unlock content"
)

// Point is the JSON form of a position or vector
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec3 converts the point to a math vector
func (p Point) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

// PointFrom converts a math vector to its JSON form
func PointFrom(v mgl64.Vec3) Point {
	return Point{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// WorldSettings describes the playable plane
type WorldSettings struct {
	BoundaryLimit float64 `json:"boundary_limit"`
	GridSize      float64 `json:"grid_size,omitempty"`
}

// BikeSettings holds the kinematic tuning of the vehicle. Speeds are world
// units per frame.
type BikeSettings struct {
	Speed         float64 `json:"speed"`
	SprintSpeed   float64 `json:"sprint_speed"`
	RotationSpeed float64 `json:"rotation_speed"`
	Acceleration  float64 `json:"acceleration"`
	Deceleration  float64 `json:"deceleration"`
	StartPosition Point   `json:"start_position"`
}

// ZoneSettings controls proximity triggering
type ZoneSettings struct {
	TriggerDistance float64 `json:"trigger_distance"`
	CooldownMS      int     `json:"cooldown_ms"`
}

// Cooldown returns the re-entry cooldown, falling back to DefaultCooldown
func (z ZoneSettings) Cooldown() time.Duration {
	if z.CooldownMS <= 0 {
		return DefaultCooldown
	}
	return time.Duration(z.CooldownMS) * time.Millisecond
}

// GameSettings controls the progression rules
type GameSettings struct {
	TotalZones int  `json:"total_zones"`
	XPPerZone  int  `json:"xp_per_zone"`
	TargetFPS  int  `json:"target_fps,omitempty"`
	DisableXP  bool `json:"disable_xp,omitempty"`
}

// UISettings holds presentation timings handed to the UI collaborator
type UISettings struct {
	ToastDurationMS int `json:"toast_duration_ms"`
}

// ToastDuration returns the default toast lifetime
func (u UISettings) ToastDuration() time.Duration {
	if u.ToastDurationMS <= 0 {
		return DefaultToastDuration
	}
	return time.Duration(u.ToastDurationMS) * time.Millisecond
}

// DebugSettings holds developer switches
type DebugSettings struct {
	GodMode bool `json:"god_mode"`
}

// Messages are the player-facing strings of a world
type Messages struct {
	WelcomeTitle    string `json:"welcome_title"`
	WelcomeMessage  string `json:"welcome_message"`
	CompleteTitle   string `json:"complete_title"`
	CompleteMessage string `json:"complete_message"`
}

// ZoneSpec is a zone as it appears in a config file. Position and XPReward are
// pointers so a missing field can be told apart from a zero value.
type ZoneSpec struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subtitle  string `json:"subtitle,omitempty"`
	Position  *Point `json:"position,omitempty"`
	OverlayID string `json:"overlay_id,omitempty"`
	XPReward  *int   `json:"xp_reward,omitempty"`
	Color     string `json:"color,omitempty"`
}

// GameConfig represents a world configuration loaded from JSON
type GameConfig struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	World        WorldSettings `json:"world"`
	Bike         BikeSettings  `json:"bike"`
	ZoneSettings ZoneSettings  `json:"zone_settings"`
	Game         GameSettings  `json:"game"`
	UI           UISettings    `json:"ui"`
	Debug        DebugSettings `json:"debug"`
	Messages     Messages      `json:"messages"`
	Zones        []ZoneSpec    `json:"zones"`
}

// MaxXP is the experience cap implied by the config
func (c *GameConfig) MaxXP() int {
	return c.Game.TotalZones * c.Game.XPPerZone
}

// ZoneDescriptor is an immutable, validated zone
type ZoneDescriptor struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Subtitle  string     `json:"subtitle,omitempty"`
	Position  mgl64.Vec3 `json:"-"`
	OverlayID string     `json:"overlay_id,omitempty"`
	XPReward  int        `json:"xp_reward"`
	Color     string     `json:"color,omitempty"`
}

// InputSnapshot is the set of logical buttons held during one frame. It is a
// value type; a frame never observes a snapshot changing underneath it.
type InputSnapshot struct {
	Forward  bool `json:"forward"`
	Backward bool `json:"backward"`
	Left     bool `json:"left"`
	Right    bool `json:"right"`
	Sprint   bool `json:"sprint"`
	Pause    bool `json:"pause"`
	Center   bool `json:"center"`
}

// Directional reports whether any forward/backward button is held
func (in InputSnapshot) Directional() bool {
	return in.Forward != in.Backward
}

// VehiclePose is the kinematic state of the bike after a frame
type VehiclePose struct {
	Position  mgl64.Vec3
	Velocity  mgl64.Vec3
	Heading   float64
	Moving    bool
	Sprinting bool
}

// PoseView is the JSON form of a VehiclePose
type PoseView struct {
	Position  Point   `json:"position"`
	Velocity  Point   `json:"velocity"`
	Heading   float64 `json:"heading"`
	Moving    bool    `json:"moving"`
	Sprinting bool    `json:"sprinting"`
}

// View converts the pose to its JSON form
func (p VehiclePose) View() PoseView {
	return PoseView{
		Position:  PointFrom(p.Position),
		Velocity:  PointFrom(p.Velocity),
		Heading:   p.Heading,
		Moving:    p.Moving,
		Sprinting: p.Sprinting,
	}
}

// ProgressSnapshot is the plain serializable form of the ledger
type ProgressSnapshot struct {
	XP             int      `json:"xp"`
	Level          int      `json:"level"`
	VisitedZoneIDs []string `json:"visited_zone_ids"`
	Completed      bool     `json:"completed"`
}

// ProgressView extends the snapshot with derived values for display
type ProgressView struct {
	ProgressSnapshot
	MaxXP             int     `json:"max_xp"`
	TotalZones        int     `json:"total_zones"`
	CompletionPercent int     `json:"completion_percent"`
	CurrentZone       string  `json:"current_zone,omitempty"`
	PlayTimeSeconds   float64 `json:"play_time_seconds"`
}

// ZoneView reports a zone together with its runtime state
type ZoneView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Subtitle   string `json:"subtitle,omitempty"`
	Position   Point  `json:"position"`
	OverlayID  string `json:"overlay_id,omitempty"`
	XPReward   int    `json:"xp_reward"`
	Status     string `json:"status"`
	OnCooldown bool   `json:"on_cooldown"`
	Active     bool   `json:"active"`
}

// WorldState is a complete, JSON-friendly view of a world
type WorldState struct {
	ConfigName  string       `json:"config_name"`
	Pose        PoseView     `json:"pose"`
	Progress    ProgressView `json:"progress"`
	Zones       []ZoneView   `json:"zones"`
	Paused      bool         `json:"paused"`
	Running     bool         `json:"running"`
	FreeRoam    bool         `json:"free_roam"`
	Frame       uint64       `json:"frame"`
	FPS         int          `json:"fps"`
	Elapsed     float64      `json:"elapsed"`
	OpenOverlay string       `json:"open_overlay,omitempty"`
}
