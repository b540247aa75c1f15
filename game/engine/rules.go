package engine

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// PauseFlag is the single pause switch shared by the Scheduler and Rules. It
// is atomic so a trigger running inside a frame can request pause without
// taking the world lock again.
type PauseFlag struct {
	v atomic.Bool
}

// Set stores the flag and reports whether it changed
func (p *PauseFlag) Set(paused bool) bool {
	return p.v.Swap(paused) != paused
}

// Paused reports whether the flag is set
func (p *PauseFlag) Paused() bool {
	return p.v.Load()
}

// ProgressReader is the read side of the ledger needed by requirement checks
type ProgressReader interface {
	XP() int
	Level() int
}

// Rules centralizes permission predicates and boundary geometry
type Rules struct {
	logger   zerolog.Logger
	pause    *PauseFlag
	progress ProgressReader

	boundary    float64
	sprintSpeed float64

	godMode     bool
	canMove     atomic.Bool
	canInteract atomic.Bool
	freeRoam    atomic.Bool
}

// NewRules creates the gate for a world. progress may be nil, in which case
// every XP or level requirement fails.
func NewRules(config *GameConfig, pause *PauseFlag, progress ProgressReader, logger zerolog.Logger) *Rules {
	if pause == nil {
		pause = &PauseFlag{}
	}
	r := &Rules{
		logger:      logger.With().Str("component", "rules").Logger(),
		pause:       pause,
		progress:    progress,
		boundary:    config.World.BoundaryLimit,
		sprintSpeed: config.Bike.SprintSpeed,
	}
	r.godMode = config.Debug.GodMode
	r.Reset()
	return r
}

// RulesInfo reports the current state of the gate
type RulesInfo struct {
	CanMove     bool    `json:"can_move"`
	CanInteract bool    `json:"can_interact"`
	FreeRoam    bool    `json:"free_roam"`
	Boundary    float64 `json:"boundary"`
}

// Info returns a snapshot of the gate's switches
func (r *Rules) Info() RulesInfo {
	return RulesInfo{
		CanMove:     r.canMove.Load(),
		CanInteract: r.canInteract.Load(),
		FreeRoam:    r.freeRoam.Load(),
		Boundary:    r.boundary,
	}
}

// Reset restores every switch to its configured default
func (r *Rules) Reset() {
	r.canMove.Store(true)
	r.canInteract.Store(true)
	r.freeRoam.Store(r.godMode)
}

// CanMove reports whether the vehicle may integrate this frame
func (r *Rules) CanMove() bool {
	return r.canMove.Load() && !r.pause.Paused()
}

// CanInteract reports whether zones may be evaluated this frame
func (r *Rules) CanInteract() bool {
	return r.canInteract.Load() && !r.pause.Paused()
}

func (r *Rules) SetCanMove(v bool) {
	r.canMove.Store(v)
	r.logger.Debug().Bool("enabled", v).Msg("movement toggled")
}

func (r *Rules) SetCanInteract(v bool) {
	r.canInteract.Store(v)
	r.logger.Debug().Bool("enabled", v).Msg("interaction toggled")
}

// SetFreeRoam toggles the override that disables boundary clamping
func (r *Rules) SetFreeRoam(v bool) {
	r.freeRoam.Store(v)
	r.logger.Info().Bool("free_roam", v).Msg("boundary override toggled")
}

// FreeRoam reports whether boundary clamping is disabled
func (r *Rules) FreeRoam() bool { return r.freeRoam.Load() }

// Boundary returns the half-extent of the playable plane
func (r *Rules) Boundary() float64 { return r.boundary }

// ValidatePosition reports whether p lies inside the boundary on both
// horizontal axes. Always true in free-roam.
func (r *Rules) ValidatePosition(p mgl64.Vec3) bool {
	if r.FreeRoam() {
		return true
	}
	return math.Abs(p.X()) <= r.boundary && math.Abs(p.Z()) <= r.boundary
}

// ClampPosition clamps x and z into [-boundary, boundary]. Y is untouched.
func (r *Rules) ClampPosition(p mgl64.Vec3) mgl64.Vec3 {
	if r.FreeRoam() {
		return p
	}
	return mgl64.Vec3{
		mgl64.Clamp(p.X(), -r.boundary, r.boundary),
		p.Y(),
		mgl64.Clamp(p.Z(), -r.boundary, r.boundary),
	}
}

// CheckCollision reports whether p is outside the playable area
func (r *Rules) CheckCollision(p mgl64.Vec3) bool {
	return !r.ValidatePosition(p)
}

// ValidateSpeed limits the magnitude of a speed to twice the sprint speed,
// keeping its sign. NaN is discarded as zero.
func (r *Rules) ValidateSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Copysign(math.Min(math.Abs(v), 2*r.sprintSpeed), v)
}

// HasRequiredXP reports whether the player holds at least xp experience
func (r *Rules) HasRequiredXP(xp int) bool {
	if xp <= 0 {
		return true
	}
	return r.progress != nil && r.progress.XP() >= xp
}

// HasRequiredLevel reports whether the player reached level
func (r *Rules) HasRequiredLevel(level int) bool {
	if level <= 1 {
		return true
	}
	return r.progress != nil && r.progress.Level() >= level
}

// CanEnterZone combines the interaction gate with the zone's requirements
func (r *Rules) CanEnterZone(requiredXP, requiredLevel int) bool {
	return r.CanInteract() && r.HasRequiredXP(requiredXP) && r.HasRequiredLevel(requiredLevel)
}
