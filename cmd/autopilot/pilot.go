package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/wricardo/grid-explorer/game/engine"
)

// Pilot plans a zone tour before driving and turns world state into the keys
// to hold next
type Pilot struct {
	speed         float64
	sprintSpeed   float64
	rotationSpeed float64
	radius        float64

	// Route planning
	order       []string // Planned zone visit order
	targetIndex int      // Index in order

	// Stuck detection
	lastDistance float64
	stuckCount   int

	logger zerolog.Logger
}

// Step is one advance request: hold keys for frames
type Step struct {
	Keys   []string
	Frames int
	Target string
}

const (
	maxDriveFrames = 90
	sprintDistance = 25.0
	stuckLimit     = 5
)

// NewPilot plans a nearest-neighbour tour of the zones not yet discovered
func NewPilot(cfg *engine.GameConfig, state *engine.WorldState, logger zerolog.Logger) *Pilot {
	p := &Pilot{
		speed:         cfg.Bike.Speed,
		sprintSpeed:   cfg.Bike.SprintSpeed,
		rotationSpeed: cfg.Bike.RotationSpeed,
		radius:        cfg.ZoneSettings.TriggerDistance,
		lastDistance:  math.Inf(1),
		logger:        logger,
	}
	p.planTour(state)
	return p
}

func flat(pt engine.Point) mgl64.Vec2 {
	return mgl64.Vec2{pt.X, pt.Z}
}

// planTour orders the remaining zones greedily by distance
func (p *Pilot) planTour(state *engine.WorldState) {
	remaining := make(map[string]engine.ZoneView)
	for _, z := range state.Zones {
		if z.Status != "triggered" {
			remaining[z.ID] = z
		}
	}

	p.order = make([]string, 0, len(remaining))
	p.targetIndex = 0
	current := flat(state.Pose.Position)

	for len(remaining) > 0 {
		nearest := ""
		minDist := math.MaxFloat64
		for _, z := range state.Zones {
			if _, ok := remaining[z.ID]; !ok {
				continue
			}
			if d := flat(z.Position).Sub(current).Len(); d < minDist {
				minDist = d
				nearest = z.ID
			}
		}
		p.order = append(p.order, nearest)
		current = flat(remaining[nearest].Position)
		delete(remaining, nearest)
	}

	p.logger.Info().Strs("order", p.order).Msg("tour planned")
}

// Order returns the planned visit order
func (p *Pilot) Order() []string {
	return append([]string(nil), p.order...)
}

// Target returns the next zone of the tour that is not yet discovered
func (p *Pilot) Target(state *engine.WorldState) (engine.ZoneView, bool) {
	byID := make(map[string]engine.ZoneView, len(state.Zones))
	for _, z := range state.Zones {
		byID[z.ID] = z
	}

	for p.targetIndex < len(p.order) {
		z, ok := byID[p.order[p.targetIndex]]
		if ok && z.Status != "triggered" {
			return z, true
		}
		p.targetIndex++
		p.lastDistance = math.Inf(1)
		p.stuckCount = 0
	}
	return engine.ZoneView{}, false
}

// wrapAngle maps an angle to (-pi, pi]
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// bearing is the heading that faces (dx, dz); heading 0 faces -z
func bearing(dx, dz float64) float64 {
	return math.Atan2(-dx, -dz)
}

// Next returns the keys to hold toward the current target. It turns in place
// until the heading is within one rotation step, then drives.
func (p *Pilot) Next(state *engine.WorldState) (Step, bool) {
	target, ok := p.Target(state)
	if !ok {
		return Step{}, false
	}

	pos := flat(state.Pose.Position)
	delta := flat(target.Position).Sub(pos)
	dist := delta.Len()

	if dist >= p.lastDistance-0.01 {
		p.stuckCount++
	} else {
		p.stuckCount = 0
	}
	p.lastDistance = dist

	diff := wrapAngle(bearing(delta.X(), delta.Y()) - state.Pose.Heading)
	tolerance := math.Max(p.rotationSpeed, 0.05)

	if math.Abs(diff) > tolerance {
		key := "KeyA"
		if diff < 0 {
			key = "KeyD"
		}
		frames := int(math.Ceil(math.Abs(diff) / p.rotationSpeed))
		return Step{Keys: []string{key}, Frames: frames, Target: target.ID}, true
	}

	keys := []string{"KeyW"}
	speed := p.speed
	if dist > sprintDistance || p.stuckCount >= stuckLimit {
		keys = append(keys, "ShiftLeft")
		speed = p.sprintSpeed
	}

	frames := int(math.Ceil((dist - p.radius/2) / speed))
	if frames < 1 {
		frames = 1
	}
	if frames > maxDriveFrames {
		frames = maxDriveFrames
	}
	return Step{Keys: keys, Frames: frames, Target: target.ID}, true
}

// Reset replans the tour from a fresh state
func (p *Pilot) Reset(state *engine.WorldState) {
	p.lastDistance = math.Inf(1)
	p.stuckCount = 0
	p.planTour(state)
}
