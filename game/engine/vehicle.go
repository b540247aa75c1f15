package engine

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

var (
	forwardDir  = mgl64.Vec3{0, 0, -1}
	backwardDir = mgl64.Vec3{0, 0, 1}
)

// Vehicle is the kinematic bike model. Turning has no inertia; linear motion
// is smoothed by lerping velocity toward the desired velocity each frame.
type Vehicle struct {
	logger   zerolog.Logger
	rules    *Rules
	renderer Renderer

	baseSpeed     float64
	sprintSpeed   float64
	rotationSpeed float64
	acceleration  float64
	deceleration  float64
	start         mgl64.Vec3

	pose VehiclePose
}

// NewVehicle creates a vehicle at the configured start position. renderer may
// be nil when nothing follows the bike.
func NewVehicle(config *GameConfig, rules *Rules, renderer Renderer, logger zerolog.Logger) *Vehicle {
	v := &Vehicle{
		logger:        logger.With().Str("component", "vehicle").Logger(),
		rules:         rules,
		renderer:      renderer,
		baseSpeed:     config.Bike.Speed,
		sprintSpeed:   config.Bike.SprintSpeed,
		rotationSpeed: config.Bike.RotationSpeed,
		acceleration:  config.Bike.Acceleration,
		deceleration:  config.Bike.Deceleration,
		start:         config.Bike.StartPosition.Vec3(),
	}
	v.pose.Position = v.start
	return v
}

// Update advances the vehicle by one frame. Motion is per frame, so dt is
// only reported to the logger. Nothing happens while Rules.CanMove is false.
func (v *Vehicle) Update(in InputSnapshot, dt float64) VehiclePose {
	if !v.rules.CanMove() {
		return v.pose
	}

	v.updateHeading(in)
	v.updateVelocity(in)
	v.updatePosition()

	if v.renderer != nil {
		v.renderer.FollowTarget(v.pose.Position, v.pose.Heading)
	}

	v.logger.Trace().
		Float64("dt", dt).
		Float64("x", v.pose.Position.X()).
		Float64("z", v.pose.Position.Z()).
		Float64("heading", v.pose.Heading).
		Msg("vehicle updated")

	return v.pose
}

func (v *Vehicle) updateHeading(in InputSnapshot) {
	if in.Left {
		v.pose.Heading += v.rotationSpeed
	}
	if in.Right {
		v.pose.Heading -= v.rotationSpeed
	}
}

func (v *Vehicle) updateVelocity(in InputSnapshot) {
	speed := v.baseSpeed
	if in.Sprint {
		speed = v.sprintSpeed
	}
	speed = v.rules.ValidateSpeed(speed)
	v.pose.Sprinting = in.Sprint

	var dir mgl64.Vec3
	if in.Forward {
		dir = dir.Add(forwardDir)
	}
	if in.Backward {
		dir = dir.Add(backwardDir)
	}

	v.pose.Moving = dir.Len() > 0
	if v.pose.Moving {
		desired := mgl64.Rotate3DY(v.pose.Heading).Mul3x1(dir.Normalize()).Mul(speed)
		v.pose.Velocity = lerp(v.pose.Velocity, desired, v.acceleration)
	} else {
		v.pose.Velocity = lerp(v.pose.Velocity, mgl64.Vec3{}, v.deceleration)
	}
}

func (v *Vehicle) updatePosition() {
	p := v.rules.ClampPosition(v.pose.Position.Add(v.pose.Velocity))
	// hover height is fixed
	p[1] = v.start.Y()
	v.pose.Position = p
}

func lerp(from, to mgl64.Vec3, t float64) mgl64.Vec3 {
	return from.Add(to.Sub(from).Mul(t))
}

// Pose returns the current pose
func (v *Vehicle) Pose() VehiclePose { return v.pose }

// Position returns the current position
func (v *Vehicle) Position() mgl64.Vec3 { return v.pose.Position }

// Heading returns the current heading in radians around +Y
func (v *Vehicle) Heading() float64 { return v.pose.Heading }

// Place moves the vehicle to a pose without integrating, e.g. when a session
// is restored. The position is clamped like any other.
func (v *Vehicle) Place(pos mgl64.Vec3, heading float64) {
	pos = v.rules.ClampPosition(pos)
	pos[1] = v.start.Y()
	v.pose = VehiclePose{Position: pos, Heading: heading}
	if v.renderer != nil {
		v.renderer.FollowTarget(v.pose.Position, v.pose.Heading)
	}
}

// ResetPosition returns the vehicle to its start pose at rest
func (v *Vehicle) ResetPosition() {
	v.pose = VehiclePose{Position: v.start}
	v.logger.Debug().Msg("vehicle position reset")
}
